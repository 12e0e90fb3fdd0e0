package speechbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type fakeDispatcher struct {
	mu         sync.Mutex
	deliveries []model.Delivery
}

func (f *fakeDispatcher) Enqueue(d model.Delivery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, d)
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeDispatcher) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	dispatcher := &fakeDispatcher{}
	svc := &Service{
		db:         database,
		status:     repo.NewStatusRepo(database),
		dispatcher: dispatcher,
		logger:     zaptest.NewLogger(t),
		now:        func() time.Time { return fixedNow },
	}
	return svc, mock, dispatcher
}

var sessionCols = []string{
	"id", "box_id", "created_at",
	"init_state", "welcome_state", "recording_state", "confirmation_state", "confirmation_answer",
	"token_prompt_state", "no_token_prompt_state", "thank_you_prompt_state",
	"questionnaire_share_state", "questionnaire_no_share_state", "idle_state", "audio_error_state",
	"replay_count", "recording_length", "record_stop_reason", "token",
}

func sessionRow(id model.SessionID, replays int, token interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(sessionCols).AddRow(
		id.String(), 1, fixedNow,
		nil, nil, nil, nil, nil,
		nil, nil, nil,
		nil, nil, nil, nil,
		replays, nil, nil, token,
	)
}

func expectEnsureSession(mock sqlmock.Sqlmock, id model.SessionID, token interface{}) {
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(id.String(), 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id").
		WithArgs(id.String()).
		WillReturnRows(sessionRow(id, 0, token))
}

func TestGetOrCreateSession(t *testing.T) {
	svc, mock, _ := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	expectEnsureSession(mock, id, nil)
	mock.ExpectCommit()

	session, err := svc.GetOrCreateSession(context.Background(), 1, id)
	require.NoError(t, err)
	assert.Equal(t, id, session.ID)
	assert.Equal(t, model.BoxID(1), session.BoxID)
	assert.Nil(t, session.InitState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateSessionUnknownBox(t *testing.T) {
	svc, mock, _ := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sessions").WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	_, err := svc.GetOrCreateSession(context.Background(), 1, id)
	assert.ErrorIs(t, err, ErrBoxNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncreaseReplayCount(t *testing.T) {
	svc, mock, _ := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	expectEnsureSession(mock, id, nil)
	mock.ExpectExec(`UPDATE sessions SET replay_count = replay_count \+ 1 WHERE id`).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id").
		WillReturnRows(sessionRow(id, 1, nil))
	mock.ExpectCommit()

	session, err := svc.IncreaseReplayCount(context.Background(), 1, id)
	require.NoError(t, err)
	assert.Equal(t, 1, session.ReplayCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStateStampsColumn(t *testing.T) {
	svc, mock, _ := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	expectEnsureSession(mock, id, nil)
	mock.ExpectExec("UPDATE sessions SET audio_error_state = ").
		WithArgs(id.String(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id").
		WillReturnRows(sessionRow(id, 0, nil))
	mock.ExpectCommit()

	_, err := svc.SetState(context.Background(), 1, id, model.StateAudioError)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetterValidation(t *testing.T) {
	svc, mock, _ := newTestService(t)
	id := model.SessionID(uuid.New())
	ctx := context.Background()

	_, err := svc.SetState(ctx, 1, id, model.SessionState(99))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SetRecordingLength(ctx, 1, id, -5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SetRecordStopReason(ctx, 1, id, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.AddAudio(ctx, 3, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStory(t *testing.T) {
	svc, mock, _ := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	expectEnsureSession(mock, id, nil)
	mock.ExpectQuery("INSERT INTO stories").
		WithArgs(1, id.String(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "box_id", "session_id", "created_at", "updated_at", "filename", "token"}).
			AddRow(11, 1, id.String(), fixedNow, fixedNow, nil, nil))
	mock.ExpectCommit()

	story, err := svc.CreateStory(context.Background(), 1, id)
	require.NoError(t, err)
	assert.Equal(t, model.StoryID(11), story.ID)
	assert.Equal(t, id, story.SessionID)
	assert.Nil(t, story.Filename)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddAudioUnknownStory(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stories SET filename").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM stories WHERE id").
		WithArgs(42).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.AddAudio(context.Background(), 42, "abc.wav")
	assert.ErrorIs(t, err, ErrStoryNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMobileInfoDuplicate(t *testing.T) {
	svc, mock, _ := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	expectEnsureSession(mock, id, nil)
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(2, "0123456789").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("0123456789").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO mobiles").
		WithArgs(id.String(), 1, "0123456789", "Telstra", sqlmock.AnyArg(), true, -1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	mobile, err := svc.CreateMobileInfo(context.Background(), 1, id, "0123456789", "Telstra")
	require.NoError(t, err)
	assert.Equal(t, model.MobileID(7), mobile.ID)
	assert.True(t, mobile.Duplicate)
	assert.Equal(t, model.PaymentNotPayable, mobile.Payment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMobileInfoFirstSubmission(t *testing.T) {
	svc, mock, _ := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	expectEnsureSession(mock, id, nil)
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO mobiles").
		WithArgs(id.String(), 1, "0412345678", "Optus", sqlmock.AnyArg(), false, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	mobile, err := svc.CreateMobileInfo(context.Background(), 1, id, "0412345678", "Optus")
	require.NoError(t, err)
	assert.False(t, mobile.Duplicate)
	assert.Equal(t, model.PaymentPending, mobile.Payment)
	require.NoError(t, mock.ExpectationsWereMet())
}

var boxCols = []string{"id", "description", "country_code", "timezone", "latitude", "longitude", "photo", "last_seen", "deployed_at"}

func expectIssue(mock sqlmock.Sqlmock, id model.SessionID, token string) {
	mock.ExpectQuery("UPDATE tokens SET issued_at").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(token))
	mock.ExpectExec("UPDATE stories SET token").
		WithArgs(id.String(), token).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectEnsureSession(mock, id, nil)
	mock.ExpectExec("UPDATE sessions SET token").
		WithArgs(id.String(), token).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM boxes").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(boxCols).AddRow(1, "Library", "61", "Australia/Sydney", nil, nil, nil, nil, nil))
}

func TestIssueTokenNotifiesAfterCommit(t *testing.T) {
	svc, mock, dispatcher := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	expectIssue(mock, id, "tok-1")
	mock.ExpectExec("INSERT INTO token_deliveries").
		WithArgs("tok-1", "+61412345678", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	token, err := svc.IssueToken(context.Background(), 1, id, "0412345678")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationToken("tok-1"), token)
	require.Len(t, dispatcher.deliveries, 1)
	assert.Equal(t, model.MobileNumber("+61412345678"), dispatcher.deliveries[0].Recipient)
	assert.Equal(t, token, dispatcher.deliveries[0].Token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTokenTestNumberSkipsDelivery(t *testing.T) {
	svc, mock, dispatcher := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	expectIssue(mock, id, "tok-2")
	mock.ExpectCommit()

	token, err := svc.IssueToken(context.Background(), 1, id, model.TestMobileNumber)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationToken("tok-2"), token)
	assert.Empty(t, dispatcher.deliveries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTokenPoolExhausted(t *testing.T) {
	svc, mock, dispatcher := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE tokens SET issued_at").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := svc.IssueToken(context.Background(), 1, id, "0412345678")
	assert.ErrorIs(t, err, ErrNoTokensLeft)
	assert.Equal(t, KindPoolExhausted, KindOf(err))
	assert.Empty(t, dispatcher.deliveries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTokenUnknownBoxRollsBack(t *testing.T) {
	svc, mock, dispatcher := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE tokens SET issued_at").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tok-3"))
	mock.ExpectExec("UPDATE stories SET token").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	_, err := svc.IssueToken(context.Background(), 1, id, "0412345678")
	assert.ErrorIs(t, err, ErrBoxNotFound)
	assert.Empty(t, dispatcher.deliveries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTokenRetriesSerializationFailure(t *testing.T) {
	svc, mock, dispatcher := newTestService(t)
	id := model.SessionID(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE tokens SET issued_at").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	expectIssue(mock, id, "tok-4")
	mock.ExpectExec("INSERT INTO token_deliveries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	token, err := svc.IssueToken(context.Background(), 1, id, "0412345678")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationToken("tok-4"), token)
	assert.Len(t, dispatcher.deliveries, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorageFailureIsOpaque(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin().WillReturnError(errors.New("dial tcp: connection refused"))

	_, err := svc.CreateStory(context.Background(), 1, model.SessionID(uuid.New()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, KindStorage, KindOf(err))

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "create story", storageErr.Op)
}

func TestPingFromBox(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectExec("UPDATE boxes SET last_seen").
		WithArgs(1, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE boxes SET last_seen").
		WithArgs(2, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	seen, err := svc.PingFromBox(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, seen)

	_, err = svc.PingFromBox(context.Background(), 2)
	assert.ErrorIs(t, err, ErrBoxNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBoxNotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM boxes").WithArgs(9).WillReturnError(sql.ErrNoRows)

	_, err := svc.GetBox(context.Background(), 9)
	assert.ErrorIs(t, err, ErrBoxNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusFailureIsStorageError(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM boxes b").WillReturnError(errors.New("relation does not exist"))

	_, err := svc.Status(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus(t *testing.T) {
	svc, mock, _ := newTestService(t)
	latest := fixedNow.Add(-time.Hour)

	mock.ExpectQuery("FROM boxes b").WillReturnRows(
		sqlmock.NewRows([]string{"id", "description", "country_code", "timezone", "latitude", "longitude",
			"photo", "last_seen", "deployed_at", "num_stories", "latest_story"}).
			AddRow(1, "Library", "61", "Australia/Sydney", nil, nil, nil, fixedNow, nil, 3, latest))
	mock.ExpectQuery("FROM mobiles WHERE duplicate").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM mobiles WHERE payment = 0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery("FROM tokens WHERE issued_at IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(96))
	mock.ExpectQuery("FROM stories").
		WillReturnRows(sqlmock.NewRows([]string{"day", "num_stories"}).
			AddRow(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 3))

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Boxes, 1)
	assert.Equal(t, 3, st.Boxes[0].NumStories)
	assert.Equal(t, latest, *st.Boxes[0].LatestStory)
	assert.Equal(t, 1, st.Duplicates)
	assert.Equal(t, 4, st.Unpaid)
	assert.Equal(t, 96, st.TokensAvailable)
	require.Len(t, st.StoriesByDate, 1)
	assert.Equal(t, 3, st.StoriesByDate[0].NumStories)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(ErrStoryNotFound))
	assert.Equal(t, KindNotFound, KindOf(ErrBoxNotFound))
	assert.Equal(t, KindPoolExhausted, KindOf(ErrNoTokensLeft))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("number: %w", ErrInvalidInput)))
	assert.Equal(t, KindStorage, KindOf(errors.New("driver: bad connection")))
	assert.Equal(t, KindStorage, KindOf(&StorageError{Op: "x", Err: errors.New("y")}))
}
