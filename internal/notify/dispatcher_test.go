package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/speechbox/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sent struct {
	to    model.MobileNumber
	token model.ParticipationToken
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []sent
}

func (f *fakeNotifier) Send(ctx context.Context, to model.MobileNumber, token model.ParticipationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, token: token})
	return f.err
}

type attempt struct {
	token model.ParticipationToken
	err   error
}

type fakeStore struct {
	mu            sync.Mutex
	attempts      []attempt
	marked        []model.ParticipationToken
	pending       []model.Delivery
	createdBefore time.Time
	maxAttempts   int
}

func (f *fakeStore) RecordAttempt(ctx context.Context, token model.ParticipationToken, at time.Time, sendErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt{token: token, err: sendErr})
	return nil
}

func (f *fakeStore) MarkSent(ctx context.Context, token model.ParticipationToken, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, token)
	return nil
}

func (f *fakeStore) Pending(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdBefore = createdBefore
	f.maxAttempts = maxAttempts
	return f.pending, nil
}

func newDispatcher(t *testing.T, n Notifier, s Store, opts Options) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(n, s, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return d
}

func TestDispatcherDeliversAndMarksSent(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &fakeStore{}
	d := newDispatcher(t, notifier, store, Options{Workers: 2})
	d.Start()

	d.Enqueue(model.Delivery{Token: "tok-1", Recipient: "+61412345678"})
	require.NoError(t, d.Stop(context.Background()))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, model.MobileNumber("+61412345678"), notifier.sent[0].to)
	require.Len(t, store.attempts, 1)
	assert.NoError(t, store.attempts[0].err)
	assert.Equal(t, []model.ParticipationToken{"tok-1"}, store.marked)
}

func TestDispatcherRecordsFailedAttempt(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("twilio: 21211 invalid 'To' phone number")}
	store := &fakeStore{}
	d := newDispatcher(t, notifier, store, Options{Workers: 1})
	d.Start()

	d.Enqueue(model.Delivery{Token: "tok-2", Recipient: "+61400000000"})
	require.NoError(t, d.Stop(context.Background()))

	require.Len(t, store.attempts, 1)
	assert.Error(t, store.attempts[0].err)
	assert.Empty(t, store.marked)
}

func TestEnqueueDoesNotBlockWhenFull(t *testing.T) {
	d := newDispatcher(t, &fakeNotifier{}, &fakeStore{}, Options{Workers: 1, QueueSize: 1})

	d.Enqueue(model.Delivery{Token: "a"})
	d.Enqueue(model.Delivery{Token: "b"})
	assert.Len(t, d.queue, 1)

	require.NoError(t, d.Stop(context.Background()))
}

func TestStop(t *testing.T) {
	d := newDispatcher(t, &fakeNotifier{}, &fakeStore{}, Options{})
	d.Start()
	require.NoError(t, d.Stop(context.Background()))

	assert.NotPanics(t, func() { d.Enqueue(model.Delivery{Token: "late"}) })
	assert.ErrorIs(t, d.Stop(context.Background()), ErrStopped)
}

func TestSweepRequeuesPending(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{pending: []model.Delivery{
		{Token: "tok-3", Recipient: "+61412345678", Attempts: 1},
		{Token: "tok-4", Recipient: "+61412345679"},
	}}
	d := newDispatcher(t, &fakeNotifier{}, store, Options{MaxAttempts: 3, RetryAfter: time.Minute})
	d.now = func() time.Time { return now }

	d.sweep(context.Background())

	assert.Equal(t, now.Add(-time.Minute), store.createdBefore)
	assert.Equal(t, 3, store.maxAttempts)
	assert.Len(t, d.queue, 2)
}

func TestNewDispatcherRejectsBadSchedule(t *testing.T) {
	_, err := NewDispatcher(&fakeNotifier{}, &fakeStore{}, Options{RetrySchedule: "every now and then"}, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = NewDispatcher(&fakeNotifier{}, &fakeStore{}, Options{RetrySchedule: "@every 5m"}, zaptest.NewLogger(t))
	assert.NoError(t, err)
}
