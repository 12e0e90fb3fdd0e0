package model

import (
	"time"
)

// Box represents a deployed recording device
type Box struct {
	ID          BoxID
	Description string
	CountryCode string
	Timezone    string
	Latitude    *float64
	Longitude   *float64
	Photo       *string
	LastSeen    *time.Time
	DeployedAt  *time.Time
}

// Session represents one interaction between a box and a participant
type Session struct {
	ID                        SessionID
	BoxID                     BoxID
	CreatedAt                 time.Time
	InitState                 *time.Time
	WelcomeState              *time.Time
	RecordingState            *time.Time
	ConfirmationState         *time.Time
	ConfirmationAnswer        *int
	TokenPromptState          *time.Time
	NoTokenPromptState        *time.Time
	ThankYouPromptState       *time.Time
	QuestionnaireShareState   *time.Time
	QuestionnaireNoShareState *time.Time
	IdleState                 *time.Time
	AudioErrorState           *time.Time
	ReplayCount               int
	RecordingLength           *int64
	RecordStopReason          *RecordingStopReason
	Token                     *ParticipationToken
}

// StateAt returns the timestamp recorded for the given UI state, or nil.
func (s Session) StateAt(state SessionState) *time.Time {
	switch state {
	case StateInit:
		return s.InitState
	case StateWelcome:
		return s.WelcomeState
	case StateRecording:
		return s.RecordingState
	case StateConfirmation:
		return s.ConfirmationState
	case StateTokenPrompt:
		return s.TokenPromptState
	case StateNoTokenPrompt:
		return s.NoTokenPromptState
	case StateThankYouPrompt:
		return s.ThankYouPromptState
	case StateQuestionnaireShare:
		return s.QuestionnaireShareState
	case StateQuestionnaireNoShare:
		return s.QuestionnaireNoShareState
	case StateIdle:
		return s.IdleState
	case StateAudioError:
		return s.AudioErrorState
	}
	return nil
}

// Story represents an audio recording made during a session
type Story struct {
	ID        StoryID
	BoxID     BoxID
	SessionID SessionID
	CreatedAt time.Time
	UpdatedAt time.Time
	Filename  *string
	Token     *ParticipationToken
}

// Mobile represents a submitted phone number awaiting payment reconciliation
type Mobile struct {
	ID        MobileID
	SessionID SessionID
	BoxID     BoxID
	Number    MobileNumber
	Network   string
	CreatedAt time.Time
	Duplicate bool
	Payment   int
}

// Payment markers on Mobile.Payment; positive values are paid amounts set externally.
const (
	PaymentPending    = 0
	PaymentNotPayable = -1
)

// Token represents a pre-provisioned reward token
type Token struct {
	ID          ParticipationToken
	IssuedAt    *time.Time
	SentAt      *time.Time
	CompletedAt *time.Time
}

// Delivery is a pending notification of an issued token to a participant
type Delivery struct {
	Token     ParticipationToken
	Recipient MobileNumber
	CreatedAt time.Time
	Attempts  int
}

// BoxInfo is a dashboard row: a box with its story count and latest story time
type BoxInfo struct {
	Box
	NumStories  int
	LatestStory *time.Time
}

// StoriesByDate is the number of stories created on one calendar day (UTC)
type StoriesByDate struct {
	Date       time.Time
	NumStories int
}

// Status holds the aggregates shown on the status dashboard
type Status struct {
	Boxes           []BoxInfo
	Duplicates      int
	Unpaid          int
	TokensAvailable int
	StoriesByDate   []StoriesByDate
}
