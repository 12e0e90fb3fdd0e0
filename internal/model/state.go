package model

import "fmt"

// SessionState is one of the timestamped UI states a box reports during a session.
type SessionState int

const (
	StateInit SessionState = iota + 1
	StateWelcome
	StateRecording
	StateConfirmation
	StateTokenPrompt
	StateNoTokenPrompt
	StateThankYouPrompt
	StateQuestionnaireShare
	StateQuestionnaireNoShare
	StateIdle
	StateAudioError
)

// stateNames are the path segments the boxes post to.
var stateNames = map[SessionState]string{
	StateInit:                 "init",
	StateWelcome:              "welcome",
	StateRecording:            "recording",
	StateConfirmation:         "confirmation",
	StateTokenPrompt:          "tokenPrompt",
	StateNoTokenPrompt:        "noTokenPrompt",
	StateThankYouPrompt:       "thankYouPrompt",
	StateQuestionnaireShare:   "questionnaireShare",
	StateQuestionnaireNoShare: "questionnaireNoShare",
	StateIdle:                 "idle",
	StateAudioError:           "audioError",
}

// States lists every session state in nominal order.
func States() []SessionState {
	return []SessionState{
		StateInit, StateWelcome, StateRecording, StateConfirmation, StateTokenPrompt,
		StateNoTokenPrompt, StateThankYouPrompt, StateQuestionnaireShare,
		StateQuestionnaireNoShare, StateIdle, StateAudioError,
	}
}

// ParseSessionState maps a path segment such as "audioError" to its state.
func ParseSessionState(name string) (SessionState, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown session state %q", name)
}

func (s SessionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Valid reports whether s is a known state.
func (s SessionState) Valid() bool {
	_, ok := stateNames[s]
	return ok
}
