package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when a path or body value cannot be parsed into an identifier.
var ErrInvalidID = errors.New("invalid identifier")

// BoxID identifies a physical field device.
type BoxID int

// ParseBoxID parses a positive integer box id.
func ParseBoxID(s string) (BoxID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("box id %q: %w", s, ErrInvalidID)
	}
	return BoxID(n), nil
}

func (id BoxID) String() string { return strconv.Itoa(int(id)) }

// StoryID identifies a recorded story.
type StoryID int

// ParseStoryID parses a positive integer story id.
func ParseStoryID(s string) (StoryID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("story id %q: %w", s, ErrInvalidID)
	}
	return StoryID(n), nil
}

func (id StoryID) String() string { return strconv.Itoa(int(id)) }

// MobileID identifies a submitted mobile number row.
type MobileID int

func (id MobileID) String() string { return strconv.Itoa(int(id)) }

// SessionID is the device-generated UUID of a session.
type SessionID uuid.UUID

// ParseSessionID parses a UUID session id. The nil UUID is rejected.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil || u == uuid.Nil {
		return SessionID{}, fmt.Errorf("session id %q: %w", s, ErrInvalidID)
	}
	return SessionID(u), nil
}

// NewSessionID returns a random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func (id SessionID) String() string { return uuid.UUID(id).String() }

// UUID returns the underlying uuid value, which is what the driver binds.
func (id SessionID) UUID() uuid.UUID { return uuid.UUID(id) }

// MobileNumber is a participant-submitted phone number as typed on the box keypad.
type MobileNumber string

// TestMobileNumber is the sentinel used by box self-tests; tokens issued to it are never sent.
const TestMobileNumber MobileNumber = "0111111111"

// ParseMobileNumber accepts digits with an optional leading '+'. A number
// with no digit other than zero is rejected.
func ParseMobileNumber(s string) (MobileNumber, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimPrefix(s, "+")
	if strings.TrimLeft(digits, "0") == "" {
		return "", fmt.Errorf("mobile number %q: %w", s, ErrInvalidID)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("mobile number %q: %w", s, ErrInvalidID)
		}
	}
	return MobileNumber(s), nil
}

// IsTest reports whether the number is the self-test sentinel.
func (m MobileNumber) IsTest() bool { return m == TestMobileNumber }

// WithCountryCode strips leading zeros and prefixes "+<countryCode>",
// e.g. "0412345678" with "61" becomes "+61412345678". A number already in
// international form is returned unchanged.
func (m MobileNumber) WithCountryCode(countryCode string) MobileNumber {
	if strings.HasPrefix(string(m), "+") {
		return m
	}
	cc := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	return MobileNumber("+" + cc + strings.TrimLeft(string(m), "0"))
}

func (m MobileNumber) String() string { return string(m) }

// RecordingStopReason is a free-form label reported by the box when a recording ends.
type RecordingStopReason string

// ParseRecordingStopReason rejects blank reasons.
func ParseRecordingStopReason(s string) (RecordingStopReason, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("recording stop reason: %w", ErrInvalidID)
	}
	return RecordingStopReason(s), nil
}

// ParticipationToken is the opaque id of a pre-provisioned reward token.
type ParticipationToken string

// ParseParticipationToken rejects blank tokens and tokens containing whitespace.
func ParseParticipationToken(s string) (ParticipationToken, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("participation token %q: %w", s, ErrInvalidID)
	}
	return ParticipationToken(s), nil
}

func (t ParticipationToken) String() string { return string(t) }
