package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoxID(t *testing.T) {
	id, err := ParseBoxID("12")
	require.NoError(t, err)
	assert.Equal(t, BoxID(12), id)

	for _, in := range []string{"", "abc", "0", "-3", "1.5"} {
		_, err := ParseBoxID(in)
		assert.ErrorIs(t, err, ErrInvalidID, "input %q", in)
	}
}

func TestParseStoryID(t *testing.T) {
	id, err := ParseStoryID(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, StoryID(7), id)

	_, err = ParseStoryID("seven")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestParseSessionID(t *testing.T) {
	const raw = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	id, err := ParseSessionID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, id.String())

	_, err = ParseSessionID("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = ParseSessionID("00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrInvalidID, "nil uuid must be rejected")
}

func TestParseMobileNumber(t *testing.T) {
	m, err := ParseMobileNumber(" 0412345678 ")
	require.NoError(t, err)
	assert.Equal(t, MobileNumber("0412345678"), m)

	m, err = ParseMobileNumber("+61412345678")
	require.NoError(t, err)
	assert.Equal(t, MobileNumber("+61412345678"), m)

	for _, in := range []string{"", "+", "0000", "+00", "04 1234", "phone"} {
		_, err := ParseMobileNumber(in)
		assert.ErrorIs(t, err, ErrInvalidID, "input %q", in)
	}
}

func TestMobileNumberWithCountryCode(t *testing.T) {
	tests := []struct {
		number  MobileNumber
		country string
		want    MobileNumber
	}{
		{"0412345678", "61", "+61412345678"},
		{"412345678", "61", "+61412345678"},
		{"009783099058", "91", "+919783099058"},
		{"0412345678", "+61", "+61412345678"},
		{"+61412345678", "61", "+61412345678"},
		{"+447700900123", "61", "+447700900123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.number.WithCountryCode(tt.country))
	}

	parsed, err := ParseMobileNumber("+61412345678")
	require.NoError(t, err)
	assert.Equal(t, MobileNumber("+61412345678"), parsed.WithCountryCode("61"))

	_, err = ParseMobileNumber("0000")
	assert.ErrorIs(t, err, ErrInvalidID, "all-zero number must not format to a bare country code")
}

func TestMobileNumberIsTest(t *testing.T) {
	assert.True(t, MobileNumber("0111111111").IsTest())
	assert.False(t, MobileNumber("0412345678").IsTest())
}

func TestParseRecordingStopReason(t *testing.T) {
	r, err := ParseRecordingStopReason("MainButton")
	require.NoError(t, err)
	assert.Equal(t, RecordingStopReason("MainButton"), r)

	_, err = ParseRecordingStopReason("   ")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestParseParticipationToken(t *testing.T) {
	tok, err := ParseParticipationToken("ABC-123")
	require.NoError(t, err)
	assert.Equal(t, ParticipationToken("ABC-123"), tok)

	_, err = ParseParticipationToken("AB C")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestSessionStateNames(t *testing.T) {
	for _, s := range States() {
		parsed, err := ParseSessionState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	assert.Len(t, States(), 11)

	_, err := ParseSessionState("replay")
	assert.Error(t, err)
}
