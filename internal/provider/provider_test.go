package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capture/internal"
)

func TestRetailerRoundTrip(t *testing.T) {
	for _, r := range Retailers() {
		code, err := EncodeRetailer(r)
		require.NoError(t, err, "encode %s", r)
		got, err := DecodeRetailer(code)
		require.NoError(t, err, "decode %s", code)
		assert.Equal(t, r, got)
	}
}

func TestEmailRoundTrip(t *testing.T) {
	for _, e := range Emails() {
		code, err := EncodeEmail(e)
		require.NoError(t, err)
		got, err := DecodeEmail(code)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestDecodeUnknownRetailer(t *testing.T) {
	for _, code := range []string{"", "sears", "AMAZON", "Walmart "} {
		_, err := DecodeRetailer(code)
		require.Error(t, err, "code %q", code)
		assert.Equal(t, internal.KindUnsupportedProvider, internal.KindOf(err))
	}
}

func TestDecodeEmailAliases(t *testing.T) {
	for code, want := range map[string]Email{"gmail": EmailGmail, "yahooV2": EmailYahoo} {
		got, err := DecodeEmail(code)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestTableCompleteness(t *testing.T) {
	// Every enum value maps to exactly one code and vice versa.
	assert.Len(t, retailerByCode, len(retailerCodes))
	assert.GreaterOrEqual(t, len(retailerCodes), 60)
	assert.Len(t, emailByCode, len(emailCodes)+len(emailAliases))

	seen := map[string]bool{}
	for _, code := range retailerCodes {
		assert.False(t, seen[code], "duplicate code %q", code)
		seen[code] = true
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("WALMART")
	require.NoError(t, err)
	assert.Equal(t, internal.FamilyRetailer, p.Family())

	p, err = Parse("GMAIL")
	require.NoError(t, err)
	assert.Equal(t, internal.FamilyEmail, p.Family())

	_, err = Parse("walmart")
	assert.Error(t, err)
}
