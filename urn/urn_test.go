package urn_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"goa.design/mini/urn"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]string{
		{"mini", "run", "abcd1234", "fn", "train", "f0", "call", "c0", "start", ""},
		{"a:b", "c%d", "plain"},
		{"", "", ""},
		{"unicode-héllo", "日本語"},
	}
	for _, parts := range cases {
		encoded := urn.Encode(parts...)
		decoded, err := urn.Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, parts, decoded)
	}
}

func TestMatches(t *testing.T) {
	encoded := urn.Encode("mini", "run", "abcd1234", "fn", "train", "f0", "call", "c0", "start", "")
	require.True(t, urn.Matches(encoded, "mini:run:*:fn:*:*:call:*:*"))
	require.False(t, urn.Matches(encoded, "mini:run:*:fn:*:*:call:*:end"))

	// A pattern containing only "*" parts of the right arity matches any URN
	// of that arity, as long as no part is empty.
	other := urn.Encode("mini", "run", "zzzz", "fn", "eval", "f1", "call", "c9", "guard")
	require.True(t, urn.Matches(other, "*:*:*:*:*:*:*:*:*"))
}

func TestMatchesPrefix(t *testing.T) {
	encoded := urn.Encode("mini", "run", "r0", "fn", "train")
	// Pattern shorter than the URN matches any prefix.
	require.True(t, urn.Matches(encoded, "mini:run:r0"))
	require.False(t, urn.Matches(encoded, "mini:run:other"))
}

func TestIsExperimentURN(t *testing.T) {
	require.True(t, urn.IsExperimentURN("mini:run:r0"))
	require.False(t, urn.IsExperimentURN("mini"))
	require.False(t, urn.IsExperimentURN("other:run:r0"))
	require.False(t, urn.IsExperimentURN("not a urn with spaces but no colon"))
}

func TestParseCallStateLine(t *testing.T) {
	line := "mini:run:abcd1234:fn:train:f0:call:c0:start:"
	parts, err := urn.Decode(line)
	require.NoError(t, err)
	require.Equal(t, []string{"mini", "run", "abcd1234", "fn", "train", "f0", "call", "c0", "start", ""}, parts)
}
