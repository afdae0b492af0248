package resourcekit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumBytes(t *testing.T) {
	a := ChecksumBytes([]byte("hello"))
	b := ChecksumBytes([]byte("hello"))
	c := ChecksumBytes([]byte("world"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.False(t, a.IsZero())
	require.True(t, Checksum{}.IsZero())
}

func TestChecksumStrings(t *testing.T) {
	sum := ChecksumBytes([]byte("payload"))

	require.Len(t, sum.String(), ChecksumSize*2)
	require.Len(t, sum.ShortString(), 16)
	require.Equal(t, sum.String()[:16], sum.ShortString())
}

func TestChecksumTextRoundTrip(t *testing.T) {
	sum := ChecksumBytes([]byte("roundtrip"))

	text, err := sum.MarshalText()
	require.NoError(t, err)

	var decoded Checksum
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, sum, decoded)

	require.Error(t, decoded.UnmarshalText([]byte("too-short")))
}
