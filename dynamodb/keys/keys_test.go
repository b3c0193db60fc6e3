package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Run("single part", func(t *testing.T) {
		k, err := Encode("USER", "42")
		require.NoError(t, err)
		require.Equal(t, "USER#42", k)
	})
	t.Run("multiple parts", func(t *testing.T) {
		k, err := Encode("TXN", "2026-08-01", "abc123")
		require.NoError(t, err)
		require.Equal(t, "TXN#2026-08-01#abc123", k)
	})
	t.Run("empty tag rejected", func(t *testing.T) {
		_, err := Encode("", "42")
		require.Error(t, err)
	})
	t.Run("empty part rejected", func(t *testing.T) {
		_, err := Encode("USER", "")
		require.Error(t, err)
	})
	t.Run("no parts rejected", func(t *testing.T) {
		_, err := Encode("USER")
		require.Error(t, err)
	})
	t.Run("separator in part rejected", func(t *testing.T) {
		_, err := Encode("USER", "4#2")
		require.Error(t, err)
	})
	t.Run("separator in tag rejected", func(t *testing.T) {
		_, err := Encode("US#ER", "42")
		require.Error(t, err)
	})
}

// Two distinct identifier tuples must never produce the same key string.
func TestEncodeInjective(t *testing.T) {
	a := MustEncode("TXN", "ab", "c")
	b := MustEncode("TXN", "a", "bc")
	require.NotEqual(t, a, b)

	c := MustEncode("A", "bc")
	d := MustEncode("AB", "c")
	require.NotEqual(t, c, d)
}

func TestMustEncodePanics(t *testing.T) {
	require.Panics(t, func() { MustEncode("USER", "") })
}

func TestDecode(t *testing.T) {
	tag, parts, err := Decode("TXN#2026-08-01#abc123")
	require.NoError(t, err)
	require.Equal(t, "TXN", tag)
	require.Equal(t, []string{"2026-08-01", "abc123"}, parts)

	_, _, err = Decode("noseparator")
	require.Error(t, err)

	_, _, err = Decode("USER#")
	require.Error(t, err)
}

func TestDecodeRoundTrip(t *testing.T) {
	k := MustEncode("ACCOUNT", "a1", "b2")
	tag, parts, err := Decode(k)
	require.NoError(t, err)
	require.Equal(t, k, MustEncode(tag, parts...))
}

func TestBuild(t *testing.T) {
	k, err := Build("ACCOUNT", "a1")
	require.NoError(t, err)
	require.Equal(t, "ACCOUNT#a1", k.Partition)
	require.Equal(t, "ACCOUNT#a1", k.Sort)

	_, err = Build("ACCOUNT", "")
	require.Error(t, err)
}
