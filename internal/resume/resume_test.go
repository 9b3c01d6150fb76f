package resume

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsMarkdown(t *testing.T) {
	raw := "# Senior Go Engineer\n\n" +
		"- Built **high-load** services\n" +
		"- Maintained [payments API](https://example.com/api)\n\n" +
		"Stack: `Go`, PostgreSQL"

	got, err := Normalize(raw)
	require.NoError(t, err)

	require.NotContains(t, got, "#")
	require.NotContains(t, got, "**")
	require.NotContains(t, got, "](")
	require.Contains(t, got, "Senior Go Engineer")
	require.Contains(t, got, "high-load")
	require.Contains(t, got, "payments API")
	require.Contains(t, got, "Go, PostgreSQL")
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got, err := Normalize("line  one\t\ttabs\r\n\n\n\n\nline two")
	require.NoError(t, err)
	require.Equal(t, "line one tabs\n\nline two", got)
}

func TestPlainTextDecoder(t *testing.T) {
	var dec Decoder = PlainText
	got, err := dec([]byte("## Experience\n\nGo, Kubernetes"))
	require.NoError(t, err)
	require.Equal(t, "Experience\n\nGo, Kubernetes", got)
}

func TestNormalizeEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n\t"} {
		_, err := Normalize(raw)
		require.ErrorIs(t, err, ErrEmpty)
	}
}

func TestNormalizeInvalidUTF8(t *testing.T) {
	_, err := Normalize("resume\xff\xfe")
	require.Error(t, err)
}

func TestNormalizeCapsLength(t *testing.T) {
	got, err := Normalize(strings.Repeat("a", MaxLength+500))
	require.NoError(t, err)
	require.Len(t, []rune(got), MaxLength)
}

func TestNormalizeDropsControlCharacters(t *testing.T) {
	got, err := Normalize("clean\x00text\x07here")
	require.NoError(t, err)
	require.Equal(t, "cleantexthere", got)
}
