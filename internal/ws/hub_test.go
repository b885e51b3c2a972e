package ws

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateBody(t *testing.T) {
	require.Equal(t, "привет", truncateBody("привет", 120))

	long := strings.Repeat("сообщение ", 30)
	got := truncateBody(long, 120)
	require.True(t, utf8.ValidString(got))
	require.True(t, strings.HasSuffix(got, "..."))
	require.Equal(t, 120, utf8.RuneCountInString(got))

	// Граница: ровно max рун остаётся как есть.
	exact := strings.Repeat("ж", 120)
	require.Equal(t, exact, truncateBody(exact, 120))
}
