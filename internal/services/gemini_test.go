package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "golang", limit: 10, want: "golang"},
		{name: "exact", in: "golang", limit: 6, want: "golang"},
		{name: "ascii", in: "golang", limit: 2, want: "go"},
		{name: "mid rune", in: "café", limit: 4, want: "caf"},
		{name: "rune boundary", in: "café", limit: 5, want: "café"},
		{name: "four byte rune", in: "a😀b", limit: 3, want: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateUTF8(tt.in, tt.limit))
		})
	}
}

func TestTruncateUTF8_EmbedLimit(t *testing.T) {
	text := "x" + strings.Repeat("é", maxEmbedInput)

	got := truncateUTF8(text, maxEmbedInput)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxEmbedInput)
	assert.Equal(t, maxEmbedInput-1, len(got))
}
