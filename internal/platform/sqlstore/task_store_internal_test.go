package sqlstore

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPrefix(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{name: "short", input: "Write report", n: 32, want: "Write report"},
		{name: "exact", input: "abcd", n: 4, want: "abcd"},
		{name: "ascii cut", input: "abcdef", n: 3, want: "abc"},
		{name: "multibyte cut", input: "日本語のタスク", n: 3, want: "日本語"},
		{name: "emoji", input: "🚀🚀🚀", n: 2, want: "🚀🚀"},
		{name: "empty", input: "", n: 5, want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := prefix(tt.input, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
