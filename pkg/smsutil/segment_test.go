package smsutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageParts(t *testing.T) {
	cases := []struct {
		name   string
		length int
		want   int
	}{
		{"empty message still costs one part", 0, 1},
		{"single char", 1, 1},
		{"boundary of single part", 160, 1},
		{"first concatenated length", 161, 2},
		{"two full concatenated parts", 306, 2},
		{"spills into third part", 307, 3},
		{"exactly three parts", 459, 3},
		{"four parts", 460, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MessageParts(strings.Repeat("a", tc.length)))
		})
	}
}

func TestMessageParts_CountsRunesNotBytes(t *testing.T) {
	// 160 multi-byte runes must still fit in a single part.
	assert.Equal(t, 1, MessageParts(strings.Repeat("é", 160)))
	assert.Equal(t, 2, MessageParts(strings.Repeat("é", 161)))
}
