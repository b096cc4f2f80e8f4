package aura_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/whisperwall/whisperwall/aura"
)

func TestTitleFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		points   int
		expected string
	}{
		{name: "negative balance", points: -3, expected: aura.TitleTarnished},
		{name: "zero balance", points: 0, expected: aura.TitleWanderer},
		{name: "just below mid tier", points: 49, expected: aura.TitleWanderer},
		{name: "mid tier boundary", points: 50, expected: aura.TitleKindred},
		{name: "high tier boundary", points: 200, expected: aura.TitleBeacon},
		{name: "top tier boundary", points: 500, expected: aura.TitleLuminary},
		{name: "far above top tier", points: 12345, expected: aura.TitleLuminary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, aura.TitleFor(tt.points))
		})
	}
}
