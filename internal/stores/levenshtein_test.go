package stores

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"both empty", "", "", 0},
		{"empty left", "", "store", 5},
		{"empty right", "store", "", 5},
		{"identical", "mayuri", "mayuri", 0},
		{"single substitution", "mayuri", "mayori", 1},
		{"single insertion", "mayuri", "mayuris", 1},
		{"single deletion", "mayuris", "mayuri", 1},
		{"classic kitten", "kitten", "sitting", 3},
		{"fully distinct", "abc", "xyz", 3},
		{"unicode runes", "caffè", "caffe", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshtein(tt.a, tt.b))
			assert.Equal(t, tt.want, levenshtein(tt.b, tt.a), "distance must be symmetric")
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 1},
		{"identical", "mayuri", "mayuri", 1},
		{"one typo in six runes", "mayuri", "mayori", 1 - 1.0/6},
		{"fully distinct", "abc", "xyz", 0},
		{"empty vs nonempty", "", "store", 0},
		{"token extension", "mayuri", "mayuri store", 1},
		{"token extension reversed", "mayuri store", "mayuri", 1},
		{"extension without boundary", "mayuri", "mayuristore", 1 - 5.0/11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarityRange(t *testing.T) {
	pairs := [][2]string{
		{"trader joes", "trader joe s"},
		{"whole foods", "whole foods market"},
		{"a", "zzzzzzzz"},
		{"", ""},
	}
	for _, p := range pairs {
		s := similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0, "%q vs %q", p[0], p[1])
		assert.LessOrEqual(t, s, 1.0, "%q vs %q", p[0], p[1])
	}
}
