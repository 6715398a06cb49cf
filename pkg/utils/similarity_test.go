package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veilguard/doppel/pkg/utils"
)

func TestRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		s1       string
		s2       string
		expected int
	}{
		{
			name:     "identical strings",
			s1:       "shadowfox",
			s2:       "shadowfox",
			expected: 100,
		},
		{
			name:     "empty first string",
			s1:       "",
			s2:       "shadowfox",
			expected: 0,
		},
		{
			name:     "both empty",
			s1:       "",
			s2:       "",
			expected: 100,
		},
		{
			name:     "single character difference",
			s1:       "shadowfox",
			s2:       "shadowfoz",
			expected: 88,
		},
		{
			name:     "completely different",
			s1:       "abc",
			s2:       "xyz",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, utils.Ratio(tt.s1, tt.s2))
		})
	}
}

func TestRatioIsSymmetric(t *testing.T) {
	t.Parallel()

	assert.Equal(t, utils.Ratio("alpha", "4lph4"), utils.Ratio("4lph4", "alpha"))
}

func TestPartialRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		s1       string
		s2       string
		expected int
	}{
		{
			name:     "substring match scores perfect",
			s1:       "fox",
			s2:       "shadowfox42",
			expected: 100,
		},
		{
			name:     "equal length falls back to ratio",
			s1:       "abc",
			s2:       "abd",
			expected: 66,
		},
		{
			name:     "empty shorter string",
			s1:       "",
			s2:       "anything",
			expected: 0,
		},
		{
			name:     "no overlap at all",
			s1:       "qq",
			s2:       "zzzzzz",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, utils.PartialRatio(tt.s1, tt.s2))
		})
	}
}

func TestTokenSortRatio(t *testing.T) {
	t.Parallel()

	// Word order must not matter.
	assert.Equal(t, 100, utils.TokenSortRatio("dark lord", "lord dark"))
	assert.Equal(t, 100, utils.TokenSortRatio("Dark Lord", "lord dark"))
	assert.Equal(t, 0, utils.TokenSortRatio("aaa", "zzz"))
}
