package utils

import (
	"sort"
	"strings"
)

// Ratio computes a character-level similarity between two strings as a
// percentage from 0 to 100. It is based on Levenshtein edit distance
// normalized by the length of the longer string.
func Ratio(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := max(len([]rune(s1)), len([]rune(s2)))

	return int(100 * (1.0 - float64(distance)/float64(maxLen)))
}

// PartialRatio computes the best similarity between the shorter string and
// any equal-length substring of the longer string. Useful for detecting a
// name embedded inside a longer one.
func PartialRatio(s1, s2 string) int {
	shorter, longer := []rune(s1), []rune(s2)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	if len(shorter) == 0 {
		return 0
	}

	if len(shorter) == len(longer) {
		return Ratio(string(shorter), string(longer))
	}

	best := 0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := string(longer[i : i+len(shorter)])
		if score := Ratio(string(shorter), window); score > best {
			best = score

			if best == 100 {
				break
			}
		}
	}

	return best
}

// TokenSortRatio tokenizes both strings on whitespace, sorts the tokens and
// compares the rejoined results. Word order differences do not lower the score.
func TokenSortRatio(s1, s2 string) int {
	return Ratio(sortTokens(s1), sortTokens(s2))
}

func sortTokens(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	sort.Strings(tokens)

	return strings.Join(tokens, " ")
}

// levenshteinDistance calculates the edit distance between two strings.
// The distance is the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to change one string into another.
func levenshteinDistance(s1, s2 string) int {
	// Convert strings to runes to handle Unicode correctly
	runes1 := []rune(s1)
	runes2 := []rune(s2)

	// Create distance matrix
	rows, cols := len(runes1)+1, len(runes2)+1
	dist := make([][]int, rows)
	for i := range dist {
		dist[i] = make([]int, cols)
		dist[i][0] = i
	}
	for j := 1; j < cols; j++ {
		dist[0][j] = j
	}

	// Fill in the distance matrix
	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if runes1[i-1] == runes2[j-1] {
				cost = 0
			}
			dist[i][j] = min(
				dist[i-1][j]+1,      // deletion
				dist[i][j-1]+1,      // insertion
				dist[i-1][j-1]+cost, // substitution
			)
		}
	}

	return dist[rows-1][cols-1]
}
