package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/pkg/utils"
)

const (
	// usernameSimilarityThreshold is the minimum combined similarity for a
	// handle pair to be flagged.
	usernameSimilarityThreshold = 85
	// displayNameSimilarityThreshold is slightly lower since display names
	// are freeform and change more often.
	displayNameSimilarityThreshold = 80
	// minPatternBaseLength guards against generic short bases like "ab".
	minPatternBaseLength = 3
)

// namingPatterns are common alt-account naming conventions; the first capture
// group is the shared base name.
var namingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.+)\d+$`),       // base name followed by numbers
	regexp.MustCompile(`^(.+)_+(.+)$`),    // names with underscores
	regexp.MustCompile(`^(.+)alt\d*$`),    // names ending with 'alt'
	regexp.MustCompile(`^alt(.+)$`),       // names starting with 'alt'
	regexp.MustCompile(`^(.+)backup\d*$`), // names with 'backup'
	regexp.MustCompile(`^(.+)new\d*$`),    // names with 'new'
	regexp.MustCompile(`^(.+)[._-]\d+$`),  // names with separators and numbers
}

// leetSubstitutions maps digit/symbol substitutions back to letters.
var leetSubstitutions = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"@", "a",
	"8", "b",
)

var trailingDigits = regexp.MustCompile(`\d+$`)

// UsernameAnalyzer flags members whose handles or display names are
// suspiciously similar, including leet-speak disguises and shared naming
// conventions like "name", "name1", "name_alt".
type UsernameAnalyzer struct{}

// Name returns the analyzer's tag.
func (*UsernameAnalyzer) Name() string { return TagUsername }

// Analyze runs handle similarity, display-name similarity and naming-pattern
// family detection over all non-bot members.
func (*UsernameAnalyzer) Analyze(s *Snapshot) []Edge {
	humans := s.Humans()
	if len(humans) < 2 {
		return nil
	}

	var edges []Edge

	edges = append(edges, handleSimilarityEdges(humans)...)
	edges = append(edges, displayNameEdges(humans)...)
	edges = append(edges, namingPatternEdges(humans)...)

	return edges
}

// handleSimilarityEdges compares every handle pair with four metrics and
// flags pairs whose best metric reaches the threshold.
func handleSimilarityEdges(humans []*types.Member) []Edge {
	var edges []Edge

	for i := range humans {
		for j := i + 1; j < len(humans); j++ {
			a, b := humans[i], humans[j]

			nameA := strings.ToLower(strings.TrimSpace(a.Username))
			nameB := strings.ToLower(strings.TrimSpace(b.Username))

			if nameA == "" || nameB == "" {
				continue
			}

			ratio := utils.Ratio(nameA, nameB)
			partial := utils.PartialRatio(nameA, nameB)
			tokenSort := utils.TokenSortRatio(nameA, nameB)
			pattern := patternSimilarity(nameA, nameB)

			best := max(ratio, partial, tokenSort, pattern)
			if best < usernameSimilarityThreshold {
				continue
			}

			edges = append(edges, Edge{
				Analyzer:  TagUsername,
				MemberIDs: []uint64{a.ID, b.ID},
				Evidence:  fmt.Sprintf("Username similarity: %s ↔ %s (%d%% similar)", a.Username, b.Username, best),
				Details: map[string]any{
					"similarity_score":   best,
					"ratio":              ratio,
					"partial_ratio":      partial,
					"token_sort_ratio":   tokenSort,
					"pattern_similarity": pattern,
				},
			})
		}
	}

	return edges
}

// displayNameEdges compares display names, skipping members whose display
// name is absent or identical to their handle.
func displayNameEdges(humans []*types.Member) []Edge {
	type entry struct {
		member *types.Member
		name   string
	}

	entries := make([]entry, 0, len(humans))

	for _, member := range humans {
		display := strings.ToLower(strings.TrimSpace(member.DisplayName))
		handle := strings.ToLower(strings.TrimSpace(member.Username))

		if display == "" || display == handle {
			continue
		}

		entries = append(entries, entry{member: member, name: display})
	}

	var edges []Edge

	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]

			best := max(utils.Ratio(a.name, b.name), utils.PartialRatio(a.name, b.name))
			if best < displayNameSimilarityThreshold {
				continue
			}

			edges = append(edges, Edge{
				Analyzer:  TagUsername,
				MemberIDs: []uint64{a.member.ID, b.member.ID},
				Evidence: fmt.Sprintf("Display name similarity: %s ↔ %s (%d%% similar)",
					a.member.DisplayName, b.member.DisplayName, best),
				Details: map[string]any{
					"similarity_score": best,
				},
			})
		}
	}

	return edges
}

// namingPatternEdges buckets members by the base name captured from each
// naming convention and flags every base shared by two or more members.
func namingPatternEdges(humans []*types.Member) []Edge {
	families := make(map[string][]*types.Member)

	for _, member := range humans {
		name := strings.ToLower(member.Username)

		for _, pattern := range namingPatterns {
			match := pattern.FindStringSubmatch(name)
			if match == nil {
				continue
			}

			base := match[1]
			if len(base) < minPatternBaseLength {
				continue
			}

			if !containsMember(families[base], member.ID) {
				families[base] = append(families[base], member)
			}
		}
	}

	// Deterministic family traversal.
	bases := make([]string, 0, len(families))
	for base := range families {
		bases = append(bases, base)
	}

	sort.Strings(bases)

	var edges []Edge

	for _, base := range bases {
		family := families[base]
		if len(family) < 2 {
			continue
		}

		usernames := make([]string, len(family))
		for i, member := range family {
			usernames[i] = member.Username
		}

		edges = append(edges, Edge{
			Analyzer:  TagUsername,
			MemberIDs: memberIDs(family),
			Evidence: fmt.Sprintf("Common naming pattern detected: base %q shared by %s",
				base, strings.Join(usernames, ", ")),
			Details: map[string]any{
				"base_pattern": base,
				"usernames":    usernames,
				"pattern_type": "naming_convention",
			},
		})
	}

	return edges
}

// patternSimilarity scores structural handle relationships that plain edit
// distance misses: digit suffixes, shared digit-stripped bases and leet-speak
// disguises.
func patternSimilarity(a, b string) int {
	// One handle equals the other followed by digits.
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	if len(longer) > len(shorter) && strings.HasPrefix(longer, shorter) && isDigits(longer[len(shorter):]) {
		return 95
	}

	// Same base once trailing digits are stripped.
	baseA := trailingDigits.ReplaceAllString(a, "")
	baseB := trailingDigits.ReplaceAllString(b, "")

	if baseA == baseB && len(baseA) >= minPatternBaseLength {
		return 90
	}

	// Equal after undoing leet-speak substitutions.
	if leetSubstitutions.Replace(a) == leetSubstitutions.Replace(b) {
		return 85
	}

	return 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

func containsMember(members []*types.Member, id uint64) bool {
	for _, member := range members {
		if member.ID == id {
			return true
		}
	}

	return false
}
