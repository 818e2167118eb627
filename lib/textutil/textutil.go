package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

var labelSeparators = strings.NewReplacer("_", "", "-", "", " ", "")

func normalizeLabel(label string) string {
	return labelSeparators.Replace(NormalizeName(label))
}

// BestLabel returns the candidate that most resembles `label` by Jaro-Winkler
// similarity, ok is false when no candidate reaches `threshold`.
func BestLabel(label string, candidates []string, threshold float64) (string, bool) {
	target := normalizeLabel(label)
	if target == "" {
		return "", false
	}

	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		normalized := normalizeLabel(c)
		if normalized == target {
			return c, true
		}
		score := matchr.JaroWinkler(target, normalized, false)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	if bestScore < threshold {
		return "", false
	}
	return best, true
}

var unsafePathChars = regexp.MustCompile(`[/\\:*?"<>|]`)

// SafeFilenamePart makes a free text value usable as one path component.
func SafeFilenamePart(value string) string {
	value = strings.TrimSpace(value)
	value = unsafePathChars.ReplaceAllString(value, "-")
	return strings.ReplaceAll(value, " ", "_")
}
