// Package diagnosis derives a short diagnosis label from a free-form model
// analysis so that follow-up turns can refer to it.
package diagnosis

import (
	"regexp"
	"strings"
)

// Fallback is returned when no diagnosis can be found in an analysis.
const Fallback = "the condition shown in the uploaded image"

const maxWords = 15

// Ordered by priority: a specific label wins over a generic one anywhere in
// the text.
var headingMarkers = []string{
	"primary diagnosis",
	"most likely diagnosis",
	"likely diagnosis",
	"diagnostic assessment",
	"diagnosis",
}

var sectionMarkers = []string{
	"diagnostic",
	"assessment",
	"key findings",
}

// Labels of the other parts of a structured analysis.
var sectionLabels = []string{
	"key findings",
	"findings",
	"observations",
	"assessment",
	"explanation",
	"recommendation",
	"next steps",
	"treatment",
	"summary",
	"relevance",
}

var separators = []string{":", "–", "—", " - ", "="}

var (
	confidenceParens = regexp.MustCompile(`(?i)\s*[\(\[][^()\[\]]*(?:\d\s*%|confidence|likelihood|probability|certainty)[^()\[\]]*[\)\]]`)
	confidenceTail   = regexp.MustCompile(`(?i)\s*[,;–—-]?\s*(?:with\s+)?(?:(?:confidence|likelihood|probability)\s*(?:level\s*)?:?\s*)?\d{1,3}(?:\.\d+)?\s*%\s*(?:confidence|likelihood|probability|certainty)?\s*$`)
	listPrefix       = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+`)
	markdownMarks    = strings.NewReplacer("**", "", "__", "", "`", "", "#", "")
)

// Extract returns a short diagnosis phrase for an analysis. It never fails
// and never returns an empty string.
func Extract(response string) string {
	lines := strings.Split(strings.ReplaceAll(response, "\r\n", "\n"), "\n")

	for _, marker := range headingMarkers {
		if candidate := fromHeading(lines, marker); candidate != "" {
			return candidate
		}
	}

	if candidate := fromSection(lines); candidate != "" {
		return candidate
	}

	return Fallback
}

// fromHeading takes the text after the first separator of a line carrying
// marker, or the next non-empty line when the heading has no inline value.
func fromHeading(lines []string, marker string) string {
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), marker) {
			continue
		}

		if rest, ok := afterSeparator(line); ok {
			if candidate := clean(rest); candidate != "" {
				return candidate
			}
		}

		next, ok := nextNonEmpty(lines, i+1)
		if !ok || isHeading(next) {
			continue
		}
		if candidate := clean(next); candidate != "" {
			return candidate
		}
	}
	return ""
}

func fromSection(lines []string) string {
	for i, line := range lines {
		lower := strings.ToLower(line)
		if !containsAny(lower, sectionMarkers) {
			continue
		}

		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" {
				continue
			}
			if isAlternative(next) {
				continue
			}
			if isHeading(next) {
				break
			}
			if candidate := clean(next); candidate != "" {
				return candidate
			}
			break
		}
	}
	return ""
}

// isHeading reports whether line opens a section of the analysis rather than
// carrying a value: a markdown heading, or a short label such as
// "Key Findings" or "Patient-Friendly Explanation: ...".
func isHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return true
	}

	label := markdownMarks.Replace(listPrefix.ReplaceAllString(trimmed, ""))
	if idx, _ := firstSeparator(label); idx >= 0 {
		label = label[:idx]
	}
	label = strings.ToLower(strings.TrimSpace(label))

	if label == "" || len(strings.Fields(label)) > 4 {
		return false
	}
	return containsAny(label, sectionLabels) || containsAny(label, headingMarkers)
}

func afterSeparator(s string) (string, bool) {
	idx, n := firstSeparator(s)
	if idx < 0 {
		return "", false
	}
	return s[idx+n:], true
}

// firstSeparator returns the byte offset and length of the earliest
// separator in s, or -1.
func firstSeparator(s string) (int, int) {
	first, sepLen := -1, 0
	for _, sep := range separators {
		idx := strings.Index(s, sep)
		if idx >= 0 && (first < 0 || idx < first) {
			first, sepLen = idx, len(sep)
		}
	}
	return first, sepLen
}

func nextNonEmpty(lines []string, from int) (string, bool) {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i], true
		}
	}
	return "", false
}

func isAlternative(line string) bool {
	if !listPrefix.MatchString(line) {
		return false
	}
	lower := strings.ToLower(line)
	return strings.Contains(lower, "alternative") || strings.Contains(lower, "differential")
}

func clean(s string) string {
	s = listPrefix.ReplaceAllString(s, "")
	s = markdownMarks.Replace(s)
	s = strings.Trim(s, " \t*_")
	s = confidenceParens.ReplaceAllString(s, "")
	s = confidenceTail.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".,;: ")
	return clamp(s)
}

func clamp(s string) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
