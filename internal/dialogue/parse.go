package dialogue

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sngdarren/mr-team/internal/metadata"
)

// Line is one spoken line of a dialogue.
type Line struct {
	Speaker metadata.Speaker
	Text    string
}

// markerPattern matches [A], [B] and the cast names, case-insensitively.
func markerPattern(cast metadata.Cast) *regexp.Regexp {
	alts := []string{"a", "b"}
	for _, name := range []string{cast.A, cast.B} {
		if name != "" {
			alts = append(alts, regexp.QuoteMeta(name))
		}
	}
	return regexp.MustCompile(fmt.Sprintf(`(?i)\[(%s)\]\s*`, strings.Join(alts, "|")))
}

// Parse splits marked-up dialogue text into ordered lines. Text before the first
// marker is discarded and lines with no text are skipped.
func Parse(text string, cast metadata.Cast) []Line {
	re := markerPattern(cast)
	matches := re.FindAllStringSubmatchIndex(text, -1)

	lines := make([]Line, 0, len(matches))
	for i, m := range matches {
		speaker, ok := cast.Resolve(text[m[2]:m[3]])
		if !ok {
			continue
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.Join(strings.Fields(text[m[1]:end]), " ")
		if body == "" {
			continue
		}
		lines = append(lines, Line{Speaker: speaker, Text: body})
	}
	return lines
}
