package dialogue

import (
	"context"
	_ "embed"
	"regexp"
	"strconv"
	"strings"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/sngdarren/mr-team/pkg/log"
)

//go:embed prompts/segment.txt
var segmentPrompt string

//go:embed prompts/dialogue.txt
var dialoguePrompt string

// Chatter is the completion call the generator needs.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, prompt string) (string, error)
}

type Generator struct {
	chat        Chatter
	cast        metadata.Cast
	maxSegments int
}

func NewGenerator(chat Chatter, cast metadata.Cast, maxSegments int) *Generator {
	if maxSegments <= 0 {
		maxSegments = 3
	}
	return &Generator{chat: chat, cast: cast, maxSegments: maxSegments}
}

func (g *Generator) Cast() metadata.Cast {
	return g.cast
}

// Segment asks the model to cut text into scenes. When the answer holds no
// recognizable SEGMENT block, the whole text is one scene.
func (g *Generator) Segment(ctx context.Context, text, languageName string) ([]string, error) {
	system := render(segmentPrompt, map[string]string{
		"max":      strconv.Itoa(g.maxSegments),
		"language": languageName,
	})
	answer, err := g.chat.Chat(ctx, system, text)
	if err != nil {
		return nil, err
	}

	chunks := ParseSegments(answer)
	if len(chunks) == 0 {
		log.Warn("Segmenter returned no SEGMENT blocks, using the whole document as one scene")
		return []string{text}, nil
	}
	if len(chunks) > g.maxSegments {
		chunks = chunks[:g.maxSegments]
	}
	return chunks, nil
}

// Dialogue turns one chunk into parsed dialogue lines.
func (g *Generator) Dialogue(ctx context.Context, chunk, languageName string) ([]Line, error) {
	system := render(dialoguePrompt, map[string]string{
		"a":        g.cast.A,
		"b":        g.cast.B,
		"language": languageName,
	})
	answer, err := g.chat.Chat(ctx, system, chunk)
	if err != nil {
		return nil, err
	}

	lines := Parse(answer, g.cast)
	if len(lines) == 0 {
		return nil, apperr.New(apperr.ErrRemoteService, "dialogue answer contained no tagged lines")
	}
	return lines, nil
}

var (
	segmentHeader = regexp.MustCompile(`(?im)^\s*SEGMENT\s+\d+\s*:?\s*$`)
	scriptLabel   = regexp.MustCompile(`(?i)script\s*:`)
)

// ParseSegments extracts the Script body of each SEGMENT block, in order.
func ParseSegments(answer string) []string {
	bounds := segmentHeader.FindAllStringIndex(answer, -1)
	chunks := make([]string, 0, len(bounds))
	for i, b := range bounds {
		end := len(answer)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		block := answer[b[1]:end]
		if loc := scriptLabel.FindStringIndex(block); loc != nil {
			block = block[loc[1]:]
		}
		if body := strings.TrimSpace(block); body != "" {
			chunks = append(chunks, body)
		}
	}
	return chunks
}

func render(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{{"+k+"}}", v)
	}
	return strings.TrimSpace(tmpl)
}
