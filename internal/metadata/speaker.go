package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Speaker identifies one of the two dialogue characters.
type Speaker string

const (
	SpeakerA Speaker = "A"
	SpeakerB Speaker = "B"
)

func (s Speaker) Valid() bool {
	return s == SpeakerA || s == SpeakerB
}

// ParseSpeaker accepts "A"/"B" in any case.
func ParseSpeaker(v string) (Speaker, error) {
	switch Speaker(strings.ToUpper(strings.TrimSpace(v))) {
	case SpeakerA:
		return SpeakerA, nil
	case SpeakerB:
		return SpeakerB, nil
	}
	return "", fmt.Errorf("unknown speaker %q", v)
}

func (s *Speaker) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSpeaker(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Cast binds the two speaker tags to character names.
// Names appear in dialogue markers, clip file names and prompts.
type Cast struct {
	A string `json:"a"`
	B string `json:"b"`
}

func DefaultCast() Cast {
	return Cast{A: "rick", B: "morty"}
}

func (c Cast) Name(s Speaker) string {
	if s == SpeakerB {
		return c.B
	}
	return c.A
}

// Resolve maps a marker or name ("A", "b", "Rick") to a speaker tag.
func (c Cast) Resolve(v string) (Speaker, bool) {
	v = strings.TrimSpace(v)
	switch {
	case strings.EqualFold(v, string(SpeakerA)), c.A != "" && strings.EqualFold(v, c.A):
		return SpeakerA, true
	case strings.EqualFold(v, string(SpeakerB)), c.B != "" && strings.EqualFold(v, c.B):
		return SpeakerB, true
	}
	return "", false
}
