package metadata

import (
	"github.com/sngdarren/mr-team/internal/apperr"
)

// SegmentMetadata describes one scene. Index i of every slice describes line i.
// Transcripts and Person are filled first; Filename and Timestamps once audio is rendered.
type SegmentMetadata struct {
	Transcripts []string  `json:"transcripts"`
	Person      []Speaker `json:"person"`
	Filename    []string  `json:"filename"`
	Timestamps  []float64 `json:"timestamps"`
}

// Lines returns the number of dialogue lines.
func (s *SegmentMetadata) Lines() int {
	return len(s.Transcripts)
}

// Rendered reports whether the audio phase has populated the segment.
func (s *SegmentMetadata) Rendered() bool {
	return len(s.Timestamps) > 0 && len(s.Filename) > 0
}

// ValidateForComposition checks that the segment is fully populated and aligned.
func (s *SegmentMetadata) ValidateForComposition() error {
	if len(s.Timestamps) == 0 {
		return apperr.New(apperr.ErrInvalidTimeline, "timestamps are missing")
	}
	n := len(s.Transcripts)
	if len(s.Person) != n || len(s.Filename) != n || len(s.Timestamps) != n {
		return apperr.New(apperr.ErrLengthMismatch,
			"parallel arrays differ: transcripts=%d person=%d filename=%d timestamps=%d",
			len(s.Transcripts), len(s.Person), len(s.Filename), len(s.Timestamps))
	}
	return nil
}

// AppendLine adds a dialogue line in the first phase.
func (s *SegmentMetadata) AppendLine(speaker Speaker, text string) {
	s.Transcripts = append(s.Transcripts, text)
	s.Person = append(s.Person, speaker)
}

func (s *SegmentMetadata) clone() *SegmentMetadata {
	return &SegmentMetadata{
		Transcripts: append([]string(nil), s.Transcripts...),
		Person:      append([]Speaker(nil), s.Person...),
		Filename:    append([]string(nil), s.Filename...),
		Timestamps:  append([]float64(nil), s.Timestamps...),
	}
}
