package dialogue

import (
	"testing"

	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cast := metadata.DefaultCast()

	tests := []struct {
		name string
		text string
		want []Line
	}{
		{
			name: "letters",
			text: "[A] Hello there. [B] Hi!",
			want: []Line{
				{Speaker: metadata.SpeakerA, Text: "Hello there."},
				{Speaker: metadata.SpeakerB, Text: "Hi!"},
			},
		},
		{
			name: "names mixed case across newlines",
			text: "Sure, here is the dialogue:\n[Rick] Morty, listen.\n  It's science.\n[MORTY] Oh geez.\n",
			want: []Line{
				{Speaker: metadata.SpeakerA, Text: "Morty, listen. It's science."},
				{Speaker: metadata.SpeakerB, Text: "Oh geez."},
			},
		},
		{
			name: "empty lines skipped",
			text: "[rick]   [morty] Wait what? [rick]\n",
			want: []Line{
				{Speaker: metadata.SpeakerB, Text: "Wait what?"},
			},
		},
		{
			name: "no markers",
			text: "Just prose.",
			want: []Line{},
		},
		{
			name: "unknown tag stays in text",
			text: "[a] Look at [summer] over there.",
			want: []Line{
				{Speaker: metadata.SpeakerA, Text: "Look at [summer] over there."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text, cast))
		})
	}
}

func TestParse_CustomCastEscapesNames(t *testing.T) {
	cast := metadata.Cast{A: "Dr. X", B: "Y+"}
	got := Parse("[dr. x] One. [y+] Two.", cast)
	assert.Equal(t, []Line{
		{Speaker: metadata.SpeakerA, Text: "One."},
		{Speaker: metadata.SpeakerB, Text: "Two."},
	}, got)
}
