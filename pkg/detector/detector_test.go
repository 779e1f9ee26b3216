package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "english",
			text: "School starts at eight in the morning and parents should drop off their children at the front entrance.",
			want: "en",
		},
		{
			name: "spanish",
			text: "Las clases comienzan a las ocho de la mañana y los padres deben dejar a sus hijos en la entrada principal.",
			want: "es",
		},
		{
			name: "japanese",
			text: "学校は午前八時に始まります。保護者の方は正面玄関でお子様を降ろしてください。",
			want: "ja",
		},
		{name: "empty", text: "", want: Unknown},
		{name: "whitespace only", text: "   \n\t ", want: Unknown},
		{name: "too short", text: "ok", want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.text))
		})
	}
}

func TestDetectNeverPanicsOnNoise(t *testing.T) {
	d := NewDetector()
	for _, text := range []string{"1234 5678 90", "!!! ??? ...", "https://example.org/a/b"} {
		assert.NotEmpty(t, d.Detect(text))
	}
}
