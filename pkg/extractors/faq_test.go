package extractors

import (
	"testing"

	"github.com/dtnitsch/school-kb/models"
	"github.com/stretchr/testify/assert"
)

func TestMineFAQ(t *testing.T) {
	tests := []struct {
		name   string
		blocks []string
		want   []models.QAPair
	}{
		{
			name:   "question then answer",
			blocks: []string{"When is pickup?", "3:15 PM."},
			want:   []models.QAPair{{Question: "When is pickup?", Answer: "3:15 PM."}},
		},
		{
			name:   "closing remark is not an answer candidate",
			blocks: []string{"Is lunch provided?", "Yes, daily.", "See you soon."},
			want:   []models.QAPair{{Question: "Is lunch provided?", Answer: "Yes, daily."}},
		},
		{
			name:   "consecutive questions pair only the last",
			blocks: []string{"A?", "B?", "Answer to B."},
			want:   []models.QAPair{{Question: "B?", Answer: "Answer to B."}},
		},
		{
			name:   "trailing question has no answer",
			blocks: []string{"Intro.", "Anything else?"},
			want:   nil,
		},
		{
			name:   "question mark must be last",
			blocks: []string{"Why? Because.", "Next block."},
			want:   nil,
		},
		{
			name:   "several pairs in order",
			blocks: []string{"Q1?", "A1.", "Filler.", "Q2?", "A2."},
			want: []models.QAPair{
				{Question: "Q1?", Answer: "A1."},
				{Question: "Q2?", Answer: "A2."},
			},
		},
		{
			name:   "full-width question mark is not a question",
			blocks: []string{"何時ですか？", "八時です。"},
			want:   nil,
		},
		{name: "empty", blocks: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MineFAQ(tt.blocks))
		})
	}
}

func TestExtractFAQSetsSource(t *testing.T) {
	page := &models.Page{
		URL: "https://example.org/faq",
		Blocks: []models.TextBlock{
			{Tag: "dt", Text: "Is there a uniform?"},
			{Tag: "dd", Text: "No."},
		},
	}
	got := ExtractFAQ(page)
	assert.Equal(t, []models.QAPair{{Question: "Is there a uniform?", Answer: "No.", SourceURL: "https://example.org/faq"}}, got)
	assert.Nil(t, ExtractFAQ(nil))
}
