package detector

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"github.com/pemistahl/lingua-go"
)

// Unknown is returned when no language can be determined.
const Unknown = "unknown"

// minSignalRunes is the shortest text worth classifying.
const minSignalRunes = 3

// DefaultLanguages covers the languages school sites in our deployments publish in.
var DefaultLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.Japanese,
	lingua.French,
	lingua.Portuguese,
	lingua.Chinese,
	lingua.Korean,
	lingua.Vietnamese,
	lingua.German,
	lingua.Italian,
	lingua.Russian,
	lingua.Arabic,
}

// Detector classifies text into an ISO-639-1 code. lingua handles the
// configured language set; whatlanggo covers anything lingua abstains on.
type Detector struct {
	lingua lingua.LanguageDetector
}

func NewDetector(languages ...lingua.Language) *Detector {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Detector{
		lingua: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			WithMinimumRelativeDistance(0.1).
			WithLowAccuracyMode().
			Build(),
	}
}

// Detect returns a lowercase ISO-639-1 code or Unknown. It never fails.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minSignalRunes {
		return Unknown
	}

	if lang, ok := d.lingua.DetectLanguageOf(text); ok {
		if code := strings.ToLower(lang.IsoCode639_1().String()); code != "" {
			return code
		}
	}

	info := whatlanggo.Detect(text)
	if info.IsReliable() {
		if code := info.Lang.Iso6391(); code != "" {
			return code
		}
	}
	return Unknown
}
