package analysis

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// detectLanguage returns a normalized BCP 47 tag for the dominant language
// of the document text, or "" when detection is not reliable.
func detectLanguage(text string) string {
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}
