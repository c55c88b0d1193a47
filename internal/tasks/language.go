package tasks

import (
	"strings"

	"golang.org/x/text/language"
)

const hebrewRatioThreshold = 0.3

func isHebrew(r rune) bool { return r >= 0x0590 && r <= 0x05FF }

func isLatinLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// DetectLanguage returns "he" when more than 30% of the Latin and Hebrew
// letters in text are Hebrew, and "en" otherwise.
func DetectLanguage(text string) string {
	var hebrew, total int
	for _, r := range text {
		switch {
		case isHebrew(r):
			hebrew++
			total++
		case isLatinLetter(r):
			total++
		}
	}
	if total == 0 {
		return "en"
	}
	if float64(hebrew)/float64(total) > hebrewRatioThreshold {
		return "he"
	}
	return "en"
}

// NormalizeLanguage reduces a BCP 47 tag such as "he-IL" to its base
// language. It returns "" when tag cannot be parsed.
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	base, conf := t.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// ResolveLanguage prefers the requested language and falls back to detection.
func ResolveLanguage(requested, text string) string {
	if lang := NormalizeLanguage(requested); lang != "" {
		return lang
	}
	return DetectLanguage(text)
}
