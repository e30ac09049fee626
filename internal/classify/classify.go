// Package classify tags chat text with a transcript category.
// Classification is pure and total: any input maps to exactly one category,
// unmatched text falls through to chat.
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dkeye/Huddle/internal/domain"
)

// Rule order is fixed and first match wins: a "/share file.pdf" is a
// command, not a file share.
var (
	eventPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)joined (the )?meeting`),
		regexp.MustCompile(`(?i)left (the )?meeting`),
		regexp.MustCompile(`(?i)(has )?entered the room`),
		regexp.MustCompile(`(?i)(has )?exited the room`),
	}

	filePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)uploaded file`),
		regexp.MustCompile(`(?i)shared file`),
		regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|pptx?|txt|zip|rar|jpg|png|gif)\b`),
	}

	shorthandReaction = regexp.MustCompile(`^\+\d+$`)
)

func Classify(text string) domain.Category {
	if strings.HasPrefix(text, "/") {
		return domain.CategoryCommand
	}
	for _, p := range eventPatterns {
		if p.MatchString(text) {
			return domain.CategoryEvent
		}
	}
	for _, p := range filePatterns {
		if p.MatchString(text) {
			return domain.CategoryFileShare
		}
	}
	if isReaction(strings.TrimSpace(text)) {
		return domain.CategoryReaction
	}
	return domain.CategoryChat
}

// isReaction reports whether text is a non-empty run of emoji or
// shorthand-reaction glyphs with nothing else mixed in.
func isReaction(text string) bool {
	if text == "" {
		return false
	}
	if shorthandReaction.MatchString(text) {
		return true
	}
	for _, r := range text {
		if !isReactionGlyph(r) {
			return false
		}
	}
	return true
}

func isReactionGlyph(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, supplemental
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r == 0xFE0F || r == 0x200D: // variation selector, ZWJ
		return true
	}
	return unicode.Is(unicode.So, r)
}
