package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/elonfeng/replyradar/pkg/heuristics"
)

// Reason identifies why content is disallowed. ReasonNone means allowed.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonSensitive Reason = "sensitive"
	ReasonPromoPR   Reason = "promo_pr"
	ReasonGiveaway  Reason = "giveaway"
	ReasonEmptyText Reason = "empty_text"
	ReasonImageOnly Reason = "image_only"
)

const (
	minTextChars      = 10
	imageOnlyMaxChars = 50
)

var leadingLink = regexp.MustCompile(`^(https?://|pic\.twitter\.com/|t\.co/)\S*`)

// Disallowed classifies content that must never become an opportunity.
type Disallowed struct {
	lex *heuristics.Lexicon
}

// NewDisallowed creates a classifier over lex.
func NewDisallowed(lex *heuristics.Lexicon) *Disallowed {
	return &Disallowed{lex: lex}
}

// Classify returns the first matching reason in priority order: sensitive,
// promo_pr, giveaway, empty_text, image_only. Sensitive always wins.
func (d *Disallowed) Classify(text, author, url string) Reason {
	trimmed := strings.TrimSpace(text)

	switch {
	case d.lex.Sensitive.Any(trimmed):
		return ReasonSensitive
	case d.lex.PromoPR.Any(trimmed):
		return ReasonPromoPR
	case d.lex.Giveaway.Any(trimmed):
		return ReasonGiveaway
	case utf8.RuneCountInString(trimmed) < minTextChars:
		return ReasonEmptyText
	case startsWithLink(trimmed, url) && utf8.RuneCountInString(trimmed) < imageOnlyMaxChars:
		return ReasonImageOnly
	}
	return ReasonNone
}

func startsWithLink(text, url string) bool {
	if leadingLink.MatchString(text) {
		return true
	}
	return url != "" && strings.HasPrefix(text, url)
}
