// Package quality scores the content quality of a candidate post on a 0-100
// scale and maps the score to a tier.
package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/heuristics"
)

// Tier is the quality bucket derived from a score.
type Tier string

const (
	TierElite   Tier = "elite"
	TierGood    Tier = "good"
	TierBlocked Tier = "blocked"
)

// Block reasons. A blocked result has score 0 regardless of other signals.
const (
	BlockProfanity       = "profanity"
	BlockCrudeHumor      = "crude_humor"
	BlockOffTopic        = "off_topic"
	BlockMemeNoSubstance = "meme_no_substance"
)

const (
	// DefaultPassThreshold is the minimum score for a passing result.
	DefaultPassThreshold = 50
	// EliteThreshold is fixed; only the pass threshold is configurable.
	EliteThreshold = 85

	baseScore = 50

	healthPerCategory = 7
	healthCap         = 30
	actionablePer     = 5
	actionableCap     = 15

	memeShortChars = 150
)

var (
	numericToken = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	percentage   = regexp.MustCompile(`\d+(?:\.\d+)?\s?%`)
)

// Input is everything the scorer looks at.
type Input struct {
	Text      string
	Author    string
	Followers candidate.Count
	Views     candidate.Count
	Likes     candidate.Count
}

// Result is the outcome of scoring one post.
type Result struct {
	Score       int      `json:"score"`
	Pass        bool     `json:"pass"`
	Reasons     []string `json:"reasons"`
	BlockReason string   `json:"block_reason,omitempty"`
	Tier        Tier     `json:"tier"`
	Multiplier  float64  `json:"multiplier"`
}

// Scorer computes quality results against a lexicon.
type Scorer struct {
	lex       *heuristics.Lexicon
	threshold int
}

// NewScorer creates a scorer. A non-positive threshold selects the default.
func NewScorer(lex *heuristics.Lexicon, passThreshold int) *Scorer {
	if passThreshold <= 0 {
		passThreshold = DefaultPassThreshold
	}
	return &Scorer{lex: lex, threshold: passThreshold}
}

// Threshold returns the configured pass threshold.
func (s *Scorer) Threshold() int { return s.threshold }

// Score evaluates in.
func (s *Scorer) Score(in Input) Result {
	text := strings.TrimSpace(in.Text)
	length := utf8.RuneCountInString(text)
	healthHits := s.lex.HealthCategories.Matched(text)

	if reason := s.blockReason(text, length, len(healthHits)); reason != "" {
		return blocked(reason)
	}

	score := baseScore
	var reasons []string
	add := func(code string, delta int) {
		score += delta
		reasons = append(reasons, fmt.Sprintf("%s%+d", code, delta))
	}

	if n := len(healthHits); n > 0 {
		add("health_keywords", min(n*healthPerCategory, healthCap))
	}
	if n := s.lex.Actionable.Count(text); n > 0 {
		add("actionable", min(n*actionablePer, actionableCap))
	}

	switch {
	case length >= 100 && length <= 280:
		add("good_length", 5)
	case length < 50:
		add("short_text", -10)
	}

	if len(numericToken.FindAllString(text, -1)) >= 2 {
		add("data_points", 12)
	}
	if percentage.MatchString(text) {
		add("percentage", 5)
	}

	if s.lex.Credentials.Any(candidate.NormalizeHandle(in.Author)) {
		add("credentialed_author", 10)
	}

	switch {
	case in.Followers.AtLeast(1_000_000):
		add("followers_1m", 15)
	case in.Followers.AtLeast(100_000):
		add("followers_100k", 10)
	case in.Followers.AtLeast(10_000):
		add("followers_10k", 5)
	}

	switch {
	case in.Views.AtLeast(10_000_000):
		add("views_10m", 20)
	case in.Views.AtLeast(1_000_000):
		add("views_1m", 15)
	case in.Views.AtLeast(100_000):
		add("views_100k", 10)
	}

	if mostlyUppercase(text) {
		add("shouting", -15)
	}
	if countEmoji(text) > 5 {
		add("emoji_heavy", -10)
	}
	if s.lex.PromoCTA.Any(text) {
		add("promo_cta", -10)
	}
	if n := s.lex.MemeTemplates.Count(text); n > 0 {
		add("meme_template", -5*n)
	}

	score = clamp(score, 0, 100)
	tier, mult := TierFor(score, s.threshold)
	return Result{
		Score:      score,
		Pass:       score >= s.threshold,
		Reasons:    reasons,
		Tier:       tier,
		Multiplier: mult,
	}
}

func (s *Scorer) blockReason(text string, length, healthHits int) string {
	switch {
	case s.lex.Profanity.Any(text):
		return BlockProfanity
	case s.lex.CrudeHumor.Any(text):
		return BlockCrudeHumor
	case s.lex.OffTopicBlock.Any(text):
		return BlockOffTopic
	case s.lex.MemeTemplates.Any(text) && length < memeShortChars && healthHits == 0:
		return BlockMemeNoSubstance
	}
	return ""
}

func blocked(reason string) Result {
	return Result{
		Score:       0,
		Reasons:     []string{"blocked:" + reason},
		BlockReason: reason,
		Tier:        TierBlocked,
		Multiplier:  0,
	}
}

// TierFor maps a score to its tier and multiplier.
func TierFor(score, passThreshold int) (Tier, float64) {
	switch {
	case score >= EliteThreshold:
		return TierElite, 1.5
	case score >= passThreshold:
		return TierGood, 1.2
	default:
		return TierBlocked, 0
	}
}

func mostlyUppercase(text string) bool {
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return letters > 0 && upper*2 > letters
}

func countEmoji(text string) int {
	n := 0
	for _, r := range text {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	}
	return false
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
