// Package signals computes the three text-only 0-1 scores that feed ranking:
// topical relevance, reply-worthiness and similarity to the brand anchors.
package signals

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/elonfeng/replyradar/pkg/classify"
	"github.com/elonfeng/replyradar/pkg/heuristics"
)

const (
	relevancePerKeyword    = 0.1
	relevanceKeywordCap    = 0.7
	authorityBonus         = 0.2
	authorityDepthBonus    = 0.1
	offTopicOnlyFactor     = 0.3
	offTopicMixedFactor    = 0.7
	quantifiedMinRelevance = 0.30

	replyBase          = 0.3
	hookQuestion       = 0.25
	hookControversy    = 0.15
	hookMindChange     = 0.15
	hookProtocol       = 0.12
	hookQuantified     = 0.10
	penaltyStrongPromo = 0.3
	penaltyWeakPromo   = 0.2
	penaltyVeryShort   = 0.3
	penaltyLinkOnly    = 0.4

	minReplyChars  = 10
	veryShortChars = 30

	minContextTerms  = 5
	contextBoostStep = 0.1
	contextBoostCap  = 0.5
)

var linkOnly = regexp.MustCompile(`^(?:https?://\S+\s*)+$`)

// Scores bundles the three signals for one post.
type Scores struct {
	Relevance         float64 `json:"relevance"`
	Replyability      float64 `json:"replyability"`
	ContextSimilarity float64 `json:"context_similarity"`
}

// Scorer computes signals against a lexicon. It is stateless and safe for
// concurrent use.
type Scorer struct {
	lex *heuristics.Lexicon
}

// NewScorer creates a Scorer.
func NewScorer(lex *heuristics.Lexicon) *Scorer {
	return &Scorer{lex: lex}
}

// Score computes all three signals. A disallowed reason zeroes relevance and
// replyability; context similarity is still reported.
func (s *Scorer) Score(text, author string, disallowed classify.Reason) Scores {
	ctx := s.ContextSimilarity(text)
	if disallowed != classify.ReasonNone {
		return Scores{ContextSimilarity: ctx}
	}

	rel, hits := s.relevance(text, author)
	return Scores{
		Relevance:         rel,
		Replyability:      s.replyability(text, rel, hits),
		ContextSimilarity: ctx,
	}
}

// Relevance scores topical fit. Allow-listed authors get a bonus and are
// exempt from the off-topic penalty.
func (s *Scorer) Relevance(text, author string) float64 {
	rel, _ := s.relevance(text, author)
	return rel
}

func (s *Scorer) relevance(text, author string) (float64, int) {
	hits := s.lex.Domain.Count(text)
	score := min(float64(hits)*relevancePerKeyword, relevanceKeywordCap)

	if s.lex.IsAuthority(author) {
		score += authorityBonus
		if hits >= 2 {
			score += authorityDepthBonus
		}
	} else if s.lex.OffTopicSoft.Any(text) {
		if hits == 0 {
			score *= offTopicOnlyFactor
		} else {
			score *= offTopicMixedFactor
		}
	}
	return clamp01(score), hits
}

// Replyability scores how strongly the post invites a reply.
func (s *Scorer) Replyability(text string) float64 {
	rel, hits := s.relevance(text, "")
	return s.replyability(text, rel, hits)
}

func (s *Scorer) replyability(text string, relevance float64, domainHits int) float64 {
	text = strings.TrimSpace(text)
	length := utf8.RuneCountInString(text)
	if length < minReplyChars {
		return 0
	}

	score := replyBase
	if s.lex.Question.Any(text) {
		score += hookQuestion
	}
	if s.lex.Controversy.Any(text) {
		score += hookControversy
	}
	if s.lex.MindChange.Any(text) {
		score += hookMindChange
	}
	if s.lex.Protocol.Any(text) {
		score += hookProtocol
	}
	// Numbers only count as evidence when the post is on-topic.
	if s.lex.Quantified.Any(text) && (relevance >= quantifiedMinRelevance || domainHits > 0) {
		score += hookQuantified
	}

	score -= penaltyStrongPromo * float64(len(s.lex.StrongPromo.Matched(text)))
	if s.lex.WeakPromo.Any(text) {
		score -= penaltyWeakPromo
	}
	if length < veryShortChars {
		score -= penaltyVeryShort
	}
	if linkOnly.MatchString(text) {
		score -= penaltyLinkOnly
	}
	return clamp01(score)
}

// ContextSimilarity measures overlap with the brand anchor vocabulary.
func (s *Scorer) ContextSimilarity(text string) float64 {
	terms := s.lex.Terms(text)
	if len(terms) == 0 {
		return 0
	}

	matches := 0
	for _, t := range terms {
		if s.lex.IsAnchorTerm(t) {
			matches++
		}
	}

	raw := float64(matches) / float64(max(len(terms), minContextTerms))
	boosted := raw * (1 + min(float64(matches)*contextBoostStep, contextBoostCap))
	return clamp01(boosted)
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
