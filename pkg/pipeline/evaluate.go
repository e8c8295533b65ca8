package pipeline

import (
	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/classify"
	"github.com/elonfeng/replyradar/pkg/freshness"
	"github.com/elonfeng/replyradar/pkg/heuristics"
	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/quality"
	"github.com/elonfeng/replyradar/pkg/rank"
	"github.com/elonfeng/replyradar/pkg/signals"
)

// Stage names the admission gate a candidate stopped at.
type Stage string

const (
	StageNonRoot    Stage = "non_root"
	StageDisallowed Stage = "disallowed"
	StageQuality    Stage = "quality"
	StageFreshness  Stage = "freshness"
	StageAdmitted   Stage = "admitted"
)

// Evaluation is the full, side-effect free assessment of one candidate. Every
// score is computed even when an earlier gate rejects the candidate.
type Evaluation struct {
	Candidate  candidate.Candidate `json:"-"`
	Root       bool                `json:"root"`
	Disallowed classify.Reason     `json:"disallowed,omitempty"`
	Quality    quality.Result      `json:"quality"`
	Freshness  freshness.Decision  `json:"freshness"`
	Signals    signals.Scores      `json:"signals"`
	Ranking    rank.Ranking        `json:"ranking"`
	Stage      Stage               `json:"stage"`

	lexiconVersion string
}

// Admitted reports whether the candidate cleared every gate.
func (e Evaluation) Admitted() bool { return e.Stage == StageAdmitted }

// DropReason is a short code for why the candidate was rejected.
func (e Evaluation) DropReason() string {
	switch e.Stage {
	case StageNonRoot:
		switch {
		case e.Candidate.IsRepost:
			return "repost"
		case e.Candidate.IsReply:
			return "reply"
		default:
			return "continuation"
		}
	case StageDisallowed:
		return string(e.Disallowed)
	case StageQuality:
		if e.Quality.BlockReason != "" {
			return e.Quality.BlockReason
		}
		return "below_threshold"
	case StageFreshness:
		return "below_min_likes"
	}
	return ""
}

// Opportunity builds the storable record for the evaluation.
func (e Evaluation) Opportunity() opportunity.Opportunity {
	o := opportunity.Build(e.Candidate, e.Quality, e.Signals, e.Ranking)
	o.FreshnessNote = e.Freshness.Note
	o.LexiconVersion = e.lexiconVersion
	return o
}

// Evaluator runs the classifiers and scorers against one lexicon. It holds no
// mutable state and is safe for concurrent use.
type Evaluator struct {
	lex        *heuristics.Lexicon
	disallowed *classify.Disallowed
	quality    *quality.Scorer
	freshness  *freshness.Gate
	signals    *signals.Scorer
}

// NewEvaluator wires the scorers. A nil lexicon selects the embedded default.
func NewEvaluator(lex *heuristics.Lexicon, qualityThreshold int, table freshness.Table) *Evaluator {
	if lex == nil {
		lex = heuristics.Default()
	}
	return &Evaluator{
		lex:        lex,
		disallowed: classify.NewDisallowed(lex),
		quality:    quality.NewScorer(lex, qualityThreshold),
		freshness:  freshness.NewGate(table),
		signals:    signals.NewScorer(lex),
	}
}

// LexiconVersion returns the version of the heuristic tables in use.
func (ev *Evaluator) LexiconVersion() string { return ev.lex.Version }

// Evaluate scores c and records the first gate it fails, in admission order:
// root, disallowed, quality, freshness.
func (ev *Evaluator) Evaluate(c candidate.Candidate) Evaluation {
	e := Evaluation{
		Candidate:      c,
		Root:           classify.IsRoot(c),
		Disallowed:     ev.disallowed.Classify(c.Text, c.Author, c.URL),
		lexiconVersion: ev.lex.Version,
	}
	e.Quality = ev.quality.Score(quality.Input{
		Text:      c.Text,
		Author:    c.Author,
		Followers: c.Followers,
		Views:     c.Views,
		Likes:     c.Likes,
	})
	e.Freshness = ev.freshness.Check(c)
	e.Signals = ev.signals.Score(c.Text, c.Author, e.Disallowed)
	e.Ranking = rank.Rank(c, e.Quality, e.Signals)

	switch {
	case !e.Root:
		e.Stage = StageNonRoot
	case e.Disallowed != classify.ReasonNone:
		e.Stage = StageDisallowed
	case !e.Quality.Pass:
		e.Stage = StageQuality
	case !e.Freshness.Pass:
		e.Stage = StageFreshness
	default:
		e.Stage = StageAdmitted
	}
	return e
}
