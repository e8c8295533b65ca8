package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/freshness"
)

func TestEvaluateStages(t *testing.T) {
	ev := NewEvaluator(nil, 0, freshness.Table{})

	repost := raw("2", "someone", exampleText, 600, 20)
	repost.IsRepost = true

	tests := []struct {
		name   string
		raw    candidate.Raw
		stage  Stage
		reason string
	}{
		{"admitted", raw("1", "hubermanlab", exampleText, 600, 20), StageAdmitted, ""},
		{"repost", repost, StageNonRoot, "repost"},
		{"giveaway", raw("3", "someone", giveawayText, 600, 20), StageDisallowed, "giveaway"},
		{"profanity", raw("4", "someone", "This peer-reviewed study on sleep is fucking amazing, 42% improvement in 3 weeks", 600, 20), StageQuality, "profanity"},
		{"below threshold", raw("5", "someone", "Good morning everyone here", 600, 20), StageQuality, "below_threshold"},
		{"stale", raw("6", "someone", exampleText, 24, 30), StageFreshness, "below_min_likes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ev.Evaluate(candidate.Normalize(tt.raw, "seed", now))
			assert.Equal(t, tt.stage, e.Stage)
			assert.Equal(t, tt.reason, e.DropReason())
			assert.Equal(t, tt.stage == StageAdmitted, e.Admitted())
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	ev := NewEvaluator(nil, 0, freshness.Table{})
	c := candidate.Normalize(raw("1", "hubermanlab", exampleText, 600, 20), "seed", now)

	a, b := ev.Evaluate(c), ev.Evaluate(c)
	assert.Equal(t, a.Quality, b.Quality)
	assert.Equal(t, a.Signals, b.Signals)
	assert.Equal(t, a.Ranking, b.Ranking)
}

func TestEvaluationOpportunityCarriesNoteAndVersion(t *testing.T) {
	ev := NewEvaluator(nil, 0, freshness.Table{})
	r := raw("1", "someone", exampleText, 0, 20)
	r.PostedAt = ""

	o := ev.Evaluate(candidate.Normalize(r, "seed", now)).Opportunity()
	assert.Equal(t, freshness.NoteAgeUnknown, o.FreshnessNote)
	assert.Equal(t, ev.LexiconVersion(), o.LexiconVersion)
	assert.Nil(t, o.PostedAt)
}
