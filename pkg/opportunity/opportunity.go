// Package opportunity defines the durable record produced by the pipeline and
// the per-account harvest statistics.
package opportunity

import (
	"time"

	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/freshness"
	"github.com/elonfeng/replyradar/pkg/quality"
	"github.com/elonfeng/replyradar/pkg/rank"
	"github.com/elonfeng/replyradar/pkg/signals"
)

// Status is the lifecycle state of a stored opportunity.
type Status string

const (
	StatusPending  Status = "pending"
	StatusConsumed Status = "consumed"
)

// AdmissionPath records how an opportunity got past the gates.
type AdmissionPath string

const (
	AdmissionNormal     AdmissionPath = "normal"
	AdmissionStarvation AdmissionPath = "starvation_fallback"
)

// Opportunity is one stored reply opportunity. PostID is the sole identity.
type Opportunity struct {
	PostID             string          `json:"post_id"`
	Author             string          `json:"author"`
	AuthorFollowers    candidate.Count `json:"author_followers"`
	Text               string          `json:"text"`
	URL                string          `json:"url,omitempty"`
	Likes              candidate.Count `json:"likes"`
	Replies            candidate.Count `json:"replies"`
	Reposts            candidate.Count `json:"reposts"`
	Views              candidate.Count `json:"views"`
	PostedAt           *time.Time      `json:"posted_at,omitempty"`
	AgeMinutes         int             `json:"age_minutes"`
	Velocity           float64         `json:"velocity"`
	IsReply            bool            `json:"is_reply"`
	IsRepost           bool            `json:"is_repost"`
	IsOrigin           bool            `json:"is_origin"`
	RepliedToID        string          `json:"replied_to_id,omitempty"`
	ConversationRootID string          `json:"conversation_root_id,omitempty"`

	Quality     quality.Result   `json:"quality"`
	Signals     signals.Scores   `json:"signals"`
	LegacyScore float64          `json:"legacy_score"`
	FinalScore  float64          `json:"opportunity_score_final"`
	ValueTier   rank.ValueTier   `json:"value_tier"`
	HarvestTier rank.HarvestTier `json:"harvest_tier"`

	Status         Status         `json:"status"`
	AdmissionPath  AdmissionPath  `json:"admission_path"`
	FreshnessNote  freshness.Note `json:"freshness_note,omitempty"`
	SourceAccount  string         `json:"source_account"`
	BatchID        string         `json:"batch_id"`
	LexiconVersion string         `json:"lexicon_version"`
	HarvestedAt    time.Time      `json:"harvested_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ConsumedAt     *time.Time     `json:"consumed_at,omitempty"`
}

// Build assembles a pending opportunity from a candidate and its scores.
func Build(c candidate.Candidate, q quality.Result, s signals.Scores, r rank.Ranking) Opportunity {
	o := Opportunity{
		PostID:             c.ID,
		Author:             c.Author,
		AuthorFollowers:    c.Followers,
		Text:               c.Text,
		URL:                c.URL,
		Likes:              c.Likes,
		Replies:            c.Replies,
		Reposts:            c.Reposts,
		Views:              c.Views,
		AgeMinutes:         c.AgeMinutes,
		Velocity:           c.Velocity,
		IsReply:            c.IsReply,
		IsRepost:           c.IsRepost,
		IsOrigin:           c.IsOrigin,
		RepliedToID:        c.RepliedToID,
		ConversationRootID: c.ConversationRootID,
		Quality:            q,
		Signals:            s,
		LegacyScore:        r.Legacy,
		FinalScore:         r.Final,
		ValueTier:          r.ValueTier,
		HarvestTier:        r.HarvestTier,
		Status:             StatusPending,
		AdmissionPath:      AdmissionNormal,
		SourceAccount:      c.SourceAccount,
	}
	if c.AgeKnown {
		posted := c.PostedAt
		o.PostedAt = &posted
	}
	return o
}

// SeedStat aggregates one account's harvest outcomes for a run. The external
// seed scheduler re-weights source accounts from these counts.
type SeedStat struct {
	Account string `json:"account"`
	BatchID string `json:"batch_id"`

	Scraped        int `json:"scraped"`
	NonRoot        int `json:"non_root"`
	Disallowed     int `json:"disallowed"`
	QualityBlocked int `json:"quality_blocked"`
	FreshnessFail  int `json:"freshness_failed"`
	Stored         int `json:"stored"`
	FallbackStored int `json:"fallback_stored"`
	StoreErrors    int `json:"store_errors"`

	RelevanceMid     int `json:"relevance_mid"`
	RelevanceHigh    int `json:"relevance_high"`
	ReplyabilityMid  int `json:"replyability_mid"`
	ReplyabilityHigh int `json:"replyability_high"`

	ScrapeFailed bool      `json:"scrape_failed"`
	RunAt        time.Time `json:"run_at"`
}

// Gate tiers for SeedStat counters.
const (
	RelevanceMidGate     = 0.3
	RelevanceHighGate    = 0.6
	ReplyabilityMidGate  = 0.4
	ReplyabilityHighGate = 0.6
)

// CountSignals increments the gate-tier counters for s.
func (st *SeedStat) CountSignals(s signals.Scores) {
	if s.Relevance >= RelevanceMidGate {
		st.RelevanceMid++
	}
	if s.Relevance >= RelevanceHighGate {
		st.RelevanceHigh++
	}
	if s.Replyability >= ReplyabilityMidGate {
		st.ReplyabilityMid++
	}
	if s.Replyability >= ReplyabilityHighGate {
		st.ReplyabilityHigh++
	}
}
