package store

import (
	"encoding/json"
	"time"

	"github.com/elonfeng/replyradar/pkg/candidate"
	"github.com/elonfeng/replyradar/pkg/freshness"
	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/quality"
	"github.com/elonfeng/replyradar/pkg/rank"
	"github.com/elonfeng/replyradar/pkg/signals"
)

// opportunityRow is the flat column mapping of an Opportunity. Unknown
// metrics are stored as NULL, never as zero.
type opportunityRow struct {
	PostID             string     `db:"post_id"`
	Author             string     `db:"author"`
	AuthorFollowers    *int64     `db:"author_followers"`
	Text               string     `db:"text"`
	URL                string     `db:"url"`
	Likes              *int64     `db:"likes"`
	Replies            *int64     `db:"replies"`
	Reposts            *int64     `db:"reposts"`
	Views              *int64     `db:"views"`
	PostedAt           *time.Time `db:"posted_at"`
	AgeMinutes         int        `db:"age_minutes"`
	Velocity           float64    `db:"velocity"`
	IsReply            bool       `db:"is_reply"`
	IsRepost           bool       `db:"is_repost"`
	IsOrigin           bool       `db:"is_origin"`
	RepliedToID        string     `db:"replied_to_id"`
	ConversationRootID string     `db:"conversation_root_id"`

	QualityScore       int     `db:"quality_score"`
	QualityPass        bool    `db:"quality_pass"`
	QualityTier        string  `db:"quality_tier"`
	QualityReasons     string  `db:"quality_reasons"`
	QualityBlockReason string  `db:"quality_block_reason"`
	QualityMultiplier  float64 `db:"quality_multiplier"`
	Relevance          float64 `db:"relevance"`
	Replyability       float64 `db:"replyability"`
	ContextSimilarity  float64 `db:"context_similarity"`
	LegacyScore        float64 `db:"legacy_score"`
	FinalScore         float64 `db:"final_score"`
	ValueTier          string  `db:"value_tier"`
	HarvestTier        string  `db:"harvest_tier"`

	Status         string     `db:"status"`
	AdmissionPath  string     `db:"admission_path"`
	FreshnessNote  string     `db:"freshness_note"`
	SourceAccount  string     `db:"source_account"`
	BatchID        string     `db:"batch_id"`
	LexiconVersion string     `db:"lexicon_version"`
	HarvestedAt    time.Time  `db:"harvested_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	ConsumedAt     *time.Time `db:"consumed_at"`
}

func toRow(o *opportunity.Opportunity) opportunityRow {
	reasons, _ := json.Marshal(o.Quality.Reasons)
	return opportunityRow{
		PostID:             o.PostID,
		Author:             o.Author,
		AuthorFollowers:    o.AuthorFollowers.Ptr(),
		Text:               o.Text,
		URL:                o.URL,
		Likes:              o.Likes.Ptr(),
		Replies:            o.Replies.Ptr(),
		Reposts:            o.Reposts.Ptr(),
		Views:              o.Views.Ptr(),
		PostedAt:           utcPtr(o.PostedAt),
		AgeMinutes:         o.AgeMinutes,
		Velocity:           o.Velocity,
		IsReply:            o.IsReply,
		IsRepost:           o.IsRepost,
		IsOrigin:           o.IsOrigin,
		RepliedToID:        o.RepliedToID,
		ConversationRootID: o.ConversationRootID,
		QualityScore:       o.Quality.Score,
		QualityPass:        o.Quality.Pass,
		QualityTier:        string(o.Quality.Tier),
		QualityReasons:     string(reasons),
		QualityBlockReason: o.Quality.BlockReason,
		QualityMultiplier:  o.Quality.Multiplier,
		Relevance:          o.Signals.Relevance,
		Replyability:       o.Signals.Replyability,
		ContextSimilarity:  o.Signals.ContextSimilarity,
		LegacyScore:        o.LegacyScore,
		FinalScore:         o.FinalScore,
		ValueTier:          string(o.ValueTier),
		HarvestTier:        string(o.HarvestTier),
		Status:             string(o.Status),
		AdmissionPath:      string(o.AdmissionPath),
		FreshnessNote:      string(o.FreshnessNote),
		SourceAccount:      o.SourceAccount,
		BatchID:            o.BatchID,
		LexiconVersion:     o.LexiconVersion,
		HarvestedAt:        o.HarvestedAt.UTC(),
		UpdatedAt:          o.UpdatedAt.UTC(),
		ConsumedAt:         utcPtr(o.ConsumedAt),
	}
}

func (r opportunityRow) toOpportunity() opportunity.Opportunity {
	var reasons []string
	json.Unmarshal([]byte(r.QualityReasons), &reasons)
	return opportunity.Opportunity{
		PostID:             r.PostID,
		Author:             r.Author,
		AuthorFollowers:    candidate.FromPtr(r.AuthorFollowers),
		Text:               r.Text,
		URL:                r.URL,
		Likes:              candidate.FromPtr(r.Likes),
		Replies:            candidate.FromPtr(r.Replies),
		Reposts:            candidate.FromPtr(r.Reposts),
		Views:              candidate.FromPtr(r.Views),
		PostedAt:           r.PostedAt,
		AgeMinutes:         r.AgeMinutes,
		Velocity:           r.Velocity,
		IsReply:            r.IsReply,
		IsRepost:           r.IsRepost,
		IsOrigin:           r.IsOrigin,
		RepliedToID:        r.RepliedToID,
		ConversationRootID: r.ConversationRootID,
		Quality: quality.Result{
			Score:       r.QualityScore,
			Pass:        r.QualityPass,
			Reasons:     reasons,
			BlockReason: r.QualityBlockReason,
			Tier:        quality.Tier(r.QualityTier),
			Multiplier:  r.QualityMultiplier,
		},
		Signals: signals.Scores{
			Relevance:         r.Relevance,
			Replyability:      r.Replyability,
			ContextSimilarity: r.ContextSimilarity,
		},
		LegacyScore:    r.LegacyScore,
		FinalScore:     r.FinalScore,
		ValueTier:      rank.ValueTier(r.ValueTier),
		HarvestTier:    rank.HarvestTier(r.HarvestTier),
		Status:         opportunity.Status(r.Status),
		AdmissionPath:  opportunity.AdmissionPath(r.AdmissionPath),
		FreshnessNote:  freshness.Note(r.FreshnessNote),
		SourceAccount:  r.SourceAccount,
		BatchID:        r.BatchID,
		LexiconVersion: r.LexiconVersion,
		HarvestedAt:    r.HarvestedAt,
		UpdatedAt:      r.UpdatedAt,
		ConsumedAt:     r.ConsumedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type seedStatRow struct {
	ID               int64     `db:"id"`
	Account          string    `db:"account"`
	BatchID          string    `db:"batch_id"`
	Scraped          int       `db:"scraped"`
	NonRoot          int       `db:"non_root"`
	Disallowed       int       `db:"disallowed"`
	QualityBlocked   int       `db:"quality_blocked"`
	FreshnessFailed  int       `db:"freshness_failed"`
	Stored           int       `db:"stored"`
	FallbackStored   int       `db:"fallback_stored"`
	StoreErrors      int       `db:"store_errors"`
	RelevanceMid     int       `db:"relevance_mid"`
	RelevanceHigh    int       `db:"relevance_high"`
	ReplyabilityMid  int       `db:"replyability_mid"`
	ReplyabilityHigh int       `db:"replyability_high"`
	ScrapeFailed     bool      `db:"scrape_failed"`
	RunAt            time.Time `db:"run_at"`
}

func toSeedStatRow(st opportunity.SeedStat) seedStatRow {
	return seedStatRow{
		Account:          st.Account,
		BatchID:          st.BatchID,
		Scraped:          st.Scraped,
		NonRoot:          st.NonRoot,
		Disallowed:       st.Disallowed,
		QualityBlocked:   st.QualityBlocked,
		FreshnessFailed:  st.FreshnessFail,
		Stored:           st.Stored,
		FallbackStored:   st.FallbackStored,
		StoreErrors:      st.StoreErrors,
		RelevanceMid:     st.RelevanceMid,
		RelevanceHigh:    st.RelevanceHigh,
		ReplyabilityMid:  st.ReplyabilityMid,
		ReplyabilityHigh: st.ReplyabilityHigh,
		ScrapeFailed:     st.ScrapeFailed,
		RunAt:            st.RunAt.UTC(),
	}
}

func (r seedStatRow) toSeedStat() opportunity.SeedStat {
	return opportunity.SeedStat{
		Account:          r.Account,
		BatchID:          r.BatchID,
		Scraped:          r.Scraped,
		NonRoot:          r.NonRoot,
		Disallowed:       r.Disallowed,
		QualityBlocked:   r.QualityBlocked,
		FreshnessFail:    r.FreshnessFailed,
		Stored:           r.Stored,
		FallbackStored:   r.FallbackStored,
		StoreErrors:      r.StoreErrors,
		RelevanceMid:     r.RelevanceMid,
		RelevanceHigh:    r.RelevanceHigh,
		ReplyabilityMid:  r.ReplyabilityMid,
		ReplyabilityHigh: r.ReplyabilityHigh,
		ScrapeFailed:     r.ScrapeFailed,
		RunAt:            r.RunAt,
	}
}
