package candidate

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// UnknownConversation is the scraper's sentinel for an unresolved conversation root.
const UnknownConversation = "unknown"

// minVelocityAge floors the age used for velocity so brand-new posts don't explode.
const minVelocityAge = 10

// Raw is a candidate record as handed over by the scraper collaborator.
type Raw struct {
	PostID             string `json:"post_id"`
	AuthorHandle       string `json:"author_handle"`
	AuthorFollowers    Count  `json:"author_followers"`
	Text               string `json:"text"`
	URL                string `json:"url,omitempty"`
	Likes              Count  `json:"likes"`
	Replies            Count  `json:"replies"`
	Reposts            Count  `json:"reposts"`
	Views              Count  `json:"views"`
	PostedAt           string `json:"posted_at"`
	IsReply            bool   `json:"is_reply"`
	IsRepost           bool   `json:"is_repost"`
	RepliedToID        string `json:"replied_to_id,omitempty"`
	ConversationRootID string `json:"conversation_root_id,omitempty"`
}

// Candidate is the canonical, normalized shape of one scraped post.
// Values are never mutated after Normalize; re-harvesting yields a new Candidate.
type Candidate struct {
	ID                 string
	Author             string
	Followers          Count
	Text               string
	URL                string
	Likes              Count
	Replies            Count
	Reposts            Count
	Views              Count
	PostedAt           time.Time
	AgeMinutes         int
	AgeKnown           bool
	Velocity           float64
	IsReply            bool
	IsRepost           bool
	IsOrigin           bool
	RepliedToID        string
	ConversationRootID string
	SourceAccount      string
}

// MetricsKnown reports whether likes and age are both known, the inputs every
// engagement-based decision depends on.
func (c Candidate) MetricsKnown() bool {
	return c.Likes.IsKnown() && c.AgeKnown
}

// VelocityKnown reports whether Velocity carries a real value.
func (c Candidate) VelocityKnown() bool { return c.MetricsKnown() }

// Normalize converts a raw record into a Candidate as seen at time now.
func Normalize(r Raw, sourceAccount string, now time.Time) Candidate {
	c := Candidate{
		ID:                 strings.TrimSpace(r.PostID),
		Author:             NormalizeHandle(r.AuthorHandle),
		Followers:          r.AuthorFollowers,
		Text:               strings.TrimSpace(r.Text),
		URL:                strings.TrimSpace(r.URL),
		Likes:              r.Likes,
		Replies:            r.Replies,
		Reposts:            r.Reposts,
		Views:              r.Views,
		IsRepost:           r.IsRepost,
		RepliedToID:        strings.TrimSpace(r.RepliedToID),
		ConversationRootID: strings.TrimSpace(r.ConversationRootID),
		SourceAccount:      NormalizeHandle(sourceAccount),
	}

	if posted, ok := ParseTimestamp(r.PostedAt); ok {
		c.PostedAt = posted
		c.AgeKnown = true
		c.AgeMinutes = ageMinutes(posted, now)
	}

	if likes, ok := c.Likes.Get(); ok && c.AgeKnown {
		c.Velocity = float64(likes) / float64(max(c.AgeMinutes, minVelocityAge))
	}

	c.IsReply = r.IsReply || c.RepliedToID != ""
	c.IsOrigin = !c.IsReply && !c.IsRepost && !c.isContinuation()
	return c
}

func (c Candidate) isContinuation() bool {
	root := c.ConversationRootID
	return root != "" && root != UnknownConversation && root != c.ID
}

func ageMinutes(posted, now time.Time) int {
	d := now.Sub(posted)
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Minutes()))
}

// NormalizeHandle strips whitespace and a leading @.
func NormalizeHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts the layouts scrapers emit. Empty or malformed input is
// reported as not ok rather than defaulting to now.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseDisplay parses metric strings as rendered by X ("1,234", "1.2K", "3M").
func ParseDisplay(s string) Count {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return Unknown()
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1_000
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1_000_000
		s = s[:len(s)-1]
	case 'B', 'b':
		mult = 1_000_000_000
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return Unknown()
	}
	return Known(int64(math.Round(f * mult)))
}
