package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/elonfeng/replyradar/pkg/candidate"
)

// DefaultNitterURL is used when no instance is configured.
const DefaultNitterURL = "https://nitter.net"

var (
	statusID     = regexp.MustCompile(`/status/(\d+)`)
	replyPrefix  = regexp.MustCompile(`^R to @(\w+):\s*`)
	repostPrefix = regexp.MustCompile(`^RT by @(\w+):\s*`)
)

// Nitter harvests account timelines from a Nitter instance's RSS feeds. RSS
// carries no engagement counts, so every metric is reported unknown.
type Nitter struct {
	client    *http.Client
	parser    *gofeed.Parser
	nitterURL string
	userAgent string
}

// NewNitter creates a harvester for the instance at nitterURL.
func NewNitter(nitterURL, userAgent string) *Nitter {
	if nitterURL == "" {
		nitterURL = DefaultNitterURL
	}
	if userAgent == "" {
		userAgent = "replyradar/1.0"
	}
	return &Nitter{
		client:    &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		nitterURL: strings.TrimRight(nitterURL, "/"),
		userAgent: userAgent,
	}
}

func (n *Nitter) Name() Kind { return KindNitter }

func (n *Nitter) Harvest(ctx context.Context, account string, limit int) ([]candidate.Raw, error) {
	account = candidate.NormalizeHandle(account)
	if account == "" {
		return nil, fmt.Errorf("nitter: empty account")
	}

	feedURL := fmt.Sprintf("%s/%s/rss", n.nitterURL, account)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create nitter request @%s: %w", account, err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch nitter @%s: %w", account, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nitter @%s status %d", account, resp.StatusCode)
	}

	feed, err := n.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse nitter @%s: %w", account, err)
	}

	var posts []candidate.Raw
	for _, entry := range feed.Items {
		if limit > 0 && len(posts) >= limit {
			break
		}
		raw, ok := n.toRaw(entry, account)
		if !ok {
			continue
		}
		posts = append(posts, raw)
	}
	return posts, nil
}

func (n *Nitter) toRaw(entry *gofeed.Item, account string) (candidate.Raw, bool) {
	link := entry.Link
	if link == "" {
		link = entry.GUID
	}
	m := statusID.FindStringSubmatch(link)
	if m == nil {
		return candidate.Raw{}, false
	}

	raw := candidate.Raw{
		PostID:       m[1],
		AuthorHandle: entryAuthor(entry, account),
		Text:         truncate(entry.Title, 1000),
		// Nitter links point at the instance; rewrite them to the canonical host.
		URL: strings.Replace(strings.TrimSuffix(link, "#m"), n.nitterURL, "https://x.com", 1),
	}

	if sm := replyPrefix.FindStringSubmatch(raw.Text); sm != nil {
		raw.IsReply = true
		raw.Text = strings.TrimSpace(raw.Text[len(sm[0]):])
	} else if sm := repostPrefix.FindStringSubmatch(raw.Text); sm != nil {
		raw.IsRepost = true
		raw.Text = strings.TrimSpace(raw.Text[len(sm[0]):])
	}

	if entry.PublishedParsed != nil {
		raw.PostedAt = entry.PublishedParsed.UTC().Format(time.RFC3339)
	} else {
		raw.PostedAt = entry.Published
	}
	return raw, true
}

func entryAuthor(entry *gofeed.Item, account string) string {
	if entry.DublinCoreExt != nil && len(entry.DublinCoreExt.Creator) > 0 {
		if h := candidate.NormalizeHandle(entry.DublinCoreExt.Creator[0]); h != "" {
			return h
		}
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		if h := candidate.NormalizeHandle(entry.Authors[0].Name); h != "" {
			return h
		}
	}
	return account
}
