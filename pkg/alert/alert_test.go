package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/rank"
)

func opp(id string, tier rank.ValueTier, score float64) opportunity.Opportunity {
	return opportunity.Opportunity{
		PostID:     id,
		Author:     "hubermanlab",
		Text:       "Morning light anchors your circadian clock. What's your routine?",
		URL:        "https://x.com/hubermanlab/status/" + id,
		ValueTier:  tier,
		FinalScore: score,
	}
}

type captured struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
}

func newCapture(t *testing.T, status int) (*captured, *httptest.Server) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return c, srv
}

func TestBuildFiltersByTier(t *testing.T) {
	stored := []opportunity.Opportunity{
		opp("1", rank.TierB, 0.9),
		opp("2", rank.TierS, 0.5),
		opp("3", rank.TierA, 0.7),
		opp("4", rank.TierS, 0.8),
	}

	tests := []struct {
		name    string
		minTier rank.ValueTier
		want    []string
	}{
		{"default S", "", []string{"4", "2"}},
		{"A and up", rank.TierA, []string{"4", "3", "2"}},
		{"everything", rank.TierB, []string{"1", "4", "3", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewManager(nil, tt.minTier).Build("batch", stored)
			require.NotNil(t, n)
			var ids []string
			for _, o := range n.Opportunities {
				ids = append(ids, o.PostID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, n.Opportunities[0].FinalScore, n.TopScore)
		})
	}

	assert.Nil(t, NewManager(nil, rank.TierS).Build("batch", []opportunity.Opportunity{opp("1", rank.TierA, 1)}))
}

func TestNotifyBatch(t *testing.T) {
	c, srv := newCapture(t, http.StatusOK)
	m := NewManager([]Notifier{NewWebhook(srv.URL, "")}, rank.TierS)

	n, err := m.NotifyBatch(context.Background(), "b1", []opportunity.Opportunity{opp("1", rank.TierS, 0.7), opp("2", rank.TierB, 0.9)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, c.bodies, 1)

	var got Notification
	require.NoError(t, json.Unmarshal(c.bodies[0], &got))
	assert.Equal(t, "b1", got.BatchID)
	assert.Equal(t, "1 new reply opportunity", got.Title)
	require.Len(t, got.Opportunities, 1)

	n, err = m.NotifyBatch(context.Background(), "b2", []opportunity.Opportunity{opp("3", rank.TierB, 0.9)})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, c.bodies, 1)
}

func TestWebhookSignature(t *testing.T) {
	c, srv := newCapture(t, http.StatusAccepted)
	w := NewWebhook(srv.URL, "s3cret")

	require.NoError(t, w.Send(context.Background(), &Notification{Title: "x"}))
	require.Len(t, c.bodies, 1)
	assert.Equal(t, Sign("s3cret", c.bodies[0]), c.headers[0].Get("X-Signature-256"))
	assert.Equal(t, "replyradar/1.0", c.headers[0].Get("User-Agent"))
}

func TestSlackAndDiscordPayloads(t *testing.T) {
	n := NewManager(nil, rank.TierS).Build("b1", []opportunity.Opportunity{opp("42", rank.TierS, 0.81)})
	require.NotNil(t, n)

	sc, ssrv := newCapture(t, http.StatusOK)
	require.NoError(t, NewSlack(ssrv.URL).Send(context.Background(), n))
	assert.Contains(t, string(sc.bodies[0]), "https://x.com/hubermanlab/status/42|@hubermanlab")

	dc, dsrv := newCapture(t, http.StatusNoContent)
	require.NoError(t, NewDiscord(dsrv.URL).Send(context.Background(), n))
	var payload struct {
		Embeds []map[string]any `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(dc.bodies[0], &payload))
	require.Len(t, payload.Embeds, 1)
	assert.Contains(t, payload.Embeds[0]["description"], "[@hubermanlab](https://x.com/hubermanlab/status/42)")
}

func TestBroadcastJoinsErrors(t *testing.T) {
	_, bad := newCapture(t, http.StatusInternalServerError)
	okc, ok := newCapture(t, http.StatusOK)

	m := NewManager([]Notifier{NewSlack(bad.URL), NewWebhook(ok.URL, "")}, "")
	err := m.Broadcast(context.Background(), &Notification{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: slack webhook status 500")
	assert.Len(t, okc.bodies, 1, "a failing notifier does not stop the others")
}

type failing struct{}

func (failing) Name() string { return "failing" }
func (failing) Send(context.Context, *Notification) error {
	return errors.New("nope")
}

func TestNotifyBatchWithoutNotifiers(t *testing.T) {
	n, err := NewManager(nil, "").NotifyBatch(context.Background(), "b", []opportunity.Opportunity{opp("1", rank.TierS, 1)})
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = NewManager([]Notifier{failing{}}, "").NotifyBatch(context.Background(), "b", []opportunity.Opportunity{opp("1", rank.TierS, 1)})
	assert.ErrorContains(t, err, "failing: nope")
}
