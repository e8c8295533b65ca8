package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/elonfeng/replyradar/pkg/opportunity"
	"github.com/elonfeng/replyradar/pkg/rank"
)

// maxListed caps how many opportunities a chat message links to.
const maxListed = 5

// Notification is the data sent to alert destinations.
type Notification struct {
	Title         string                    `json:"title"`
	Body          string                    `json:"body"`
	BatchID       string                    `json:"batch_id"`
	TopScore      float64                   `json:"top_score"`
	Opportunities []opportunity.Opportunity `json:"opportunities"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
	minTier   rank.ValueTier
}

// NewManager creates a new alert manager that reports opportunities at or
// above minTier. An empty minTier means S.
func NewManager(notifiers []Notifier, minTier rank.ValueTier) *Manager {
	if minTier == "" {
		minTier = rank.TierS
	}
	return &Manager{notifiers: notifiers, minTier: minTier}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// NotifyBatch broadcasts the qualifying opportunities of a batch. It reports
// how many were included; zero means nothing was sent.
func (m *Manager) NotifyBatch(ctx context.Context, batchID string, stored []opportunity.Opportunity) (int, error) {
	if !m.HasNotifiers() {
		return 0, nil
	}
	n := m.Build(batchID, stored)
	if n == nil {
		return 0, nil
	}
	return len(n.Opportunities), m.Broadcast(ctx, n)
}

// Build selects opportunities at or above the manager's tier, best first.
// It returns nil when none qualify.
func (m *Manager) Build(batchID string, stored []opportunity.Opportunity) *Notification {
	var picked []opportunity.Opportunity
	for _, o := range stored {
		if tierRank(o.ValueTier) >= tierRank(m.minTier) {
			picked = append(picked, o)
		}
	}
	if len(picked) == 0 {
		return nil
	}
	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].FinalScore > picked[j].FinalScore
	})

	return &Notification{
		Title:         fmt.Sprintf("%d new reply opportunit%s", len(picked), plural(len(picked), "y", "ies")),
		Body:          fmt.Sprintf("Tier %s or better from batch %s", m.minTier, batchID),
		BatchID:       batchID,
		TopScore:      picked[0].FinalScore,
		Opportunities: picked,
	}
}

func tierRank(t rank.ValueTier) int {
	switch t {
	case rank.TierS:
		return 3
	case rank.TierA:
		return 2
	case rank.TierB:
		return 1
	}
	return 0
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func listed(n *Notification) []opportunity.Opportunity {
	if len(n.Opportunities) > maxListed {
		return n.Opportunities[:maxListed]
	}
	return n.Opportunities
}

func snippet(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-1]) + "…"
}
