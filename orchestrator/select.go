package orchestrator

import (
	"fmt"
	"sync"

	"github.com/f3rmion/xmrsig/config"
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/party"
)

// Selector picks the signer subset for one attempt. available is sorted
// and excludes participants that failed to respond earlier. The returned
// set must be a sorted subset of available of exactly threshold members.
type Selector interface {
	Select(input int, available party.Set, threshold int) (party.Set, error)
}

// Priority prefers participants in the listed order, then the remaining
// ones by ascending ID.
type Priority struct {
	Order []party.ID
}

// Select implements Selector.
func (p Priority) Select(input int, available party.Set, threshold int) (party.Set, error) {
	if err := enough(available, threshold); err != nil {
		return nil, err
	}
	picked := make([]party.ID, 0, threshold)
	seen := make(map[party.ID]bool, threshold)
	for _, id := range append(append([]party.ID{}, p.Order...), available...) {
		if len(picked) == threshold {
			break
		}
		if seen[id] || !available.Contains(id) {
			continue
		}
		seen[id] = true
		picked = append(picked, id)
	}
	return party.NewSet(picked...)
}

// RoundRobin rotates the starting participant on every call, spreading load
// across the group.
type RoundRobin struct {
	mu   sync.Mutex
	next int
}

// Select implements Selector.
func (r *RoundRobin) Select(input int, available party.Set, threshold int) (party.Set, error) {
	if err := enough(available, threshold); err != nil {
		return nil, err
	}
	r.mu.Lock()
	start := r.next % len(available)
	r.next++
	r.mu.Unlock()

	picked := make([]party.ID, threshold)
	for j := range threshold {
		picked[j] = available[(start+j)%len(available)]
	}
	return party.NewSet(picked...)
}

func enough(available party.Set, threshold int) error {
	if len(available) < threshold {
		return errs.New(errs.InsufficientParticipants, "orchestrator.select",
			"%d responsive participants, threshold %d", len(available), threshold).WithParticipants(available...)
	}
	return nil
}

// SelectorFor returns the selector named by a config policy.
func SelectorFor(cfg *config.Config) (Selector, error) {
	switch cfg.Selection {
	case config.SelectPriority:
		return Priority{Order: cfg.Priority}, nil
	case config.SelectRoundRobin:
		return &RoundRobin{}, nil
	}
	return nil, fmt.Errorf("orchestrator: unknown selection policy %q", cfg.Selection)
}
