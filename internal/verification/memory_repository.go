package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bankverify/bankverify/internal/aggregator"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Request
	byToken map[string]string
}

// NewMemoryRepository builds an in-memory request store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]Request), byToken: make(map[string]string)}
}

// clone detaches the slices of req from the stored copy.
func clone(req Request) Request {
	if req.ConnectedAccounts != nil {
		req.ConnectedAccounts = append([]aggregator.Account(nil), req.ConnectedAccounts...)
	}
	return req
}

func (r *memoryRepository) Create(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[req.ID]; exists {
		return ErrAlreadyExists
	}
	r.byID[req.ID] = clone(req)
	r.byToken[req.Token] = req.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.byID[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return clone(req), nil
}

func (r *memoryRepository) FindByToken(_ context.Context, token string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byToken[token]
	if !ok {
		return Request{}, ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *memoryRepository) Update(_ context.Context, id string, fn func(*Request) error) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	next := clone(current)
	if err := fn(&next); err != nil {
		return Request{}, err
	}
	if next.Token != current.Token {
		delete(r.byToken, current.Token)
		r.byToken[next.Token] = id
	}
	r.byID[id] = clone(next)
	return next, nil
}

func (r *memoryRepository) List(_ context.Context, f ListFilter) ([]Request, int, error) {
	r.mu.RLock()
	matched := make([]Request, 0, len(r.byID))
	for _, req := range r.byID {
		if f.Matches(req) {
			matched = append(matched, clone(req))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timeline.CreatedAt.After(matched[j].Timeline.CreatedAt)
	})
	total := len(matched)
	start := f.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memoryRepository) Stats(_ context.Context, now time.Time) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		stats.ByStatus[s] = 0
	}
	weekAgo := now.Add(-7 * 24 * time.Hour)
	var completedMinutes float64
	var completedTimed int
	for _, req := range r.byID {
		stats.Total++
		stats.ByStatus[req.Status]++
		if !req.Timeline.CreatedAt.Before(weekAgo) {
			stats.CreatedLast7Days++
		}
		if req.Status == StatusCompleted && req.Timeline.CompletedAt != nil {
			completedMinutes += req.Timeline.CompletedAt.Sub(req.Timeline.CreatedAt).Minutes()
			completedTimed++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.ByStatus[StatusCompleted]) / float64(stats.Total)
	}
	if completedTimed > 0 {
		stats.AvgCompletionMinutes = completedMinutes / float64(completedTimed)
	}
	return stats, nil
}

func (r *memoryRepository) ExpireOverdue(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expired := 0
	for id, req := range r.byID {
		if !req.Overdue(now) {
			continue
		}
		req.Status = StatusExpired
		req.Timeline.ExpiredAt = timePtr(now)
		r.byID[id] = req
		expired++
	}
	return expired, nil
}
