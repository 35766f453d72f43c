package cases

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type repoMem struct {
	mu    sync.RWMutex
	cases map[uuid.UUID]*Case
}

func NewRepoMem() Repository {
	return &repoMem{cases: make(map[uuid.UUID]*Case)}
}

func (r *repoMem) Create(ctx context.Context, c *Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *repoMem) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *repoMem) Update(ctx context.Context, c *Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *repoMem) CountByStatus(ctx context.Context, status Status) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.cases {
		if c.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *repoMem) List(ctx context.Context, procedureID string, limit, offset int) ([]*Case, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*Case
	for _, c := range r.cases {
		if procedureID != "" && c.ProcedureID != procedureID {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}
