package catalog

import (
	"context"
	"sort"
	"sync"
)

// In-memory repositories. Used by tests and by the server's --memory mode,
// where the catalog is seeded at startup and never persisted.

type drugRepoMem struct {
	mu   sync.RWMutex
	data map[string]*Drug
}

func NewDrugRepoMem() DrugRepository {
	return &drugRepoMem{data: make(map[string]*Drug)}
}

func (r *drugRepoMem) Create(_ context.Context, d *Drug) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[d.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *d
	r.data[d.ID] = &cp
	return nil
}

func (r *drugRepoMem) GetByID(_ context.Context, id string) (*Drug, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *drugRepoMem) Update(_ context.Context, d *Drug) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[d.ID]; !ok {
		return ErrNotFound
	}
	cp := *d
	r.data[d.ID] = &cp
	return nil
}

func (r *drugRepoMem) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, id)
	return nil
}

func (r *drugRepoMem) List(_ context.Context, limit, offset int) ([]*Drug, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Drug, 0, len(r.data))
	for _, d := range r.data {
		cp := *d
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, limit, offset), len(all), nil
}

type procedureRepoMem struct {
	mu   sync.RWMutex
	data map[string]*Procedure
}

func NewProcedureRepoMem() ProcedureRepository {
	return &procedureRepoMem{data: make(map[string]*Procedure)}
}

func (r *procedureRepoMem) Create(_ context.Context, p *Procedure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[p.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *procedureRepoMem) GetByID(_ context.Context, id string) (*Procedure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *procedureRepoMem) Update(_ context.Context, p *Procedure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *procedureRepoMem) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, id)
	return nil
}

func (r *procedureRepoMem) List(_ context.Context, limit, offset int) ([]*Procedure, int, error) {
	return r.list("", limit, offset)
}

func (r *procedureRepoMem) ListBySpecialty(_ context.Context, specialty string, limit, offset int) ([]*Procedure, int, error) {
	return r.list(specialty, limit, offset)
}

func (r *procedureRepoMem) list(specialty string, limit, offset int) ([]*Procedure, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*Procedure
	for _, p := range r.data {
		if specialty != "" && p.Specialty != specialty {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Specialty != all[j].Specialty {
			return all[i].Specialty < all[j].Specialty
		}
		return all[i].Name < all[j].Name
	})
	return page(all, limit, offset), len(all), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
