package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"redistrict/pkg/domain"
	"redistrict/services/planner-svc/internal/engine"
)

// MemoryRunRepository хранит запуски в памяти процесса; для тестов и встраивания без БД
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]*PlanRun
}

// NewMemoryRunRepository создаёт пустой репозиторий
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]*PlanRun)}
}

func (r *MemoryRunRepository) Create(_ context.Context, run *PlanRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = cloneRun(run, true)
	return nil
}

func (r *MemoryRunRepository) GetByID(_ context.Context, id string) (*PlanRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return cloneRun(run, true), nil
}

func (r *MemoryRunRepository) List(_ context.Context, opts *ListOptions) ([]*PlanRun, int64, error) {
	o := opts.normalize()

	r.mu.RLock()
	matched := make([]*PlanRun, 0, len(r.runs))
	for _, run := range r.runs {
		if o.Status != "" && run.Status != o.Status {
			continue
		}
		if o.GraphHash != "" && run.GraphHash != o.GraphHash {
			continue
		}
		matched = append(matched, cloneRun(run, false))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if o.Offset >= len(matched) {
		return nil, total, nil
	}
	end := min(o.Offset+o.Limit, len(matched))
	return matched[o.Offset:end], total, nil
}

func (r *MemoryRunRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(r.runs, id)
	return nil
}

// cloneRun копирует запуск; details=false отбрасывает дочерние записи, как List в PostgreSQL
func cloneRun(run *PlanRun, details bool) *PlanRun {
	out := *run
	out.Disconnected, out.Seeding, out.Assignments = nil, nil, nil
	if !details {
		return &out
	}

	if run.Disconnected != nil {
		out.Disconnected = make([]engine.DisconnectedDistrictRecord, len(run.Disconnected))
		for i, rec := range run.Disconnected {
			rec.ComponentSizesBefore = append([]int(nil), rec.ComponentSizesBefore...)
			out.Disconnected[i] = rec
		}
	}
	out.Seeding = append([]engine.SeedEntry(nil), run.Seeding...)
	if run.Assignments != nil {
		out.Assignments = make(map[string]domain.District, len(run.Assignments))
		for id, d := range run.Assignments {
			out.Assignments[id] = d
		}
	}
	return &out
}
