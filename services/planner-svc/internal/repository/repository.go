// Package repository stores plan runs together with their audit output:
// disconnected-district records, the seeding log and final assignments.
package repository

import (
	"context"
	"errors"
	"time"

	"redistrict/pkg/domain"
	"redistrict/services/planner-svc/internal/engine"
)

// Стандартные ошибки
var (
	ErrRunNotFound = errors.New("plan run not found")
)

// Status итог запуска
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// PlanRun сохранённый запуск планировщика
type PlanRun struct {
	ID                string
	Name              string
	GraphHash         string
	NodeCount         int
	EdgeCount         int
	RequiredDistricts int
	RandomSeed        int64
	Status            Status
	Sweeps            int
	DistrictCount     int
	DurationMs        float64
	ErrorCode         string
	CreatedAt         time.Time

	// Заполняются только в GetByID
	Disconnected []engine.DisconnectedDistrictRecord
	Seeding      []engine.SeedEntry
	Assignments  map[string]domain.District
}

// ListOptions фильтры и пагинация списка
type ListOptions struct {
	Limit     int
	Offset    int
	Status    Status
	GraphHash string
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (o *ListOptions) normalize() ListOptions {
	out := ListOptions{}
	if o != nil {
		out = *o
	}
	if out.Limit <= 0 {
		out.Limit = defaultListLimit
	}
	if out.Limit > maxListLimit {
		out.Limit = maxListLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

// RunRepository интерфейс хранилища запусков
type RunRepository interface {
	// Create сохраняет запуск целиком; пустые ID и CreatedAt заполняются
	Create(ctx context.Context, run *PlanRun) error
	GetByID(ctx context.Context, id string) (*PlanRun, error)
	// List возвращает запуски без дочерних записей, новые первыми, и общее число
	List(ctx context.Context, opts *ListOptions) ([]*PlanRun, int64, error)
	Delete(ctx context.Context, id string) error
}
