package service

import (
	"context"
	"errors"

	"redistrict/pkg/apperror"
	"redistrict/pkg/cache"
	"redistrict/pkg/domain"
	"redistrict/pkg/telemetry"
	"redistrict/services/planner-svc/internal/repository"
)

// CheckReport состояние графа без изменения меток
type CheckReport struct {
	Valid      bool                        `json:"valid"`
	Errors     []*apperror.Error           `json:"errors,omitempty"`
	Warnings   []*apperror.Error           `json:"warnings,omitempty"`
	Fragmented []domain.FragmentedDistrict `json:"fragmented"`
	Graph      *domain.GraphStatistics     `json:"graph"`
	Plan       *domain.PlanStatistics      `json:"plan"`
}

// Contiguous сообщает, что все округа связны
func (r *CheckReport) Contiguous() bool {
	return len(r.Fragmented) == 0
}

// Check проверяет граф и собирает статистику; граф не изменяется
func (s *PlannerService) Check(ctx context.Context, g *domain.Graph) (*CheckReport, error) {
	if g == nil {
		return nil, apperror.ErrNilGraph
	}

	_, span := telemetry.StartSpan(ctx, "PlannerService.Check",
		telemetry.WithAttributes(telemetry.GraphAttributes(g.NodeCount(), g.EdgeCount(), g.DistrictCount())...),
	)
	defer span.End()

	ve := g.Validate()
	rep := &CheckReport{
		Valid:    !ve.HasErrors(),
		Errors:   ve.Errors,
		Warnings: ve.Warnings,
		Graph:    domain.CalculateGraphStatistics(g),
	}
	if !rep.Valid {
		return rep, nil
	}

	rep.Fragmented = domain.FragmentationProfile(g)
	rep.Plan = domain.DistrictStatistics(g)

	s.log.Debug("graph checked",
		"nodes", g.NodeCount(),
		"districts", g.DistrictCount(),
		"fragmented", len(rep.Fragmented),
		"warnings", len(rep.Warnings),
	)
	return rep, nil
}

// GetRun возвращает сохранённый запуск
func (s *PlannerService) GetRun(ctx context.Context, id string) (*repository.PlanRun, error) {
	if s.repo == nil {
		return nil, apperror.New(apperror.CodeUnavailable, "run storage is not configured")
	}
	if id == "" {
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument, "run id is required", "id")
	}

	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, apperror.Newf(apperror.CodeNotFound, "plan run %s not found", id).
				WithDetails("run_id", id)
		}
		return nil, apperror.Wrap(err, apperror.CodeUnavailable, "failed to load plan run")
	}
	return run, nil
}

// ListRuns возвращает страницу запусков и общее число
func (s *PlannerService) ListRuns(ctx context.Context, opts *repository.ListOptions) ([]*repository.PlanRun, int64, error) {
	if s.repo == nil {
		return nil, 0, apperror.New(apperror.CodeUnavailable, "run storage is not configured")
	}

	runs, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.CodeUnavailable, "failed to list plan runs")
	}
	return runs, total, nil
}

// DeleteRun удаляет запуск
func (s *PlannerService) DeleteRun(ctx context.Context, id string) error {
	if s.repo == nil {
		return apperror.New(apperror.CodeUnavailable, "run storage is not configured")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return apperror.Newf(apperror.CodeNotFound, "plan run %s not found", id).
				WithDetails("run_id", id)
		}
		return apperror.Wrap(err, apperror.CodeUnavailable, "failed to delete plan run")
	}
	return nil
}

// InvalidateCache удаляет кэшированные планы графа; nil удаляет все
func (s *PlannerService) InvalidateCache(ctx context.Context, g *domain.Graph) (int64, error) {
	if s.plans == nil {
		return 0, nil
	}
	if g == nil {
		return s.plans.InvalidateAll(ctx)
	}
	return s.plans.Invalidate(ctx, g)
}

// CacheStats статистика кэша планов
func (s *PlannerService) CacheStats(ctx context.Context) (*cache.PlanStats, error) {
	if s.plans == nil {
		return nil, apperror.New(apperror.CodeUnavailable, "plan cache is not configured")
	}
	st, err := s.plans.Stats(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeUnavailable, "failed to read cache stats")
	}
	return st, nil
}
