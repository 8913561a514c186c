package engine

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
	"redistrict/pkg/telemetry"
)

// districtComponents компоненты одной метки на снимке прохода
type districtComponents struct {
	district   domain.District
	components [][]string
}

// repair доводит граф до состояния, где каждый округ связен.
// Возвращает число проходов, в которых были смены меток.
func (e *Engine) repair(ctx context.Context, mut *Mutator, rng *rand.Rand, opts Options) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.repair")
	defer span.End()

	g := mut.Graph()
	sweeps := 0
	relabels := 0

	for {
		if err := ctx.Err(); err != nil {
			return sweeps, cancelled(err, "repair")
		}

		fragmented, err := scanDistricts(ctx, g, opts.Workers)
		if err != nil {
			if ctx.Err() != nil {
				return sweeps, cancelled(ctx.Err(), "repair")
			}
			return sweeps, err
		}

		if len(fragmented) == 0 {
			mut.ResolveRecords()
			telemetry.SetAttributes(ctx, telemetry.RepairAttributes(sweeps, len(mut.records), relabels)...)
			return sweeps, nil
		}

		if sweeps >= opts.MaxRepairSweeps {
			mut.ResolveRecords()
			return sweeps, notConverged(fragmented, mut.Records(), opts.MaxRepairSweeps)
		}
		sweeps++

		for _, dc := range fragmented {
			mut.RecordDisconnected(dc.district, domain.ComponentSizes(dc.components), sweeps)
		}

		// Изолированную компоненту нельзя присоединить к соседу, проверяем до смен меток
		if err := checkIsolated(g, fragmented); err != nil {
			return sweeps, err
		}

		n, err := adoptNeighbours(mut, rng, fragmented)
		if err != nil {
			return sweeps, err
		}
		relabels += n

		e.log.Debug("repair sweep",
			"sweep", sweeps,
			"fragmented", len(fragmented),
			"relabels", n,
		)
	}
}

// scanDistricts находит разорванные округа. Поиск компонент только читает граф,
// поэтому метки обходятся параллельно; порядок результата совпадает с порядком меток.
func scanDistricts(ctx context.Context, g *domain.Graph, workers int) ([]districtComponents, error) {
	labels := g.Districts()
	results := make([][][]string, len(labels))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, d := range labels {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = domain.DistrictComponents(g, d)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var fragmented []districtComponents
	for i, comps := range results {
		if len(comps) > 1 {
			fragmented = append(fragmented, districtComponents{district: labels[i], components: comps})
		}
	}
	return fragmented, nil
}

func checkIsolated(g *domain.Graph, fragmented []districtComponents) error {
	for _, dc := range fragmented {
		for _, comp := range dc.components[1:] {
			if len(domain.ExternalNeighbors(g, comp)) > 0 {
				continue
			}
			return apperror.Newf(apperror.CodeIsolatedComponent,
				"district %s has a component of %d units with no edge leaving it", dc.district, len(comp)).
				WithDetails("district", dc.district).
				WithDetails("component", append([]string(nil), comp...)).
				WithDetails("component_sizes", domain.ComponentSizes(dc.components))
		}
	}
	return nil
}

// adoptNeighbours переносит узлы неосновных компонент в округ случайного соседа.
// Метка соседа читается в момент выбора, поэтому порядок обхода фиксирован.
func adoptNeighbours(mut *Mutator, rng *rand.Rand, fragmented []districtComponents) (int, error) {
	g := mut.Graph()
	relabels := 0

	for _, dc := range fragmented {
		for _, comp := range dc.components[1:] {
			for _, id := range comp {
				neighbours := g.Neighbors(id)
				if len(neighbours) == 0 {
					continue
				}
				pick := neighbours[rng.Intn(len(neighbours))]
				label, _ := g.District(pick)

				changed, err := mut.SetLabel(id, label, CauseRepair)
				if err != nil {
					return relabels, err
				}
				if changed {
					relabels++
				}
			}
		}
	}
	return relabels, nil
}

func notConverged(fragmented []districtComponents, records []DisconnectedDistrictRecord, maxSweeps int) error {
	profile := make([]domain.FragmentedDistrict, 0, len(fragmented))
	for _, dc := range fragmented {
		profile = append(profile, domain.FragmentedDistrict{
			District:       dc.district,
			ComponentSizes: domain.ComponentSizes(dc.components),
		})
	}

	return apperror.Newf(apperror.CodeRepairDidNotConverge,
		"repair did not converge after %d sweeps, %d districts still fragmented", maxSweeps, len(profile)).
		WithDetails("max_sweeps", maxSweeps).
		WithDetails("profile", profile).
		WithDetails("records", records)
}

func cancelled(err error, stage string) error {
	return apperror.Wrap(err, apperror.CodeCancelled, stage+" cancelled").
		WithDetails("stage", stage)
}
