package engine

import (
	"context"
	"sort"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
	"redistrict/pkg/telemetry"
)

// Результаты попытки посева для метрик
const (
	seedCommitted  = "committed"
	seedRolledBack = "rolled_back"
	seedSkipped    = "skipped"
)

// seed создаёт недостающие округа из самых населённых узлов.
// Кандидаты берутся из ограниченного окна и просматриваются один раз.
func (e *Engine) seed(ctx context.Context, mut *Mutator, opts Options) (int, error) {
	g := mut.Graph()
	present := g.DistrictCount()
	if opts.RequiredDistrictCount <= present {
		return 0, nil
	}

	needed := opts.RequiredDistrictCount - present
	candidates := rankByPopulation(g)
	window := opts.SeedCandidateMultiplier * needed
	if window > len(candidates) {
		window = len(candidates)
	}
	candidates = candidates[:window]

	ctx, span := telemetry.StartSpan(ctx, "engine.seed")
	defer span.End()

	alloc := NewLabelAllocator(g.Districts())
	committed := 0
	next := 0

	for committed < needed {
		found := false

		for next < len(candidates) {
			if err := ctx.Err(); err != nil {
				return committed, cancelled(err, "seed")
			}

			c := candidates[next]
			next++

			donor, _ := g.District(c.id)
			if g.MemberCount(donor) <= 1 {
				e.recordSeedAttempt(seedSkipped)
				continue
			}

			label := alloc.Peek()
			if _, err := mut.SetLabel(c.id, label, CauseSeed); err != nil {
				return committed, err
			}

			if domain.IsContiguous(g, donor) {
				alloc.Commit(label)
				mut.RecordSeed(SeedEntry{
					NewLabel:   label,
					DonorLabel: donor,
					SeedNodeID: c.id,
					Population: c.population,
				})
				e.recordSeedAttempt(seedCommitted)
				committed++
				found = true
				break
			}

			// Донор распался: откатываем и берём следующего кандидата
			if _, err := mut.SetLabel(c.id, donor, CauseRollback); err != nil {
				return committed, err
			}
			e.recordSeedAttempt(seedRolledBack)
			e.log.Debug("seed candidate rejected",
				"node_id", c.id,
				"donor", donor,
			)
		}

		if !found {
			return committed, apperror.Newf(apperror.CodeSeedingInfeasible,
				"candidate window of %d units exhausted with %d of %d districts still missing",
				window, needed-committed, needed).
				WithDetails("needed", needed).
				WithDetails("remaining", needed-committed).
				WithDetails("window", window).
				WithDetails("seeded", mut.SeedingLog())
		}
	}

	telemetry.SetAttributes(ctx, telemetry.SeedAttributes(needed, committed, window)...)
	return committed, nil
}

type candidate struct {
	id         string
	population float64
}

// rankByPopulation сортирует узлы по убыванию населения, при равенстве по ID
func rankByPopulation(g *domain.Graph) []candidate {
	ids := g.NodeIDs()
	out := make([]candidate, 0, len(ids))
	for _, id := range ids {
		pop, _ := g.Population(id)
		out = append(out, candidate{id: id, population: pop})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].population != out[j].population {
			return out[i].population > out[j].population
		}
		return out[i].id < out[j].id
	})
	return out
}

func (e *Engine) recordSeedAttempt(result string) {
	if e.metrics != nil {
		e.metrics.RecordSeedAttempt(result)
	}
}
