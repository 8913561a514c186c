package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"redistrict/pkg/database"
	"redistrict/pkg/domain"
	"redistrict/pkg/telemetry"
	"redistrict/services/planner-svc/internal/engine"
)

var assignmentColumns = []string{"run_id", "geoid", "district"}

// PostgresRunRepository PostgreSQL реализация
type PostgresRunRepository struct {
	db database.DB
}

// NewPostgresRunRepository создаёт новый репозиторий
func NewPostgresRunRepository(db database.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (r *PostgresRunRepository) Create(ctx context.Context, run *PlanRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	return telemetry.Trace(ctx, "PostgresRunRepository.Create", func(ctx context.Context) error {
		return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
			if err := insertRun(ctx, tx, run); err != nil {
				return err
			}
			if err := insertDisconnected(ctx, tx, run.ID, run.Disconnected); err != nil {
				return err
			}
			if err := insertSeeding(ctx, tx, run.ID, run.Seeding); err != nil {
				return err
			}
			return copyAssignments(ctx, tx, run.ID, run.Assignments)
		})
	}, telemetry.DBAttributes("insert", "plan_runs")...)
}

func insertRun(ctx context.Context, tx pgx.Tx, run *PlanRun) error {
	query := `
		INSERT INTO plan_runs (
			id, name, graph_hash, node_count, edge_count,
			required_districts, random_seed, status, sweeps,
			district_count, duration_ms, error_code, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := tx.Exec(ctx, query,
		run.ID,
		run.Name,
		run.GraphHash,
		run.NodeCount,
		run.EdgeCount,
		run.RequiredDistricts,
		run.RandomSeed,
		string(run.Status),
		run.Sweeps,
		run.DistrictCount,
		run.DurationMs,
		run.ErrorCode,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create plan run: %w", err)
	}
	return nil
}

func insertDisconnected(ctx context.Context, tx pgx.Tx, runID string, records []engine.DisconnectedDistrictRecord) error {
	query := `
		INSERT INTO disconnected_districts (run_id, original_label, component_sizes, repaired, first_sweep)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, rec := range records {
		_, err := tx.Exec(ctx, query,
			runID, string(rec.OriginalLabel), rec.ComponentSizesBefore, rec.Repaired, rec.FirstSweep)
		if err != nil {
			return fmt.Errorf("failed to insert disconnected district %s: %w", rec.OriginalLabel, err)
		}
	}
	return nil
}

func insertSeeding(ctx context.Context, tx pgx.Tx, runID string, entries []engine.SeedEntry) error {
	query := `
		INSERT INTO seeding_log (run_id, seq, new_label, donor_label, seed_node_id, population)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, e := range entries {
		_, err := tx.Exec(ctx, query,
			runID, i+1, string(e.NewLabel), string(e.DonorLabel), e.SeedNodeID, e.Population)
		if err != nil {
			return fmt.Errorf("failed to insert seeding entry %d: %w", i+1, err)
		}
	}
	return nil
}

// copyAssignments пишет метки через COPY в порядке geoid
func copyAssignments(ctx context.Context, tx pgx.Tx, runID string, assignments map[string]domain.District) error {
	if len(assignments) == 0 {
		return nil
	}

	ids := make([]string, 0, len(assignments))
	for id := range assignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []any{runID, id, string(assignments[id])})
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"assignments"}, assignmentColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy assignments: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copied %d of %d assignments", n, len(rows))
	}
	return nil
}

func (r *PostgresRunRepository) GetByID(ctx context.Context, id string) (*PlanRun, error) {
	return telemetry.TraceResult(ctx, "PostgresRunRepository.GetByID", func(ctx context.Context) (*PlanRun, error) {
		query := `
			SELECT
				id, name, graph_hash, node_count, edge_count,
				required_districts, random_seed, status, sweeps,
				district_count, duration_ms, error_code, created_at
			FROM plan_runs
			WHERE id = $1
		`

		run, err := scanRun(r.db.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrRunNotFound
			}
			return nil, fmt.Errorf("failed to get plan run: %w", err)
		}

		if run.Disconnected, err = r.loadDisconnected(ctx, id); err != nil {
			return nil, err
		}
		if run.Seeding, err = r.loadSeeding(ctx, id); err != nil {
			return nil, err
		}
		if run.Assignments, err = r.loadAssignments(ctx, id); err != nil {
			return nil, err
		}
		return run, nil
	}, telemetry.DBAttributes("select", "plan_runs")...)
}

func scanRun(row pgx.Row) (*PlanRun, error) {
	run := &PlanRun{}
	var status string
	err := row.Scan(
		&run.ID,
		&run.Name,
		&run.GraphHash,
		&run.NodeCount,
		&run.EdgeCount,
		&run.RequiredDistricts,
		&run.RandomSeed,
		&status,
		&run.Sweeps,
		&run.DistrictCount,
		&run.DurationMs,
		&run.ErrorCode,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = Status(status)
	return run, nil
}

func (r *PostgresRunRepository) loadDisconnected(ctx context.Context, runID string) ([]engine.DisconnectedDistrictRecord, error) {
	query := `
		SELECT original_label, component_sizes, repaired, first_sweep
		FROM disconnected_districts
		WHERE run_id = $1
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load disconnected districts: %w", err)
	}
	defer rows.Close()

	var out []engine.DisconnectedDistrictRecord
	for rows.Next() {
		var (
			rec   engine.DisconnectedDistrictRecord
			label string
		)
		if err := rows.Scan(&label, &rec.ComponentSizesBefore, &rec.Repaired, &rec.FirstSweep); err != nil {
			return nil, fmt.Errorf("failed to scan disconnected district: %w", err)
		}
		rec.OriginalLabel = domain.District(label)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read disconnected districts: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		return domain.CompareDistricts(out[i].OriginalLabel, out[j].OriginalLabel) < 0
	})
	return out, nil
}

func (r *PostgresRunRepository) loadSeeding(ctx context.Context, runID string) ([]engine.SeedEntry, error) {
	query := `
		SELECT new_label, donor_label, seed_node_id, population
		FROM seeding_log
		WHERE run_id = $1
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seeding log: %w", err)
	}
	defer rows.Close()

	var out []engine.SeedEntry
	for rows.Next() {
		var (
			e            engine.SeedEntry
			label, donor string
		)
		if err := rows.Scan(&label, &donor, &e.SeedNodeID, &e.Population); err != nil {
			return nil, fmt.Errorf("failed to scan seeding entry: %w", err)
		}
		e.NewLabel, e.DonorLabel = domain.District(label), domain.District(donor)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seeding log: %w", err)
	}
	return out, nil
}

func (r *PostgresRunRepository) loadAssignments(ctx context.Context, runID string) (map[string]domain.District, error) {
	rows, err := r.db.Query(ctx, `SELECT geoid, district FROM assignments WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.District)
	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out[id] = domain.District(label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assignments: %w", err)
	}
	return out, nil
}

func (r *PostgresRunRepository) List(ctx context.Context, opts *ListOptions) ([]*PlanRun, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.List",
		telemetry.WithAttributes(telemetry.DBAttributes("select", "plan_runs")...))
	defer span.End()

	o := opts.normalize()

	// Строим WHERE
	where := "TRUE"
	var args []any
	argNum := 1

	if o.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(o.Status))
		argNum++
	}
	if o.GraphHash != "" {
		where += fmt.Sprintf(" AND graph_hash = $%d", argNum)
		args = append(args, o.GraphHash)
		argNum++
	}

	// Подсчёт
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM plan_runs WHERE %s", where)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plan runs: %w", err)
	}

	// Данные
	selectQuery := fmt.Sprintf(`
		SELECT
			id, name, graph_hash, node_count, edge_count,
			required_districts, random_seed, status, sweeps,
			district_count, duration_ms, error_code, created_at
		FROM plan_runs
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, where, argNum, argNum+1)

	args = append(args, o.Limit, o.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list plan runs: %w", err)
	}
	defer rows.Close()

	var results []*PlanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan plan run: %w", err)
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read plan runs: %w", err)
	}

	return results, total, nil
}

// Delete удаляет запуск; дочерние записи удаляются каскадно
func (r *PostgresRunRepository) Delete(ctx context.Context, id string) error {
	return telemetry.Trace(ctx, "PostgresRunRepository.Delete", func(ctx context.Context) error {
		result, err := r.db.Exec(ctx, `DELETE FROM plan_runs WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete plan run: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrRunNotFound
		}
		return nil
	}, telemetry.DBAttributes("delete", "plan_runs")...)
}
