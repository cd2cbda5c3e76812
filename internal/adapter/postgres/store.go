// Package postgres implements the profile source and the idempotent
// aggregate writer on a Postgres destination store.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/regenagro/enviro-data-batch/internal/domain"
	"github.com/regenagro/enviro-data-batch/internal/observability"
)

// Schema is the destination DDL. Applied by deploy tooling and by the
// integration tests; the service itself never migrates.
//
//go:embed schema.sql
var Schema string

// Store reads profiles and upserts aggregate rows. Every write names its
// natural key in an ON CONFLICT clause, so re-running a batch overwrites
// rows instead of duplicating them.
type Store struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New connects a pool and verifies the connection.
func New(ctx context.Context, dsn string, metrics *observability.Metrics, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return NewWithPool(pool, metrics, logger), nil
}

// NewWithPool wraps an existing pool; the caller keeps ownership of it.
func NewWithPool(pool *pgxpool.Pool, metrics *observability.Metrics, logger *slog.Logger) *Store {
	return &Store{pool: pool, metrics: metrics, logger: logger}
}

func (s *Store) Close() {
	s.pool.Close()
}

// ListProfiles returns every profile with a non-empty location string.
func (s *Store) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, location, COALESCE(land_size_hectares, 0)
		 FROM profiles
		 WHERE location IS NOT NULL AND location <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.UserID, &p.Location, &p.LandSizeHa); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// UpsertMonthlyRainfall writes one monthly rainfall total keyed (user, month).
func (s *Store) UpsertMonthlyRainfall(ctx context.Context, userID, month string, rainfallMm float64, updatedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rainfall_data (user_id, month, rainfall_mm, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, month) DO UPDATE SET
		   rainfall_mm = EXCLUDED.rainfall_mm,
		   updated_at  = EXCLUDED.updated_at`,
		userID, month, rainfallMm, updatedAt.UTC())
	return s.observe("rainfall_data", err)
}

// UpsertVegetation writes one monthly NDVI value keyed (user, month).
func (s *Store) UpsertVegetation(ctx context.Context, userID, month string, ndvi float64, updatedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vegetation_data (user_id, month, ndvi, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, month) DO UPDATE SET
		   ndvi       = EXCLUDED.ndvi,
		   updated_at = EXCLUDED.updated_at`,
		userID, month, ndvi, updatedAt.UTC())
	return s.observe("vegetation_data", err)
}

// UpsertMetric writes one dashboard metric keyed (user, metric type), so
// exactly one live row exists per type.
func (s *Store) UpsertMetric(ctx context.Context, m domain.Metric) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO metrics (user_id, metric_type, value, change, trend, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, metric_type) DO UPDATE SET
		   value      = EXCLUDED.value,
		   change     = EXCLUDED.change,
		   trend      = EXCLUDED.trend,
		   updated_at = EXCLUDED.updated_at`,
		m.UserID, m.Type, m.Value, m.Change, m.Trend, m.UpdatedAt.UTC())
	return s.observe("metrics", err)
}

// UpsertCarbonEstimate writes one estimate keyed (user, estimation date) so
// same-day re-runs converge on a single row.
func (s *Store) UpsertCarbonEstimate(ctx context.Context, e domain.CarbonEstimate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO carbon_estimates (user_id, estimated_on, carbon_sequestered_tons, area_hectares, credit_value_usd)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, estimated_on) DO UPDATE SET
		   carbon_sequestered_tons = EXCLUDED.carbon_sequestered_tons,
		   area_hectares           = EXCLUDED.area_hectares,
		   credit_value_usd        = EXCLUDED.credit_value_usd`,
		e.UserID, e.EstimatedOn, e.SequesteredTons, e.AreaHa, e.CreditValueUSD)
	return s.observe("carbon_estimates", err)
}

func (s *Store) observe(table string, err error) error {
	if err != nil {
		s.metrics.UpsertErrors.WithLabelValues(table).Inc()
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	s.metrics.Upserts.WithLabelValues(table).Inc()
	return nil
}
