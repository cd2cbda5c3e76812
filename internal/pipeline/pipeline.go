package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/regenagro/enviro-data-batch/internal/domain"
	"github.com/regenagro/enviro-data-batch/internal/observability"
)

// ErrRunInProgress is returned when a batch run is requested while another
// run is still executing.
var ErrRunInProgress = errors.New("batch run already in progress")

// ProfileSource lists the user profiles eligible for aggregation.
type ProfileSource interface {
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
}

// WeatherSource fetches daily archive weather for a location and window.
type WeatherSource interface {
	FetchDaily(ctx context.Context, coord domain.Coordinate, start, end time.Time) ([]domain.WeatherDay, error)
}

// SolarSource fetches daily solar irradiance data for a location and window.
type SolarSource interface {
	FetchDaily(ctx context.Context, coord domain.Coordinate, start, end time.Time) ([]domain.SolarDay, error)
}

// AggregateStore persists the derived aggregates for a user.
type AggregateStore interface {
	UpsertMonthlyRainfall(ctx context.Context, userID, month string, rainfallMm float64, updatedAt time.Time) error
	UpsertVegetation(ctx context.Context, userID, month string, ndvi float64, updatedAt time.Time) error
	UpsertMetric(ctx context.Context, m domain.Metric) error
	UpsertCarbonEstimate(ctx context.Context, e domain.CarbonEstimate) error
}

// EventPublisher announces refreshed aggregates downstream.
type EventPublisher interface {
	PublishAggregates(ctx context.Context, events []domain.AggregateEvent) error
}

// RunResult summarizes one batch run.
type RunResult struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Eligible   int       `json:"eligible"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Errored    int       `json:"errored"`
}

// Pipeline orchestrates one batch run: list profiles, resolve locations,
// fetch weather and solar data, derive aggregates, and persist them.
// At most one run executes at a time.
type Pipeline struct {
	profiles  ProfileSource
	geocoder  domain.Geocoder
	weather   WeatherSource
	solar     SolarSource
	store     AggregateStore
	publisher EventPublisher

	logger  *slog.Logger
	metrics *observability.Metrics

	windowMonths int
	runTimeout   time.Duration

	runMu    sync.Mutex
	resultMu sync.RWMutex
	latest   *RunResult
}

// New creates a Pipeline. publisher may be nil when event publishing is
// disabled.
func New(
	profiles ProfileSource,
	geocoder domain.Geocoder,
	weather WeatherSource,
	solar SolarSource,
	store AggregateStore,
	publisher EventPublisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
	windowMonths int,
	runTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		profiles:     profiles,
		geocoder:     geocoder,
		weather:      weather,
		solar:        solar,
		store:        store,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
		windowMonths: windowMonths,
		runTimeout:   runTimeout,
	}
}

// Run executes one batch run synchronously. Returns ErrRunInProgress when
// another run holds the pipeline.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	if !p.runMu.TryLock() {
		return RunResult{}, ErrRunInProgress
	}
	defer p.runMu.Unlock()
	return p.execute(ctx, uuid.NewString())
}

// StartRun launches a batch run in the background and returns its ID.
// Returns ErrRunInProgress when another run holds the pipeline.
func (p *Pipeline) StartRun() (string, error) {
	if !p.runMu.TryLock() {
		return "", ErrRunInProgress
	}
	id := uuid.NewString()
	go func() {
		defer p.runMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), p.runTimeout)
		defer cancel()
		if _, err := p.execute(ctx, id); err != nil {
			p.logger.Error("background run failed", "run_id", id, "error", err)
		}
	}()
	return id, nil
}

// LatestResult returns the most recently finished run, if any.
func (p *Pipeline) LatestResult() (RunResult, bool) {
	p.resultMu.RLock()
	defer p.resultMu.RUnlock()
	if p.latest == nil {
		return RunResult{}, false
	}
	return *p.latest, true
}

// CheckReadiness reports whether the pipeline has completed at least one run.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if _, ok := p.LatestResult(); !ok {
		return errors.New("no batch run has completed yet")
	}
	return nil
}

func (p *Pipeline) execute(ctx context.Context, id string) (RunResult, error) {
	start := domain.Now().UTC()
	p.metrics.RunRunning.Set(1)
	defer p.metrics.RunRunning.Set(0)

	p.logger.Info("batch run started", "run_id", id, "window_months", p.windowMonths)

	profiles, err := p.profiles.ListProfiles(ctx)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("aborted").Inc()
		p.logger.Error("listing profiles failed", "run_id", id, "error", err)
		return RunResult{}, err
	}

	result := RunResult{ID: id, StartedAt: start, Eligible: len(profiles)}
	p.metrics.EligibleUsers.Observe(float64(len(profiles)))

	for _, profile := range profiles {
		if ctx.Err() != nil {
			p.metrics.RunsTotal.WithLabelValues("aborted").Inc()
			p.logger.Warn("batch run aborted", "run_id", id, "reason", ctx.Err())
			return result, ctx.Err()
		}

		event, outcome := p.processUser(ctx, profile)
		if outcome == outcomeProcessed {
			outcome = p.publishEvent(ctx, profile.UserID, event)
		}
		switch outcome {
		case outcomeProcessed:
			result.Processed++
			p.metrics.UsersProcessed.Inc()
		case outcomeSkipped:
			result.Skipped++
			p.metrics.UsersSkipped.Inc()
		case outcomeErrored:
			result.Errored++
			p.metrics.UsersErrored.Inc()
		}
	}

	result.FinishedAt = domain.Now().UTC()
	p.metrics.RunDuration.Observe(result.FinishedAt.Sub(start).Seconds())
	p.metrics.RunsTotal.WithLabelValues("completed").Inc()

	p.resultMu.Lock()
	p.latest = &result
	p.resultMu.Unlock()

	p.logger.Info("batch run finished",
		"run_id", id,
		"eligible", result.Eligible,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errored", result.Errored,
	)
	return result, nil
}

type userOutcome int

const (
	outcomeProcessed userOutcome = iota
	outcomeSkipped
	outcomeErrored
)

// processUser computes and persists all aggregates for a single profile.
// A location that cannot be resolved skips the user; any fetch or write
// failure marks the user errored without affecting the rest of the run.
func (p *Pipeline) processUser(ctx context.Context, profile domain.Profile) (domain.AggregateEvent, userOutcome) {
	logger := p.logger.With("user_id", profile.UserID)

	coord, found := domain.ResolveLocation(ctx, profile.Location, p.geocoder, logger)
	if !found {
		logger.Warn("location could not be resolved, skipping user", "location", profile.Location)
		return domain.AggregateEvent{}, outcomeSkipped
	}

	windowStart, windowEnd := domain.ReportingWindow(p.windowMonths)

	var (
		weatherDays []domain.WeatherDay
		solarDays   []domain.SolarDay
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		weatherDays, err = p.weather.FetchDaily(groupCtx, coord, windowStart, windowEnd)
		return err
	})
	group.Go(func() error {
		var err error
		solarDays, err = p.solar.FetchDaily(groupCtx, coord, windowStart, windowEnd)
		return err
	})
	if err := group.Wait(); err != nil {
		logger.Error("fetching environmental data failed", "error", err)
		return domain.AggregateEvent{}, outcomeErrored
	}

	now := domain.Now().UTC()
	rainfall := domain.MonthlyRainfall(weatherDays)
	vegetation := domain.MonthlyVegetation(solarDays)

	dailyPrecip := make([]float64, len(weatherDays))
	for i, day := range weatherDays {
		dailyPrecip[i] = day.PrecipitationMm
	}
	metrics := domain.ComputeMetrics(profile.UserID, dailyPrecip)

	failed := false
	for _, month := range domain.SortedMonths(rainfall) {
		if err := p.store.UpsertMonthlyRainfall(ctx, profile.UserID, month, rainfall[month], now); err != nil {
			logger.Error("storing rainfall failed", "month", month, "error", err)
			failed = true
		}
	}

	ndviByMonth := make([]float64, 0, len(vegetation))
	for _, month := range domain.SortedMonths(vegetation) {
		ndviByMonth = append(ndviByMonth, vegetation[month].NDVI)
		if err := p.store.UpsertVegetation(ctx, profile.UserID, month, vegetation[month].NDVI, now); err != nil {
			logger.Error("storing vegetation failed", "month", month, "error", err)
			failed = true
		}
	}

	for _, metric := range metrics {
		if err := p.store.UpsertMetric(ctx, metric); err != nil {
			logger.Error("storing metric failed", "metric", metric.Type, "error", err)
			failed = true
		}
	}

	if estimate, ok := domain.EstimateCarbon(profile.UserID, ndviByMonth, profile.LandSizeHa); ok {
		if err := p.store.UpsertCarbonEstimate(ctx, estimate); err != nil {
			logger.Error("storing carbon estimate failed", "error", err)
			failed = true
		}
	}

	if failed {
		return domain.AggregateEvent{}, outcomeErrored
	}

	return domain.AggregateEvent{
		UserID:           profile.UserID,
		RainfallMonths:   len(rainfall),
		VegetationMonths: len(vegetation),
		MetricsWritten:   len(metrics),
		ProcessedAt:      now,
	}, outcomeProcessed
}

// publishEvent announces one user's refreshed aggregates when publishing is
// enabled. A publish failure counts as a write error for that user; the
// Postgres rows are already durable and the next run converges.
func (p *Pipeline) publishEvent(ctx context.Context, userID string, event domain.AggregateEvent) userOutcome {
	if p.publisher == nil {
		return outcomeProcessed
	}
	if err := p.publisher.PublishAggregates(ctx, []domain.AggregateEvent{event}); err != nil {
		p.logger.Error("publishing aggregate event failed", "user_id", userID, "error", err)
		return outcomeErrored
	}
	return outcomeProcessed
}
