package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenagro/enviro-data-batch/internal/domain"
	"github.com/regenagro/enviro-data-batch/internal/observability"
	"github.com/regenagro/enviro-data-batch/internal/pipeline"
)

// --- mocks ---

type mockProfiles struct {
	profiles []domain.Profile
	err      error
}

func (m *mockProfiles) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	return m.profiles, m.err
}

type mockWeather struct {
	days  []domain.WeatherDay
	err   error
	calls int
}

func (m *mockWeather) FetchDaily(_ context.Context, _ domain.Coordinate, _, _ time.Time) ([]domain.WeatherDay, error) {
	m.calls++
	return m.days, m.err
}

type mockSolar struct {
	days  []domain.SolarDay
	err   error
	calls int
}

func (m *mockSolar) FetchDaily(_ context.Context, _ domain.Coordinate, _, _ time.Time) ([]domain.SolarDay, error) {
	m.calls++
	return m.days, m.err
}

type mockStore struct {
	mu        sync.Mutex
	rainfall  map[string]float64
	ndvi      map[string]float64
	metrics   []domain.Metric
	estimates []domain.CarbonEstimate
	failTable string
}

func newMockStore() *mockStore {
	return &mockStore{
		rainfall: make(map[string]float64),
		ndvi:     make(map[string]float64),
	}
}

func (m *mockStore) UpsertMonthlyRainfall(_ context.Context, userID, month string, rainfallMm float64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTable == "rainfall" {
		return errors.New("rainfall write failed")
	}
	m.rainfall[userID+"/"+month] = rainfallMm
	return nil
}

func (m *mockStore) UpsertVegetation(_ context.Context, userID, month string, ndvi float64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTable == "vegetation" {
		return errors.New("vegetation write failed")
	}
	m.ndvi[userID+"/"+month] = ndvi
	return nil
}

func (m *mockStore) UpsertMetric(_ context.Context, metric domain.Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTable == "metrics" {
		return errors.New("metric write failed")
	}
	m.metrics = append(m.metrics, metric)
	return nil
}

func (m *mockStore) UpsertCarbonEstimate(_ context.Context, estimate domain.CarbonEstimate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.estimates = append(m.estimates, estimate)
	return nil
}

type mockPublisher struct {
	events []domain.AggregateEvent
	err    error
}

func (m *mockPublisher) PublishAggregates(_ context.Context, events []domain.AggregateEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

type staticGeocoder struct {
	coord domain.Coordinate
	found bool
}

func (g *staticGeocoder) Search(_ context.Context, _ string) (domain.Coordinate, bool, error) {
	return g.coord, g.found, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func weatherFixture() []domain.WeatherDay {
	return []domain.WeatherDay{
		{Date: "2024-03-01", PrecipitationMm: 5.0},
		{Date: "2024-03-02", PrecipitationMm: 3.0},
		{Date: "2024-04-01", PrecipitationMm: 8.0},
	}
}

func solarFixture() []domain.SolarDay {
	return []domain.SolarDay{
		{Date: "20240301", Irradiance: 5.0, PrecipitationMm: 4.0},
		{Date: "20240401", Irradiance: 6.0, PrecipitationMm: 2.0},
	}
}

func newPipeline(profiles pipeline.ProfileSource, weather *mockWeather, solar *mockSolar, store *mockStore, publisher pipeline.EventPublisher) *pipeline.Pipeline {
	return pipeline.New(
		profiles,
		&staticGeocoder{},
		weather,
		solar,
		store,
		publisher,
		testLogger(),
		observability.NewMetricsForTesting(),
		6,
		time.Minute,
	)
}

// --- tests ---

func TestRunHappyPath(t *testing.T) {
	freezeClock(t)

	profiles := &mockProfiles{profiles: []domain.Profile{
		{UserID: "user-1", Location: "-1.29,36.82", LandSizeHa: 10},
	}}
	weather := &mockWeather{days: weatherFixture()}
	solar := &mockSolar{days: solarFixture()}
	store := newMockStore()
	publisher := &mockPublisher{}

	p := newPipeline(profiles, weather, solar, store, publisher)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Errored)
	assert.NotEmpty(t, result.ID)

	assert.InDelta(t, 8.0, store.rainfall["user-1/2024-03"], 1e-9)
	assert.InDelta(t, 8.0, store.rainfall["user-1/2024-04"], 1e-9)
	assert.Contains(t, store.ndvi, "user-1/2024-03")
	assert.Contains(t, store.ndvi, "user-1/2024-04")
	assert.Len(t, store.metrics, 2)
	require.Len(t, store.estimates, 1)
	assert.Equal(t, "user-1", store.estimates[0].UserID)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, 2, event.RainfallMonths)
	assert.Equal(t, 2, event.VegetationMonths)
	assert.Equal(t, 2, event.MetricsWritten)
}

func TestRunSkipsUnresolvableLocation(t *testing.T) {
	freezeClock(t)

	profiles := &mockProfiles{profiles: []domain.Profile{
		{UserID: "user-1", Location: "Atlantis"},
		{UserID: "user-2", Location: "-1.29,36.82"},
	}}
	weather := &mockWeather{days: weatherFixture()}
	solar := &mockSolar{days: solarFixture()}
	store := newMockStore()

	p := newPipeline(profiles, weather, solar, store, nil)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, weather.calls)
	assert.Equal(t, 1, solar.calls)
}

func TestRunIsolatesFetchFailures(t *testing.T) {
	freezeClock(t)

	profiles := &mockProfiles{profiles: []domain.Profile{
		{UserID: "user-1", Location: "-1.29,36.82"},
		{UserID: "user-2", Location: "9.05,38.74"},
	}}
	weather := &mockWeather{err: errors.New("archive unavailable")}
	solar := &mockSolar{days: solarFixture()}
	store := newMockStore()

	p := newPipeline(profiles, weather, solar, store, nil)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Errored)
	assert.Zero(t, result.Processed)
	assert.Empty(t, store.rainfall)
}

func TestRunMarksWriteFailuresErrored(t *testing.T) {
	freezeClock(t)

	profiles := &mockProfiles{profiles: []domain.Profile{
		{UserID: "user-1", Location: "-1.29,36.82"},
	}}
	weather := &mockWeather{days: weatherFixture()}
	solar := &mockSolar{days: solarFixture()}
	store := newMockStore()
	store.failTable = "metrics"
	publisher := &mockPublisher{}

	p := newPipeline(profiles, weather, solar, store, publisher)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errored)
	assert.Zero(t, result.Processed)
	assert.Empty(t, publisher.events)
	// Writes to the other tables still happened before the failure.
	assert.NotEmpty(t, store.rainfall)
}

func TestRunPublishFailureCountsAsErrored(t *testing.T) {
	freezeClock(t)

	profiles := &mockProfiles{profiles: []domain.Profile{
		{UserID: "user-1", Location: "-1.29,36.82", LandSizeHa: 10},
	}}
	store := newMockStore()
	publisher := &mockPublisher{err: errors.New("broker unreachable")}

	p := newPipeline(profiles, &mockWeather{days: weatherFixture()}, &mockSolar{days: solarFixture()}, store, publisher)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errored)
	assert.Zero(t, result.Processed)
	// The durable writes still happened; only the announcement failed.
	assert.NotEmpty(t, store.rainfall)
}

func TestRunListProfilesFailureAborts(t *testing.T) {
	freezeClock(t)

	profiles := &mockProfiles{err: errors.New("connection refused")}
	p := newPipeline(profiles, &mockWeather{}, &mockSolar{}, newMockStore(), nil)

	_, err := p.Run(context.Background())
	require.Error(t, err)

	_, ok := p.LatestResult()
	assert.False(t, ok)
}

func TestRunSkipsCarbonEstimateWithoutArea(t *testing.T) {
	freezeClock(t)

	profiles := &mockProfiles{profiles: []domain.Profile{
		{UserID: "user-1", Location: "-1.29,36.82", LandSizeHa: 0},
	}}
	weather := &mockWeather{days: weatherFixture()}
	solar := &mockSolar{days: solarFixture()}
	store := newMockStore()

	p := newPipeline(profiles, weather, solar, store, nil)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, store.estimates)
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	freezeClock(t)

	profiles := &blockingProfiles{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := newPipeline(profiles, &mockWeather{}, &mockSolar{}, newMockStore(), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = p.Run(context.Background())
	}()

	<-profiles.started
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrRunInProgress)

	close(profiles.release)
	wg.Wait()
}

func TestStartRunReturnsID(t *testing.T) {
	freezeClock(t)

	profiles := &mockProfiles{}
	p := newPipeline(profiles, &mockWeather{}, &mockSolar{}, newMockStore(), nil)

	id, err := p.StartRun()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		result, ok := p.LatestResult()
		return ok && result.ID == id
	}, time.Second, 10*time.Millisecond)

	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestCheckReadinessBeforeFirstRun(t *testing.T) {
	p := newPipeline(&mockProfiles{}, &mockWeather{}, &mockSolar{}, newMockStore(), nil)

	assert.Error(t, p.CheckReadiness(context.Background()))
}

type blockingProfiles struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingProfiles) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil, nil
}
