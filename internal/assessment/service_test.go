package assessment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/nexis/internal/bus"
	"github.com/opensource-finance/nexis/internal/cache"
	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/repository"
)

const tenant = "tenant-001"

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "nexis.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestServiceAssess(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	lru := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	completed := make(chan *domain.AssessmentCompleted, 1)
	_, err := eventBus.Subscribe(ctx, tenant, domain.TopicAssessmentCompleted, func(_ context.Context, msg *domain.Message) error {
		evt, err := bus.Decode[domain.AssessmentCompleted](msg)
		if err != nil {
			return err
		}
		completed <- evt
		return nil
	})
	require.NoError(t, err)

	svc := NewService(NewProcessor(nil, 0), ServiceOptions{
		Repository: repo,
		Cache:      lru,
		Bus:        eventBus,
	})

	a, err := svc.Assess(ctx, tenant, &domain.AssessmentRequest{
		RequestID: "req-1",
		SubjectID: "subject-1",
		Record:    mixedRecord(),
	}, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, 714, a.TrustScore)
	assert.Equal(t, "trace-1", a.Metadata.TraceID)

	stored, err := repo.GetAssessment(ctx, tenant, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 714, stored.TrustScore)

	rec, err := repo.GetLatestRecord(ctx, tenant, "subject-1")
	require.NoError(t, err)
	assert.Equal(t, a.RecordID, rec.ID)
	assert.Equal(t, 40, rec.Record.AccountTenureMonths)

	cached, err := lru.GetAssessment(ctx, tenant, "subject-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, a.ID, cached.ID)

	select {
	case evt := <-completed:
		assert.Equal(t, "req-1", evt.RequestID)
		assert.Equal(t, a.ID, evt.AssessmentID)
		assert.Equal(t, domain.RiskLow, evt.RiskLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("completion event not published")
	}
}

func TestServiceAssessWithoutDependencies(t *testing.T) {
	svc := NewService(NewProcessor(nil, 0), ServiceOptions{})

	a, err := svc.Assess(context.Background(), tenant, &domain.AssessmentRequest{
		SubjectID: "subject-1",
		Record:    poorRecord(),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 497, a.TrustScore)

	_, err = svc.Latest(context.Background(), tenant, "subject-1")
	assert.ErrorIs(t, err, ErrNoAssessment)
}

func TestServiceConsent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(NewProcessor(nil, 0), ServiceOptions{
		Repository:     repo,
		RequireConsent: true,
	})
	req := &domain.AssessmentRequest{SubjectID: "subject-1", Record: mixedRecord()}

	_, err := svc.Assess(ctx, tenant, req, "")
	assert.ErrorIs(t, err, ErrConsentRequired)

	require.NoError(t, repo.SaveConsent(ctx, tenant, &domain.Consent{
		SubjectID: "subject-1",
		Given:     false,
		UpdatedAt: time.Now(),
	}))
	_, err = svc.Assess(ctx, tenant, req, "")
	assert.ErrorIs(t, err, ErrConsentRequired)

	require.NoError(t, repo.SaveConsent(ctx, tenant, &domain.Consent{
		SubjectID: "subject-1",
		Given:     true,
		UpdatedAt: time.Now(),
	}))
	_, err = svc.Assess(ctx, tenant, req, "")
	assert.NoError(t, err)

	noStore := NewService(NewProcessor(nil, 0), ServiceOptions{RequireConsent: true})
	assert.ErrorIs(t, noStore.CheckConsent(ctx, tenant, "subject-1"), ErrConsentRequired)
}

func TestServiceLatest(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	lru := cache.NewLRUCache(100)

	writer := NewService(NewProcessor(nil, 0), ServiceOptions{Repository: repo})
	first, err := writer.Assess(ctx, tenant, &domain.AssessmentRequest{SubjectID: "subject-1", Record: poorRecord()}, "")
	require.NoError(t, err)

	reader := NewService(NewProcessor(nil, 0), ServiceOptions{Repository: repo, Cache: lru})

	got, err := reader.Latest(ctx, tenant, "subject-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	cached, err := lru.GetAssessment(ctx, tenant, "subject-1")
	require.NoError(t, err)
	require.NotNil(t, cached, "repository hit populates the cache")

	_, err = reader.Latest(ctx, tenant, "unknown")
	assert.ErrorIs(t, err, ErrNoAssessment)
}

var errStoreDown = errors.New("connection refused")

// brokenRepo fails the reads the service depends on.
type brokenRepo struct {
	domain.Repository
}

func (brokenRepo) GetConsent(context.Context, string, string) (*domain.Consent, error) {
	return nil, errStoreDown
}

func (brokenRepo) GetLatestAssessment(context.Context, string, string) (*domain.Assessment, error) {
	return nil, errStoreDown
}

// readOnlyCache misses on every read and refuses writes.
type readOnlyCache struct {
	domain.Cache
}

func (readOnlyCache) GetAssessment(context.Context, string, string) (*domain.Assessment, error) {
	return nil, nil
}

func (readOnlyCache) SetAssessment(context.Context, string, string, *domain.Assessment, time.Duration) error {
	return errors.New("cache is read-only")
}

func TestServiceStoreFailures(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewProcessor(nil, 0), ServiceOptions{
		Repository:     brokenRepo{Repository: newTestRepo(t)},
		RequireConsent: true,
	})

	err := svc.CheckConsent(ctx, tenant, "subject-1")
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrConsentRequired, "an unreadable consent store is not a refusal")

	_, err = svc.Latest(ctx, tenant, "subject-1")
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrNoAssessment)
}

func TestServiceLatestLogsCacheFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	writer := NewService(NewProcessor(nil, 0), ServiceOptions{Repository: repo})
	first, err := writer.Assess(ctx, tenant, &domain.AssessmentRequest{SubjectID: "subject-1", Record: mixedRecord()}, "")
	require.NoError(t, err)

	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	reader := NewService(NewProcessor(nil, 0), ServiceOptions{Repository: repo, Cache: readOnlyCache{}})
	got, err := reader.Latest(ctx, tenant, "subject-1")
	require.NoError(t, err, "a cache write failure does not fail the read")
	assert.Equal(t, first.ID, got.ID)
	assert.Contains(t, logs.String(), "failed to cache assessment")
	assert.Contains(t, logs.String(), first.ID)
}
