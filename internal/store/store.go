package store

import (
	"context"
	"time"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// Store defines the persistence interface for cached signals and saved
// assessments.
type Store interface {
	// External data cache
	GetCached(ctx context.Context, sourceName, dataKey string) (*model.CacheEntry, error)
	PutCached(ctx context.Context, entry model.CacheEntry, ttl time.Duration) error
	PurgeExpired(ctx context.Context) (int, error)
	CacheFreshness(ctx context.Context) ([]model.CacheFreshness, error)

	// Assessments
	SaveAssessment(ctx context.Context, rec model.ExposureRecord) error
	ListAssessments(ctx context.Context, clientID string) ([]model.ExposureRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Clock returns the current time. Stores use it for every expiry decision.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
