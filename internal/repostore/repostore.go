// Package repostore implements the Repository Storage interface (C9) with
// in-memory and SQL (pgx) adapters.
package repostore

import (
	"context"
	"time"

	"codewiki/internal/domain"
)

// StatusCounts tallies repositories by lifecycle status.
type StatusCounts map[domain.RepoStatus]int

// Storage is the interface both adapters satisfy (spec §4.8).
type Storage interface {
	Save(ctx context.Context, r domain.Repository) error
	Load(ctx context.Context, id string) (domain.Repository, error)
	List(ctx context.Context, ownerID string) ([]domain.Repository, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.RepoStatus, progress float64) error
	UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error
	ListByStatus(ctx context.Context, status domain.RepoStatus) ([]domain.Repository, error)
	StatusCounts(ctx context.Context) (StatusCounts, error)
	HealthCheck(ctx context.Context) error
}

// now supplies the timestamps both adapters write.
var now = time.Now
