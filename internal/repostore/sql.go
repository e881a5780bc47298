package repostore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"codewiki/internal/corerr"
	"codewiki/internal/domain"
)

// statusToDB / dbToStatus implement the spec §4.8 status string mapping:
// {Pending<->created, Indexing<->indexing, Completed<->indexed, Failed<->failed, Cancelled<->archived}.
var statusToDB = map[domain.RepoStatus]string{
	domain.StatusPending:   "created",
	domain.StatusIndexing:  "indexing",
	domain.StatusCompleted: "indexed",
	domain.StatusFailed:    "failed",
	domain.StatusCancelled: "archived",
}

var dbToStatus = map[string]domain.RepoStatus{
	"created":  domain.StatusPending,
	"indexing": domain.StatusIndexing,
	"indexed":  domain.StatusCompleted,
	"failed":   domain.StatusFailed,
	"archived": domain.StatusCancelled,
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS repositories (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	repo_type TEXT NOT NULL,
	status TEXT NOT NULL,
	owner_id TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	indexed_at TIMESTAMPTZ,
	progress DOUBLE PRECISION NOT NULL DEFAULT 0,
	metadata TEXT NOT NULL DEFAULT '{}'
);`

// SQL is the pgx-backed Storage adapter (spec §4.8, §6 "Persisted storage schema").
type SQL struct {
	pool *pgxpool.Pool
}

func NewSQL(ctx context.Context, connString string) (*SQL, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindStorage, "connect to postgres", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, corerr.Wrap(corerr.KindStorage, "create repositories table", err)
	}
	return &SQL{pool: pool}, nil
}

func (s *SQL) Close() { s.pool.Close() }

func (s *SQL) Save(ctx context.Context, r domain.Repository) error {
	md, err := json.Marshal(r.Metadata)
	if err != nil {
		return corerr.Wrap(corerr.KindInternal, "marshal repository metadata", err)
	}
	dbStatus, ok := statusToDB[r.Status]
	if !ok {
		dbStatus = statusToDB[domain.StatusPending]
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO repositories (id, url, repo_type, status, owner_id, created_at, updated_at, indexed_at, progress, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			url=$2, repo_type=$3, status=$4, owner_id=$5, updated_at=$7, indexed_at=$8, progress=$9, metadata=$10
	`, r.ID, r.URL, string(r.RepoType), dbStatus, r.OwnerID, r.CreatedAt, r.UpdatedAt, r.IndexedAt, r.Progress, md)
	if err != nil {
		return corerr.Wrap(corerr.KindStorage, "save repository", err)
	}
	return nil
}

func (s *SQL) scanRow(row pgx.Row) (domain.Repository, error) {
	var r domain.Repository
	var repoType, status string
	var md []byte
	if err := row.Scan(&r.ID, &r.URL, &repoType, &status, &r.OwnerID, &r.CreatedAt, &r.UpdatedAt, &r.IndexedAt, &r.Progress, &md); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Repository{}, corerr.NotFound("repository not found")
		}
		return domain.Repository{}, corerr.Wrap(corerr.KindStorage, "scan repository row", err)
	}
	r.RepoType = domain.RepoType(repoType)
	r.Status = dbToStatus[status]
	r.Metadata = make(map[string]string)
	_ = json.Unmarshal(md, &r.Metadata)
	return r, nil
}

func (s *SQL) Load(ctx context.Context, id string) (domain.Repository, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, url, repo_type, status, owner_id, created_at, updated_at, indexed_at, progress, metadata
		FROM repositories WHERE id=$1`, id)
	return s.scanRow(row)
}

func (s *SQL) List(ctx context.Context, ownerID string) ([]domain.Repository, error) {
	var rows pgx.Rows
	var err error
	if ownerID == "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, url, repo_type, status, owner_id, created_at, updated_at, indexed_at, progress, metadata
			FROM repositories`)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, url, repo_type, status, owner_id, created_at, updated_at, indexed_at, progress, metadata
			FROM repositories WHERE owner_id=$1`, ownerID)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.KindStorage, "list repositories", err)
	}
	defer rows.Close()
	return collectRepos(rows)
}

func collectRepos(rows pgx.Rows) ([]domain.Repository, error) {
	var out []domain.Repository
	for rows.Next() {
		var r domain.Repository
		var repoType, status string
		var md []byte
		if err := rows.Scan(&r.ID, &r.URL, &repoType, &status, &r.OwnerID, &r.CreatedAt, &r.UpdatedAt, &r.IndexedAt, &r.Progress, &md); err != nil {
			return nil, corerr.Wrap(corerr.KindStorage, "scan repository row", err)
		}
		r.RepoType = domain.RepoType(repoType)
		r.Status = dbToStatus[status]
		r.Metadata = make(map[string]string)
		_ = json.Unmarshal(md, &r.Metadata)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM repositories WHERE id=$1`, id)
	if err != nil {
		return corerr.Wrap(corerr.KindStorage, "delete repository", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.NotFound("repository %s not found", id)
	}
	return nil
}

// UpdateStatus sets indexed_at=now() iff the new status is Completed
// (spec §4.8 SQL adapter invariant).
func (s *SQL) UpdateStatus(ctx context.Context, id string, status domain.RepoStatus, progress float64) error {
	dbStatus := statusToDB[status]
	var err error
	if status == domain.StatusCompleted {
		_, err = s.pool.Exec(ctx, `UPDATE repositories SET status=$2, progress=$3, updated_at=$4, indexed_at=$4 WHERE id=$1`,
			id, dbStatus, progress, now())
	} else {
		_, err = s.pool.Exec(ctx, `UPDATE repositories SET status=$2, progress=$3, updated_at=$4 WHERE id=$1`,
			id, dbStatus, progress, now())
	}
	if err != nil {
		return corerr.Wrap(corerr.KindStorage, "update repository status", err)
	}
	return nil
}

func (s *SQL) UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error {
	existing, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if existing.Metadata == nil {
		existing.Metadata = make(map[string]string)
	}
	for k, v := range metadata {
		existing.Metadata[k] = v
	}
	md, err := json.Marshal(existing.Metadata)
	if err != nil {
		return corerr.Wrap(corerr.KindInternal, "marshal metadata", err)
	}
	_, err = s.pool.Exec(ctx, `UPDATE repositories SET metadata=$2, updated_at=$3 WHERE id=$1`, id, md, now())
	if err != nil {
		return corerr.Wrap(corerr.KindStorage, "update repository metadata", err)
	}
	return nil
}

func (s *SQL) ListByStatus(ctx context.Context, status domain.RepoStatus) ([]domain.Repository, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, repo_type, status, owner_id, created_at, updated_at, indexed_at, progress, metadata
		FROM repositories WHERE status=$1`, statusToDB[status])
	if err != nil {
		return nil, corerr.Wrap(corerr.KindStorage, "list repositories by status", err)
	}
	defer rows.Close()
	return collectRepos(rows)
}

func (s *SQL) StatusCounts(ctx context.Context) (StatusCounts, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM repositories GROUP BY status`)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindStorage, "count repositories by status", err)
	}
	defer rows.Close()
	counts := make(StatusCounts)
	for rows.Next() {
		var dbStatus string
		var n int
		if err := rows.Scan(&dbStatus, &n); err != nil {
			return nil, corerr.Wrap(corerr.KindStorage, "scan status count", err)
		}
		counts[dbToStatus[dbStatus]] = n
	}
	return counts, rows.Err()
}

func (s *SQL) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	return nil
}

var _ Storage = (*SQL)(nil)
