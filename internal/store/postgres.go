package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS results (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	org_key       TEXT NOT NULL,
	name_key      TEXT NOT NULL DEFAULT '',
	company_name  TEXT NOT NULL,
	company_domain TEXT NOT NULL DEFAULT '',
	contact_name  TEXT NOT NULL DEFAULT '',
	contact_title TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	score         DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	candidates    INTEGER NOT NULL DEFAULT 0,
	pages         INTEGER NOT NULL DEFAULT 0,
	reason        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_org_key ON results(org_key);

CREATE TABLE IF NOT EXISTS sent_log (
	org_key  TEXT NOT NULL,
	address  TEXT NOT NULL,
	sent_at  TIMESTAMPTZ NOT NULL,
	status   TEXT NOT NULL DEFAULT 'sent',
	PRIMARY KEY (org_key, address)
);
CREATE INDEX IF NOT EXISTS idx_sent_log_sent_at ON sent_log(sent_at);
`

// pgxConn is the subset of pgxpool.Pool the store uses, narrow enough
// for pgxmock in tests.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore backs shared deployments where several operators work
// off one sent log.
type PostgresStore struct {
	db pgxConn
}

// NewPostgresStore connects to the database at dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "connecting to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "pinging postgres")
	}
	return &PostgresStore{db: pool}, nil
}

// NewPostgresStoreWithConn wires an existing connection, used by tests.
func NewPostgresStoreWithConn(db pgxConn) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "creating postgres schema")
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, res *model.OutreachResult) error {
	var contactName, contactTitle string
	if res.Contact != nil {
		contactName = res.Contact.FullName()
		contactTitle = res.Contact.Title
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO results
			(org_key, name_key, company_name, company_domain, contact_name, contact_title,
			 email, score, confidence, status, candidates, pages, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		res.Org.Key(), nameKey(res.Org), res.Org.Name, res.Org.Domain, contactName, contactTitle,
		res.Email, res.Score, res.Confidence, string(res.Status),
		res.Candidates, res.Pages, res.Reason,
	)
	if err != nil {
		return eris.Wrapf(err, "saving result for %s", res.Org.Name)
	}
	return checkRowsAffected(tag.RowsAffected(), "save result")
}

func (s *PostgresStore) ListResults(ctx context.Context, limit int) ([]model.OutreachResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT company_name, company_domain, contact_name, contact_title,
		       email, score, confidence, status, candidates, pages, reason
		FROM results ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "listing results")
	}
	defer rows.Close()

	var out []model.OutreachResult
	for rows.Next() {
		var (
			res           model.OutreachResult
			status        string
			cName, cTitle string
		)
		if err := rows.Scan(
			&res.Org.Name, &res.Org.Domain, &cName, &cTitle,
			&res.Email, &res.Score, &res.Confidence, &status,
			&res.Candidates, &res.Pages, &res.Reason,
		); err != nil {
			return nil, eris.Wrap(err, "scanning result row")
		}
		res.Status = model.ResultStatus(status)
		if cName != "" {
			first, last, _ := splitFullName(cName)
			res.Contact = &model.Contact{FirstName: first, LastName: last, Title: cTitle}
		}
		out = append(out, res)
	}
	return out, eris.Wrap(rows.Err(), "iterating result rows")
}

func (s *PostgresStore) WasProcessed(ctx context.Context, org model.Organization) (bool, error) {
	// The stored key carries the resolved domain, which the caller may
	// not have on a rerun, so also match by the name-only key.
	nk := nameKey(org)
	var one int
	err := s.db.QueryRow(ctx, `
		SELECT 1 FROM results
		WHERE org_key = $1 OR ($2 != '' AND name_key = $2)
		LIMIT 1`,
		org.Key(), nk,
	).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "checking processed organizations")
	}
	return true, nil
}

func (s *PostgresStore) RecordSent(ctx context.Context, rec model.SentRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = "sent"
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO sent_log (org_key, address, sent_at, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_key, address) DO NOTHING`,
		rec.OrgKey, rec.Address, rec.SentAt, rec.Status,
	)
	return eris.Wrapf(err, "recording send to %s", rec.Address)
}

func (s *PostgresStore) WasSent(ctx context.Context, orgKey, address string) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx,
		`SELECT 1 FROM sent_log WHERE org_key = $1 AND address = $2`,
		orgKey, address,
	).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "checking sent log")
	}
	return true, nil
}

func (s *PostgresStore) SentCountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM sent_log WHERE sent_at >= $1`, cutoff,
	).Scan(&n)
	return n, eris.Wrap(err, "counting recent sends")
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
