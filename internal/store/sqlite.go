package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS results (
	id            TEXT PRIMARY KEY,
	org_key       TEXT NOT NULL,
	name_key      TEXT NOT NULL DEFAULT '',
	company_name  TEXT NOT NULL,
	company_domain TEXT NOT NULL DEFAULT '',
	contact_name  TEXT NOT NULL DEFAULT '',
	contact_title TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	score         REAL NOT NULL DEFAULT 0,
	confidence    REAL NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	candidates    INTEGER NOT NULL DEFAULT 0,
	pages         INTEGER NOT NULL DEFAULT 0,
	reason        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_org_key ON results(org_key);

CREATE TABLE IF NOT EXISTS sent_log (
	org_key  TEXT NOT NULL,
	address  TEXT NOT NULL,
	sent_at  TIMESTAMP NOT NULL,
	status   TEXT NOT NULL DEFAULT 'sent',
	PRIMARY KEY (org_key, address)
);
CREATE INDEX IF NOT EXISTS idx_sent_log_sent_at ON sent_log(sent_at);
`

// SQLiteStore is the default single-file backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "opening sqlite db at %s", path)
	}
	// one writer at a time keeps modernc's file locking happy
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "applying %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "creating sqlite schema")
	}
	return nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, res *model.OutreachResult) error {
	var contactName, contactTitle string
	if res.Contact != nil {
		contactName = res.Contact.FullName()
		contactTitle = res.Contact.Title
	}
	r, err := s.db.ExecContext(ctx, `
		INSERT INTO results
			(id, org_key, name_key, company_name, company_domain, contact_name, contact_title,
			 email, score, confidence, status, candidates, pages, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), res.Org.Key(), nameKey(res.Org), res.Org.Name, res.Org.Domain, contactName, contactTitle,
		res.Email, res.Score, res.Confidence, string(res.Status),
		res.Candidates, res.Pages, res.Reason,
	)
	if err != nil {
		return eris.Wrapf(err, "saving result for %s", res.Org.Name)
	}
	n, _ := r.RowsAffected()
	return checkRowsAffected(n, "save result")
}

func (s *SQLiteStore) ListResults(ctx context.Context, limit int) ([]model.OutreachResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_name, company_domain, contact_name, contact_title,
		       email, score, confidence, status, candidates, pages, reason
		FROM results ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "listing results")
	}
	defer rows.Close()

	var out []model.OutreachResult
	for rows.Next() {
		var (
			res          model.OutreachResult
			status       string
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

func (s *SQLiteStore) WasProcessed(ctx context.Context, org model.Organization) (bool, error) {
	// The stored key carries the resolved domain, which the caller may
	// not have on a rerun, so also match by normalized company name.
	nk := nameKey(org)
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM results
		WHERE org_key = ? OR (? != '' AND name_key = ?)
		LIMIT 1`,
		org.Key(), nk, nk,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "checking processed organizations")
	}
	return true, nil
}

func (s *SQLiteStore) RecordSent(ctx context.Context, rec model.SentRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = "sent"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sent_log (org_key, address, sent_at, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (org_key, address) DO NOTHING`,
		rec.OrgKey, rec.Address, rec.SentAt, rec.Status,
	)
	return eris.Wrapf(err, "recording send to %s", rec.Address)
}

func (s *SQLiteStore) WasSent(ctx context.Context, orgKey, address string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sent_log WHERE org_key = ? AND address = ?`,
		orgKey, address,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "checking sent log")
	}
	return true, nil
}

func (s *SQLiteStore) SentCountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_log WHERE sent_at >= ?`, cutoff,
	).Scan(&n)
	return n, eris.Wrap(err, "counting recent sends")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
