// Package store persists outreach results and the sent log that
// guards against emailing the same contact twice.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrDuplicateSend is returned by callers that treat an existing sent
// record as a hard stop. RecordSent itself is idempotent and never
// returns it.
var ErrDuplicateSend = eris.New("already sent to this address")

// ErrNotFound is returned for lookups of absent rows.
var ErrNotFound = eris.New("not found")

// Store is the persistence interface. Both backends are safe for
// concurrent use by pipeline workers.
type Store interface {
	// Init creates the schema if missing.
	Init(ctx context.Context) error

	// SaveResult inserts one processed-organization row.
	SaveResult(ctx context.Context, res *model.OutreachResult) error

	// ListResults returns the newest results first, up to limit.
	ListResults(ctx context.Context, limit int) ([]model.OutreachResult, error)

	// WasProcessed reports whether the organization already has a
	// persisted result from any earlier run.
	WasProcessed(ctx context.Context, org model.Organization) (bool, error)

	// RecordSent marks (org, address) as contacted. Recording the
	// same pair again is a no-op, so retried sends never error here.
	RecordSent(ctx context.Context, rec model.SentRecord) error

	// WasSent reports whether the pair is already in the sent log.
	WasSent(ctx context.Context, orgKey, address string) (bool, error)

	// SentCountSince counts sends at or after cutoff, for send caps.
	SentCountSince(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// nameKey is the organization key ignoring any resolved domain, stored
// alongside org_key so name-only reruns can match processed rows.
func nameKey(org model.Organization) string {
	return model.Organization{Name: org.Name}.Key()
}

func checkRowsAffected(n int64, op string) error {
	if n == 0 {
		return eris.Errorf("%s: no rows affected", op)
	}
	return nil
}

// splitFullName undoes Contact.FullName for rows read back from the
// results table.
func splitFullName(s string) (first, last string, ok bool) {
	first, last, ok = strings.Cut(s, " ")
	return first, last, ok
}
