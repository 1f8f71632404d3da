package outreach

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/smtp"
)

// ErrDailyLimitReached means the rolling 24h send budget is spent.
// Remaining sends should be retried tomorrow, not treated as failures.
var ErrDailyLimitReached = eris.New("daily send limit reached")

// Config tunes the sender.
type Config struct {
	// SendsPerMinute throttles delivery across every worker sharing
	// this sender.
	SendsPerMinute float64
	// DailyLimit caps sends in a rolling 24h window. 0 disables it.
	DailyLimit int
	// DryRun composes and records nothing, logging what would go out.
	DryRun bool
}

// Sender delivers drafts with three gates in order: the sent-log dedup
// check, the daily budget, and the global rate limiter.
type Sender struct {
	store     store.Store
	transport smtp.Sender
	composer  Composer
	limiter   *rate.Limiter
	cfg       Config
	log       *zap.Logger
}

func NewSender(st store.Store, transport smtp.Sender, composer Composer, cfg Config) *Sender {
	if cfg.SendsPerMinute <= 0 {
		cfg.SendsPerMinute = 2
	}
	return &Sender{
		store:     st,
		transport: transport,
		composer:  composer,
		limiter:   rate.NewLimiter(rate.Limit(cfg.SendsPerMinute/60.0), 1),
		cfg:       cfg,
		log:       zap.L().Named("outreach"),
	}
}

// SendTo composes and delivers one message. A pair already in the sent
// log returns store.ErrDuplicateSend without composing anything; the
// send is recorded only after the transport accepts it, and recording
// is idempotent so a crash between send and record cannot double-send
// on the next run.
func (s *Sender) SendTo(ctx context.Context, org model.Organization, contact *model.Contact, address string) (*model.SentRecord, error) {
	if address == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "no address to send to")
	}
	orgKey := org.Key()

	sent, err := s.store.WasSent(ctx, orgKey, address)
	if err != nil {
		return nil, eris.Wrap(err, "checking sent log")
	}
	if sent {
		return nil, eris.Wrapf(store.ErrDuplicateSend, "%s at %s", address, org.Name)
	}

	if s.cfg.DailyLimit > 0 {
		n, err := s.store.SentCountSince(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			return nil, eris.Wrap(err, "checking daily send count")
		}
		if n >= s.cfg.DailyLimit {
			return nil, eris.Wrapf(ErrDailyLimitReached, "%d sends in the last 24h", n)
		}
	}

	draft, err := s.composer.Compose(ctx, org, contact)
	if err != nil {
		return nil, eris.Wrapf(err, "composing message for %s", org.Name)
	}

	if s.cfg.DryRun {
		s.log.Info("dry run, not sending",
			zap.String("to", address),
			zap.String("company", org.Name),
			zap.String("subject", draft.Subject),
		)
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "waiting on send throttle")
	}

	msg := smtp.Message{To: address, Subject: draft.Subject, Body: draft.Body}
	if contact != nil {
		msg.ToName = contact.FullName()
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		return nil, eris.Wrapf(err, "sending to %s", address)
	}

	rec := model.SentRecord{
		OrgKey:  orgKey,
		Address: address,
		SentAt:  time.Now().UTC(),
		Status:  "sent",
	}
	if err := s.store.RecordSent(ctx, rec); err != nil {
		// delivered but not recorded; surface loudly
		return &rec, eris.Wrapf(err, "send to %s delivered but not recorded", address)
	}
	s.log.Info("sent outreach email",
		zap.String("to", address),
		zap.String("company", org.Name),
	)
	return &rec, nil
}
