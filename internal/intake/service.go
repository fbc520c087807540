package intake

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"leadgen/internal/logging"
	"leadgen/internal/metrics"
	"leadgen/internal/model"
	"leadgen/internal/notify"
	"leadgen/internal/storage"
)

// Outcome is what happened to an accepted submission in storage. Every
// outcome still yields a success response.
type Outcome string

const (
	OutcomePersisted     Outcome = "persisted"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomePersistFailed Outcome = "persist-failed"
)

type Result struct {
	Lead    model.Lead
	Outcome Outcome
}

// Publisher announces newly stored leads to downstream systems.
type Publisher interface {
	PublishLead(lead model.Lead) error
}

type Options struct {
	Store  storage.LeadStore
	Mailer notify.Sender
	// Events is optional.
	Events Publisher
	// BrandName signs the receipt email.
	BrandName string
	// Recipients receive the internal alert; none disables it.
	Recipients []string
	Logger     logrus.FieldLogger
}

// Service runs the lead intake lifecycle:
// validate, dedupe, append if new, publish, notify the lead, notify the team.
type Service struct {
	store      storage.LeadStore
	mailer     notify.Sender
	events     Publisher
	brand      string
	recipients []string
	log        logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

func NewService(opts Options) *Service {
	mailer := opts.Mailer
	if mailer == nil {
		mailer = notify.NoopSender{}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		store:      opts.Store,
		mailer:     mailer,
		events:     opts.Events,
		brand:      opts.BrandName,
		recipients: opts.Recipients,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Submit validates req and processes it. The only error it returns wraps
// ErrInvalidInput; storage, event and mail failures are logged and
// reflected in the Outcome and metrics instead.
func (s *Service) Submit(ctx context.Context, req Request, sourceIP string) (Result, error) {
	lead, err := Validate(req)
	if err != nil {
		return Result{}, err
	}
	lead.ID = s.newID()
	lead.CreatedAt = s.now()
	lead.SourceIP = sourceIP

	log := s.log.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"email":   lead.Email,
	})

	outcome := s.persist(ctx, &lead, log)
	metrics.Submissions.WithLabelValues(string(outcome)).Inc()

	if outcome == OutcomePersisted && s.events != nil {
		if err := s.events.PublishLead(lead); err != nil {
			log.WithError(err).Warn("lead event publish failed")
		}
	}

	s.sendReceipt(ctx, lead, log)
	s.sendAlert(ctx, lead, log)

	return Result{Lead: lead, Outcome: outcome}, nil
}

func (s *Service) persist(ctx context.Context, lead *model.Lead, log logrus.FieldLogger) Outcome {
	created, err := s.store.Insert(ctx, lead)
	switch {
	case err != nil:
		log.WithError(err).Error("lead not persisted")
		return OutcomePersistFailed
	case created:
		log.Info("lead persisted")
		return OutcomePersisted
	default:
		log.Info("duplicate lead ignored")
		return OutcomeDuplicate
	}
}

func (s *Service) sendReceipt(ctx context.Context, lead model.Lead, log logrus.FieldLogger) {
	msg, err := notify.ReceiptMessage(s.brand, lead)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	observeSend("receipt", err, log)
}

func (s *Service) sendAlert(ctx context.Context, lead model.Lead, log logrus.FieldLogger) {
	if len(s.recipients) == 0 {
		return
	}
	msg, err := notify.AlertMessage(s.recipients, lead)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	observeSend("alert", err, log)
}

func observeSend(kind string, err error, log logrus.FieldLogger) {
	if err != nil {
		log.WithError(err).WithField("kind", kind).Warn("notification failed")
		metrics.Notifications.WithLabelValues(kind, "error").Inc()
		return
	}
	metrics.Notifications.WithLabelValues(kind, "ok").Inc()
}
