package notify

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sender delivers a single email. Implementations can be swapped
// (SMTP relay, no-op) without changing callers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To      []string
	Subject string
	Body    string // plain text
}

// Config is the SMTP relay configuration. All fields are required for
// mail to be sent.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func (c Config) Complete() bool {
	return c.Host != "" && c.Port > 0 && c.User != "" && c.Pass != "" && c.From != ""
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type sendMailFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// SMTPSender sends plain-text mail through an authenticated SMTP relay,
// upgrading with STARTTLS when the server offers it.
type SMTPSender struct {
	cfg      Config
	from     *mail.Address
	sendMail sendMailFunc
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewSMTPSender returns nil when cfg is incomplete or its from address
// does not parse.
func NewSMTPSender(cfg Config, log logrus.FieldLogger) *SMTPSender {
	if !cfg.Complete() {
		return nil
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		log.WithError(err).WithField("from", cfg.From).Warn("invalid sender address, email disabled")
		return nil
	}
	return &SMTPSender{
		cfg:      cfg,
		from:     from,
		sendMail: smtp.SendMail,
		now:      time.Now,
		log:      log,
	}
}

// New returns an SMTP sender when cfg is complete, otherwise a sender
// that drops every message.
func New(cfg Config, log logrus.FieldLogger) Sender {
	if s := NewSMTPSender(cfg, log); s != nil {
		return s
	}
	log.Info("smtp not configured, email notifications disabled")
	return NoopSender{log: log}
}

var _ Sender = (*SMTPSender)(nil)

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return errors.New("notify: no recipients")
	}

	raw, rcpts, err := compose(s.from, msg, s.now())
	if err != nil {
		return err
	}

	auth := sasl.NewPlainClient("", s.cfg.User, s.cfg.Pass)
	if err := s.sendMail(s.cfg.Addr(), auth, s.from.Address, rcpts, bytes.NewReader(raw)); err != nil {
		return errors.Wrap(err, "notify: smtp send failed")
	}

	s.log.WithFields(logrus.Fields{
		"to":      rcpts,
		"subject": msg.Subject,
	}).Info("email sent")
	return nil
}

// compose renders msg as an RFC 5322 message and returns it together
// with the bare envelope recipients.
func compose(from *mail.Address, msg Message, now time.Time) ([]byte, []string, error) {
	to := make([]*mail.Address, 0, len(msg.To))
	rcpts := make([]string, 0, len(msg.To))
	for _, raw := range msg.To {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "notify: invalid recipient %q", raw)
		}
		to = append(to, addr)
		rcpts = append(rcpts, addr.Address)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, nil, errors.Wrap(err, "notify: message id")
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, nil, errors.Wrap(err, "notify: create message")
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, nil, errors.Wrap(err, "notify: write body")
	}
	if err := w.Close(); err != nil {
		return nil, nil, errors.Wrap(err, "notify: close message")
	}
	return buf.Bytes(), rcpts, nil
}

// NoopSender is used when SMTP is not configured.
type NoopSender struct {
	log logrus.FieldLogger
}

func (s NoopSender) Send(ctx context.Context, msg Message) error {
	if s.log != nil {
		s.log.WithField("subject", msg.Subject).Debug("smtp not configured, skipping email")
	}
	return nil
}
