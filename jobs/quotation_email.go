package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/odyssey-erp/odyssey-smb/internal/jobs"
)

// Mail is a rendered plain-text message.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// MailSender delivers a rendered message.
type MailSender interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host       string
	Port       int
	From       string
	Username   string
	Password   string
	RequireTLS bool
	Timeout    time.Duration
}

// ErrInvalidAddress marks a message whose sender or recipient cannot be parsed.
var ErrInvalidAddress = errors.New("invalid mail address")

// SMTPSender delivers mail through an SMTP relay with go-mail.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewSMTPSender constructs the sender. PLAIN auth is used only when a
// username is configured; STARTTLS is opportunistic unless RequireTLS is set.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{cfg: cfg}
	s.send = s.dialAndSend
	return s
}

// Send composes the message and hands it to the relay.
func (s *SMTPSender) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.compose(m)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *SMTPSender) compose(m Mail) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("%w: from %q: %v", ErrInvalidAddress, s.cfg.From, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("%w: to %q: %v", ErrInvalidAddress, m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	policy := mail.TLSOpportunistic
	if s.cfg.RequireTLS {
		policy = mail.TLSMandatory
	}
	opts := []mail.Option{mail.WithPort(s.cfg.Port), mail.WithTLSPolicy(policy)}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password))
	}
	return opts
}

// QuotationEmailJob renders and sends quotation emails.
type QuotationEmailJob struct {
	Sender  MailSender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Company string
	printer *message.Printer
}

// NewQuotationEmailJob wires the mail handler. Amounts are formatted for tag.
func NewQuotationEmailJob(sender MailSender, company string, tag language.Tag, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuotationEmailJob {
	return &QuotationEmailJob{
		Sender:  sender,
		Logger:  logger,
		Metrics: metrics,
		Company: company,
		printer: message.NewPrinter(tag),
	}
}

// Handle processes quotation:email tasks.
func (j *QuotationEmailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sender == nil {
		return errors.New("quotation email: handler not configured")
	}
	var payload QuotationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("quotation email: decode payload: %w", asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("quotation email: %s has no recipient: %w", payload.Number, asynq.SkipRetry)
	}

	tracker := jobMetrics(j.Metrics).Track(TaskQuotationEmail)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskQuotationEmail).With(
		slog.Int64("quotation_id", payload.QuotationID),
		slog.String("number", payload.Number),
	)
	rendered := j.Render(payload)
	if err := j.Sender.Send(ctx, rendered); err != nil {
		logger.Warn("send quotation email", slog.Any("error", err))
		if errors.Is(err, ErrInvalidAddress) {
			return fmt.Errorf("quotation email: %w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	logger.Info("quotation email sent", slog.String("to", payload.To))
	return nil
}

// Render builds the plain-text email for payload.
func (j *QuotationEmailJob) Render(payload QuotationEmailPayload) Mail {
	p := j.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	company := j.Company
	if company == "" {
		company = "Odyssey"
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "Dear %s,\n\n", fallback(payload.CustomerName, "customer"))
	fmt.Fprintf(&body, "Please find our quotation %s dated %s below.\n", payload.Number, formatDate(payload.QuoteDate))
	fmt.Fprintf(&body, "The prices are valid until %s.\n\n", formatDate(payload.ValidUntil))

	tw := tabwriter.NewWriter(&body, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tItem\tQty\tUnit price\tAmount\t")
	for i, line := range payload.Lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n",
			i+1, line.Description, formatNumber(p, line.Quantity, 0, 4), formatNumber(p, line.UnitPrice, 2, 2), formatNumber(p, line.Amount, 2, 2))
	}
	fmt.Fprintf(tw, "\t\t\tTotal\t%s\t\n", formatNumber(p, payload.Total, 2, 2))
	_ = tw.Flush()

	if payload.Notes != "" {
		fmt.Fprintf(&body, "\nNotes: %s\n", payload.Notes)
	}
	fmt.Fprintf(&body, "\nRegards,\n%s\n", company)

	return Mail{
		To:      payload.To,
		Subject: fmt.Sprintf("Quotation %s from %s", payload.Number, company),
		Body:    body.String(),
	}
}

// formatNumber prints d with grouping for the printer's locale, using at
// least minScale and at most maxScale decimals.
func formatNumber(p *message.Printer, d decimal.Decimal, minScale, maxScale int) string {
	scale := 0
	if _, frac, ok := strings.Cut(d.String(), "."); ok {
		scale = len(frac)
	}
	scale = max(minScale, min(scale, maxScale))
	f, _ := d.Round(int32(scale)).Float64()
	return p.Sprintf(fmt.Sprintf("%%.%df", scale), f)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006")
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
