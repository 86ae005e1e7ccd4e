package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"mandir-backend/models"
	"mandir-backend/qr"
)

// Store is the slice of the attendee store the dispatcher needs.
type Store interface {
	Get(ctx context.Context, id int64) (models.Attendee, models.ValidationStatus, error)
	GetCredential(ctx context.Context, id int64) (models.Credential, error)
	MarkCredentialSent(ctx context.Context, id int64) error
	ListUnsent(ctx context.Context) ([]int64, error)
}

// Issuer mints a credential when an attendee has none yet.
type Issuer interface {
	Issue(ctx context.Context, id int64) (models.Credential, bool, error)
}

// Sender is the SMTP seam; gomail's Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Body template with named placeholders; attendee fields never collide with
// template text.
var bodyTmpl = template.Must(template.New("qr-email").Parse(`<p>Dear {{.Name}},</p>
<p>Please find your event QR code attached. It will be scanned at the gate to
retrieve your booking, food and parking details.</p>
<p>Your reference: <strong>{{.Reference}}</strong></p>
<p>See you at the event!</p>`))

// Dispatcher emails credentials to attendees. Delivery confirmation drives
// the sent marker; nothing is marked sent on failure.
type Dispatcher struct {
	store   Store
	issuer  Issuer
	sender  Sender
	from    string
	subject string
	qrDir   string
	limiter *rate.Limiter
}

// Config carries the dispatcher's wiring.
type Config struct {
	From    string
	Subject string
	QRDir   string
	// SendRate paces the batch path; zero means the default one message per
	// five seconds the mail provider tolerates.
	SendRate rate.Limit
}

func NewDispatcher(s Store, issuer Issuer, sender Sender, cfg Config) *Dispatcher {
	if cfg.Subject == "" {
		cfg.Subject = "Your Event QR Code"
	}
	if cfg.SendRate == 0 {
		cfg.SendRate = rate.Every(5 * time.Second)
	}
	return &Dispatcher{
		store:   s,
		issuer:  issuer,
		sender:  sender,
		from:    cfg.From,
		subject: cfg.Subject,
		qrDir:   cfg.QRDir,
		limiter: rate.NewLimiter(cfg.SendRate, 1),
	}
}

// SendOne emails the attendee's credential as a PNG attachment and marks it
// sent on confirmed delivery. Issues a credential first if none exists. On
// delivery failure the sent flag stays false and the error surfaces.
func (d *Dispatcher) SendOne(ctx context.Context, id int64) error {
	rec, _, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}

	cred, err := d.store.GetCredential(ctx, id)
	if err == models.ErrNotFound {
		cred, _, err = d.issuer.Issue(ctx, id)
	}
	if err != nil {
		return err
	}

	png, err := qr.DecodeDataURI(cred.DataURI)
	if err != nil {
		return fmt.Errorf("%w: decode credential for %d: %v", models.ErrIssuanceFailed, id, err)
	}

	// Transient artifact for the attachment; removed once delivery is
	// confirmed so the directory does not grow without bound.
	artifact := filepath.Join(d.qrDir, fmt.Sprintf("%d.png", id))
	if err := os.WriteFile(artifact, png, 0o644); err != nil {
		return fmt.Errorf("write qr artifact for %d: %w", id, err)
	}

	body, err := d.renderBody(rec)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", rec.EmailAddress)
	m.SetHeader("Subject", d.subject)
	m.SetBody("text/html", body)
	m.Attach(artifact, gomail.Rename(fmt.Sprintf("%d-qrcode.png", id)))

	if err := d.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: attendee %d: %v", models.ErrDeliveryFailed, id, err)
	}

	if err := d.store.MarkCredentialSent(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(artifact); err != nil {
		log.Warn().Int64("attendee_id", id).Err(err).Msg("could not remove qr artifact")
	}

	log.Info().Int64("attendee_id", id).Str("to", rec.EmailAddress).Msg("credential emailed")
	return nil
}

// SendAllPending emails every attendee whose credential is missing or not
// yet sent, pacing sends to respect the provider's rate limit. One failed
// attendee never aborts the rest; re-invocation only targets those still
// unsent.
func (d *Dispatcher) SendAllPending(ctx context.Context) (models.SendSummary, error) {
	ids, err := d.store.ListUnsent(ctx)
	if err != nil {
		return models.SendSummary{}, err
	}

	summary := models.SendSummary{Failures: map[int64]string{}}
	for _, id := range ids {
		if err := d.limiter.Wait(ctx); err != nil {
			// Cancelled mid-batch: everything processed so far is correctly
			// marked, the rest will be picked up by the next invocation.
			return summary, err
		}
		if err := d.SendOne(ctx, id); err != nil {
			log.Warn().Int64("attendee_id", id).Err(err).Msg("credential email failed")
			summary.Failures[id] = err.Error()
			continue
		}
		summary.Sent++
	}
	return summary, nil
}

type bodyData struct {
	Name      string
	Reference string
}

func (d *Dispatcher) renderBody(rec models.Attendee) (string, error) {
	var buf bytes.Buffer
	err := bodyTmpl.Execute(&buf, bodyData{
		Name:      rec.FirstName + " " + rec.LastName,
		Reference: Reference(rec.ID),
	})
	if err != nil {
		return "", fmt.Errorf("render email body: %w", err)
	}
	return buf.String(), nil
}

// Reference is the id-derived code quoted in the email.
func Reference(id int64) string {
	return fmt.Sprintf("REG-%06d", id)
}
