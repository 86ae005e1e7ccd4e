package qr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"mandir-backend/models"
)

const (
	imageSize     = 256
	dataURIPrefix = "data:image/png;base64,"
)

// Store is the slice of the attendee store the issuer needs.
type Store interface {
	Get(ctx context.Context, id int64) (models.Attendee, models.ValidationStatus, error)
	GetCredential(ctx context.Context, id int64) (models.Credential, error)
	CreateCredential(ctx context.Context, id int64, dataURI string) (created bool, err error)
	ListWithoutCredential(ctx context.Context) ([]int64, error)
}

// Issuer mints at most one credential per attendee. The encoded payload is
// the attendee id in decimal and nothing else.
type Issuer struct {
	store Store
}

func NewIssuer(s Store) *Issuer {
	return &Issuer{store: s}
}

// RenderPNG renders the QR image for an attendee id.
func RenderPNG(id int64) ([]byte, error) {
	png, err := qrcode.Encode(Payload(id), qrcode.Medium, imageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: render qr for %d: %v", models.ErrIssuanceFailed, id, err)
	}
	return png, nil
}

// Payload is the string a credential encodes for an attendee.
func Payload(id int64) string {
	return strconv.FormatInt(id, 10)
}

// DecodeDataURI returns the PNG bytes behind a stored credential.
func DecodeDataURI(uri string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(uri, dataURIPrefix)
	if !ok {
		return nil, fmt.Errorf("not a png data uri")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Issue returns the attendee's credential, creating it on first call.
// Repeat calls return the stored credential unchanged with created=false; a
// losing writer in a concurrent race falls back to the row the winner
// persisted. Rendering failures leave no partial row.
func (i *Issuer) Issue(ctx context.Context, id int64) (models.Credential, bool, error) {
	if cred, err := i.store.GetCredential(ctx, id); err == nil {
		return cred, false, nil
	} else if err != models.ErrNotFound {
		return models.Credential{}, false, err
	}

	// Verify the attendee exists before rendering anything.
	if _, _, err := i.store.Get(ctx, id); err != nil {
		return models.Credential{}, false, err
	}

	png, err := RenderPNG(id)
	if err != nil {
		return models.Credential{}, false, err
	}
	dataURI := dataURIPrefix + base64.StdEncoding.EncodeToString(png)

	created, err := i.store.CreateCredential(ctx, id, dataURI)
	if err != nil {
		return models.Credential{}, false, fmt.Errorf("%w: %v", models.ErrIssuanceFailed, err)
	}
	if !created {
		// Lost a race; the persisted row is the source of truth.
		cred, err := i.store.GetCredential(ctx, id)
		return cred, false, err
	}

	log.Info().Int64("attendee_id", id).Msg("credential issued")
	return models.Credential{AttendeeID: id, DataURI: dataURI}, true, nil
}

// IssueAll issues credentials for every attendee that has none. One failed
// render never aborts the rest; failures are reported per id.
func (i *Issuer) IssueAll(ctx context.Context) (models.IssueSummary, error) {
	ids, err := i.store.ListWithoutCredential(ctx)
	if err != nil {
		return models.IssueSummary{}, err
	}

	summary := models.IssueSummary{Failures: map[int64]string{}}
	for _, id := range ids {
		_, created, err := i.Issue(ctx, id)
		if err != nil {
			log.Warn().Int64("attendee_id", id).Err(err).Msg("credential issuance failed")
			summary.Failures[id] = err.Error()
			continue
		}
		if created {
			summary.Issued++
		}
	}
	return summary, nil
}
