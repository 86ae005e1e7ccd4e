package checkin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"mandir-backend/models"
	"mandir-backend/store"
)

// Store is the slice of the attendee store the engine needs.
type Store interface {
	Get(ctx context.Context, id int64) (models.Attendee, models.ValidationStatus, error)
	SetFlag(ctx context.Context, id int64, flag store.Flag) (already bool, err error)
}

// Engine resolves scanned credential payloads and applies the three
// validation transitions. Each transition is idempotent; atomicity lives in
// the store's conditional update, never here.
type Engine struct {
	store Store
}

func NewEngine(s Store) *Engine {
	return &Engine{store: s}
}

// ParsePayload extracts the attendee id from a scanned payload. The
// credential carries nothing but the decimal id.
func ParsePayload(payload string) (int64, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return 0, models.ErrInvalidPayload
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidPayload, payload)
	}
	return id, nil
}

// Resolve looks up the attendee behind a scanned payload and derives the
// per-item food counts for the gate display.
func (e *Engine) Resolve(ctx context.Context, payload string) (*models.ScanResult, error) {
	id, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}

	rec, status, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.ScanResult{
		Attendee:           rec,
		Status:             status,
		SamosaCount:        models.FoodQuantity(rec.Samosa),
		DabeliCount:        models.FoodQuantity(rec.Dabeli),
		VadaIdliComboCount: models.FoodQuantity(rec.VadaIdliCombo),
		JalebiCount:        models.FoodQuantity(rec.Jalebi),
	}, nil
}

// MarkEntry validates entry for the attendee. A repeat call succeeds with
// already=true.
func (e *Engine) MarkEntry(ctx context.Context, id int64) (already bool, err error) {
	return e.mark(ctx, id, store.FlagEntry)
}

// MarkFoodCollected records food collection for the attendee.
func (e *Engine) MarkFoodCollected(ctx context.Context, id int64) (already bool, err error) {
	return e.mark(ctx, id, store.FlagFood)
}

// MarkParkingValidated validates parking for the attendee.
func (e *Engine) MarkParkingValidated(ctx context.Context, id int64) (already bool, err error) {
	return e.mark(ctx, id, store.FlagParking)
}

func (e *Engine) mark(ctx context.Context, id int64, flag store.Flag) (bool, error) {
	already, err := e.store.SetFlag(ctx, id, flag)
	if err != nil {
		return false, err
	}
	log.Info().Int64("attendee_id", id).Str("flag", string(flag)).Bool("already", already).
		Msg("validation flag set")
	return already, nil
}
