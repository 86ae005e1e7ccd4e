package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mandir-backend/models"
)

// Flag names one of the three validation flags.
type Flag string

const (
	FlagEntry   Flag = "entry"
	FlagFood    Flag = "food"
	FlagParking Flag = "parking"
)

// flagColumns whitelists the column each flag maps to. SetFlag refuses
// anything outside this map so flag names can never reach the SQL text.
var flagColumns = map[Flag]string{
	FlagEntry:   "entry_validated",
	FlagFood:    "food_collected",
	FlagParking: "parking_validated",
}

// AttendeeStore persists attendee records, their validation flags and their
// credentials. All writes go through the pool's native atomicity; the store
// holds no in-process locks.
type AttendeeStore struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *AttendeeStore {
	return &AttendeeStore{db: db}
}

// Create inserts the attendee and its all-false validation row in one
// transaction, so a failure never leaves an attendee without flags.
func (s *AttendeeStore) Create(ctx context.Context, rec models.Attendee) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO event_participation
		(email_address, first_name, last_name, mobile_number, number_of_tickets,
		 car_parking, torch_burn_ravan_effigy, samosa, dabeli, vada_idli_combo,
		 jalebi, car_registration_number, payable_total, payable_status, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	var id int64
	err = tx.QueryRow(ctx, insertQuery,
		rec.EmailAddress,
		rec.FirstName,
		rec.LastName,
		rec.MobileNumber,
		rec.NumberOfTickets,
		rec.CarParking,
		rec.TorchBurnRavanEffigy,
		rec.Samosa,
		rec.Dabeli,
		rec.VadaIdliCombo,
		rec.Jalebi,
		rec.CarRegistrationNumber,
		rec.PayableTotal,
		rec.PayableStatus,
		rec.RegisteredAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert attendee: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO validation_status (event_participation_id, entry_validated, food_collected, parking_validated)
		VALUES ($1, false, false, false)
	`, id)
	if err != nil {
		return 0, fmt.Errorf("insert validation status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit create: %w", err)
	}
	return id, nil
}

// Get returns the attendee and its validation flags.
func (s *AttendeeStore) Get(ctx context.Context, id int64) (models.Attendee, models.ValidationStatus, error) {
	query := `
		SELECT ep.id, ep.email_address, ep.first_name, ep.last_name, ep.mobile_number,
		       ep.number_of_tickets, ep.car_parking, ep.torch_burn_ravan_effigy,
		       ep.samosa, ep.dabeli, ep.vada_idli_combo, ep.jalebi,
		       ep.car_registration_number, ep.payable_total, ep.payable_status, ep.registered_at,
		       vs.entry_validated, vs.food_collected, vs.parking_validated
		FROM event_participation ep
		LEFT JOIN validation_status vs ON ep.id = vs.event_participation_id
		WHERE ep.id = $1
	`

	var rec models.Attendee
	var status models.ValidationStatus
	err := s.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.EmailAddress,
		&rec.FirstName,
		&rec.LastName,
		&rec.MobileNumber,
		&rec.NumberOfTickets,
		&rec.CarParking,
		&rec.TorchBurnRavanEffigy,
		&rec.Samosa,
		&rec.Dabeli,
		&rec.VadaIdliCombo,
		&rec.Jalebi,
		&rec.CarRegistrationNumber,
		&rec.PayableTotal,
		&rec.PayableStatus,
		&rec.RegisteredAt,
		&status.EntryValidated,
		&status.FoodCollected,
		&status.ParkingValidated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Attendee{}, models.ValidationStatus{}, models.ErrNotFound
		}
		return models.Attendee{}, models.ValidationStatus{}, fmt.Errorf("get attendee %d: %w", id, err)
	}
	status.AttendeeID = rec.ID
	return rec, status, nil
}

// ListAll returns every attendee by ascending id, joined with flags and
// credential metadata for the reporting view.
func (s *AttendeeStore) ListAll(ctx context.Context) ([]models.AttendeeListRow, error) {
	query := `
		SELECT ep.id, ep.email_address, ep.first_name, ep.last_name, ep.mobile_number,
		       ep.number_of_tickets, ep.car_parking, ep.torch_burn_ravan_effigy,
		       ep.samosa, ep.dabeli, ep.vada_idli_combo, ep.jalebi,
		       ep.car_registration_number, ep.payable_total, ep.payable_status, ep.registered_at,
		       COALESCE(vs.entry_validated, false), COALESCE(vs.food_collected, false), COALESCE(vs.parking_validated, false),
		       qc.qr_code_url, COALESCE(qc.qr_email_sent, false)
		FROM event_participation ep
		LEFT JOIN validation_status vs ON ep.id = vs.event_participation_id
		LEFT JOIN qr_codes qc ON ep.id = qc.event_participation_id
		ORDER BY ep.id ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var out []models.AttendeeListRow
	for rows.Next() {
		var row models.AttendeeListRow
		err := rows.Scan(
			&row.ID,
			&row.EmailAddress,
			&row.FirstName,
			&row.LastName,
			&row.MobileNumber,
			&row.NumberOfTickets,
			&row.CarParking,
			&row.TorchBurnRavanEffigy,
			&row.Samosa,
			&row.Dabeli,
			&row.VadaIdliCombo,
			&row.Jalebi,
			&row.CarRegistrationNumber,
			&row.PayableTotal,
			&row.PayableStatus,
			&row.RegisteredAt,
			&row.EntryValidated,
			&row.FoodCollected,
			&row.ParkingValidated,
			&row.QRCodeURL,
			&row.QREmailSent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendee row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SetFlag sets one validation flag to true. The update is a single
// conditional statement so concurrent scans of the same credential race down
// to one writer; the loser observes already=true. Returns ErrNotFound when
// no validation row exists for the id.
func (s *AttendeeStore) SetFlag(ctx context.Context, id int64, flag Flag) (already bool, err error) {
	col, ok := flagColumns[flag]
	if !ok {
		return false, fmt.Errorf("unknown flag %q", flag)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE validation_status SET `+col+` = true WHERE event_participation_id = $1 AND NOT `+col,
		id)
	if err != nil {
		return false, fmt.Errorf("set %s for %d: %w", col, id, err)
	}
	if tag.RowsAffected() == 1 {
		return false, nil
	}

	// No row updated: either the flag was already true or the id is absent.
	var exists bool
	err = s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM validation_status WHERE event_participation_id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendee %d: %w", id, err)
	}
	if !exists {
		return false, models.ErrNotFound
	}
	return true, nil
}

// CreateCredential inserts the credential row for an attendee. Returns
// created=false when a row already exists (repeated or concurrent issuance).
func (s *AttendeeStore) CreateCredential(ctx context.Context, id int64, dataURI string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO qr_codes (event_participation_id, qr_code_url, qr_email_sent)
		VALUES ($1, $2, false)
		ON CONFLICT (event_participation_id) DO NOTHING
	`, id, dataURI)
	if err != nil {
		return false, fmt.Errorf("insert credential for %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetCredential returns the credential row for an attendee.
func (s *AttendeeStore) GetCredential(ctx context.Context, id int64) (models.Credential, error) {
	var cred models.Credential
	err := s.db.QueryRow(ctx, `
		SELECT event_participation_id, qr_code_url, qr_email_sent
		FROM qr_codes
		WHERE event_participation_id = $1
	`, id).Scan(&cred.AttendeeID, &cred.DataURI, &cred.Sent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Credential{}, models.ErrNotFound
		}
		return models.Credential{}, fmt.Errorf("get credential for %d: %w", id, err)
	}
	return cred, nil
}

// MarkCredentialSent records confirmed delivery. ErrNotFound when the
// attendee has no credential row yet.
func (s *AttendeeStore) MarkCredentialSent(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE qr_codes SET qr_email_sent = true WHERE event_participation_id = $1", id)
	if err != nil {
		return fmt.Errorf("mark credential sent for %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListWithoutCredential returns ids of attendees with no credential row,
// ascending. Input for batch issuance.
func (s *AttendeeStore) ListWithoutCredential(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, `
		SELECT ep.id
		FROM event_participation ep
		LEFT JOIN qr_codes qc ON ep.id = qc.event_participation_id
		WHERE qc.event_participation_id IS NULL
		ORDER BY ep.id ASC
	`)
}

// ListUnsent returns ids of attendees whose credential is missing or not yet
// emailed, ascending. Input for batch dispatch; already-sent attendees never
// appear here.
func (s *AttendeeStore) ListUnsent(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, `
		SELECT ep.id
		FROM event_participation ep
		LEFT JOIN qr_codes qc ON ep.id = qc.event_participation_id
		WHERE qc.event_participation_id IS NULL OR NOT qc.qr_email_sent
		ORDER BY ep.id ASC
	`)
}

func (s *AttendeeStore) listIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ping reports whether the database is reachable.
func (s *AttendeeStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
