package models

import (
	"time"
)

// Attendee represents one imported registration row (matches the
// event_participation table). All order fields are opaque pass-through
// strings from the spreadsheet export; only the food selections are ever
// interpreted (see FoodQuantity).
type Attendee struct {
	ID                    int64      `json:"id" db:"id"`
	EmailAddress          string     `json:"email_address" db:"email_address"`
	FirstName             string     `json:"first_name" db:"first_name"`
	LastName              string     `json:"last_name" db:"last_name"`
	MobileNumber          string     `json:"mobile_number" db:"mobile_number"`
	NumberOfTickets       string     `json:"number_of_tickets" db:"number_of_tickets"`
	CarParking            string     `json:"car_parking" db:"car_parking"`
	TorchBurnRavanEffigy  string     `json:"torch_burn_ravan_effigy" db:"torch_burn_ravan_effigy"`
	Samosa                *string    `json:"samosa" db:"samosa"`
	Dabeli                *string    `json:"dabeli" db:"dabeli"`
	VadaIdliCombo         *string    `json:"vada_idli_combo" db:"vada_idli_combo"`
	Jalebi                *string    `json:"jalebi" db:"jalebi"`
	CarRegistrationNumber string     `json:"car_registration_number" db:"car_registration_number"`
	PayableTotal          string     `json:"payable_total" db:"payable_total"`
	PayableStatus         string     `json:"payable_status" db:"payable_status"`
	RegisteredAt          *time.Time `json:"registered_at,omitempty" db:"registered_at"`
}

// ValidationStatus holds the three gate flags for one attendee. Each flag
// only ever moves false -> true.
type ValidationStatus struct {
	AttendeeID       int64 `json:"attendee_id" db:"event_participation_id"`
	EntryValidated   bool  `json:"entry_validated" db:"entry_validated"`
	FoodCollected    bool  `json:"food_collected" db:"food_collected"`
	ParkingValidated bool  `json:"parking_validated" db:"parking_validated"`
}

// Credential is the QR code row for one attendee. DataURI is the rendered
// PNG as a base64 data URI; the encoded payload is the attendee id in
// decimal.
type Credential struct {
	AttendeeID int64  `json:"attendee_id" db:"event_participation_id"`
	DataURI    string `json:"qr_code_url" db:"qr_code_url"`
	Sent       bool   `json:"qr_email_sent" db:"qr_email_sent"`
}

// AttendeeListRow is one row of the reporting view: the attendee joined
// with its flags and credential metadata.
type AttendeeListRow struct {
	Attendee
	EntryValidated   bool    `json:"entry_validated"`
	FoodCollected    bool    `json:"food_collected"`
	ParkingValidated bool    `json:"parking_validated"`
	QRCodeURL        *string `json:"qr_code_url"`
	QREmailSent      bool    `json:"qr_email_sent"`
}

// ScanResult is what a gate scan resolves to: the record, its flags and the
// derived per-item food counts. The counts are presentation-only and never
// persisted.
type ScanResult struct {
	Attendee Attendee         `json:"attendee"`
	Status   ValidationStatus `json:"status"`

	SamosaCount        int `json:"samosa_count"`
	DabeliCount        int `json:"dabeli_count"`
	VadaIdliComboCount int `json:"vada_idli_combo_count"`
	JalebiCount        int `json:"jalebi_count"`
}

// IssueSummary reports a batch credential issuance.
type IssueSummary struct {
	Issued   int              `json:"issued"`
	Failures map[int64]string `json:"failures,omitempty"`
}

// SendSummary reports a batch email dispatch.
type SendSummary struct {
	Sent     int              `json:"sent"`
	Failures map[int64]string `json:"failures,omitempty"`
}

// RowFailure records one rejected row of a bulk import.
type RowFailure struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// ImportSummary reports a bulk import.
type ImportSummary struct {
	Imported int          `json:"imported"`
	Failures []RowFailure `json:"failures,omitempty"`
}
