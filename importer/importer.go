package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"mandir-backend/models"
)

// Column headers as they appear in the registration sheet export.
const (
	colTimestamp = "Timestamp"
	colEmail     = "Email address"
	colFirstName = "First Name"
	colLastName  = "Last Name"
	colMobile    = "Mobile Number"
	colTickets   = "Number of Tickets"
	colParking   = "Car Parking"
	colEffigy    = "Torch/Burn Ravan Effigy"
	colSamosa    = "Samosa"
	colDabeli    = "Dabeli"
	colVadaIdli  = "Vada-Idli Combo"
	colJalebi    = "Jalebi"
	colCarReg    = "Car Registration Number"
	colTotal     = "Payable Total"
	colStatus    = "Payable Status"
)

const timestampLayout = "02/01/2006 15:04:05"

// Store is the slice of the attendee store the importer needs.
type Store interface {
	Create(ctx context.Context, rec models.Attendee) (int64, error)
}

// Importer turns a registration sheet export into attendee records. Rows are
// attempted independently; a malformed row is reported, not batch-fatal.
type Importer struct {
	store Store
}

func New(s Store) *Importer {
	return &Importer{store: s}
}

// ImportCSV reads the export row by row and creates one attendee per row.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (models.ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return models.ImportSummary{}, fmt.Errorf("read csv header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[name] = i
	}

	summary := models.ImportSummary{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			summary.Failures = append(summary.Failures, models.RowFailure{Line: line, Err: err.Error()})
			continue
		}

		rec := rowToAttendee(record, index)
		id, err := im.store.Create(ctx, rec)
		if err != nil {
			log.Warn().Int("line", line).Err(err).Msg("import row failed")
			summary.Failures = append(summary.Failures, models.RowFailure{Line: line, Err: err.Error()})
			continue
		}
		log.Debug().Int("line", line).Int64("attendee_id", id).Msg("imported attendee")
		summary.Imported++
	}
	return summary, nil
}

func rowToAttendee(record []string, index map[string]int) models.Attendee {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	optional := func(name string) *string {
		v := field(name)
		if v == "" {
			return nil
		}
		return &v
	}

	rec := models.Attendee{
		EmailAddress:          field(colEmail),
		FirstName:             field(colFirstName),
		LastName:              field(colLastName),
		MobileNumber:          field(colMobile),
		NumberOfTickets:       field(colTickets),
		CarParking:            field(colParking),
		TorchBurnRavanEffigy:  field(colEffigy),
		Samosa:                optional(colSamosa),
		Dabeli:                optional(colDabeli),
		VadaIdliCombo:         optional(colVadaIdli),
		Jalebi:                optional(colJalebi),
		CarRegistrationNumber: field(colCarReg),
		PayableTotal:          field(colTotal),
		PayableStatus:         field(colStatus),
	}

	// Timestamps come in as DD/MM/YYYY; anything unparseable imports as null
	// rather than rejecting the row.
	if ts, err := time.Parse(timestampLayout, field(colTimestamp)); err == nil {
		rec.RegisteredAt = &ts
	}
	return rec
}
