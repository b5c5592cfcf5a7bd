/**
 * @description
 * This file contains the spreadsheet-backed implementation of the Repository
 * interface. Completed registrations are appended as rows to a Google Sheet; on
 * first use against a given sheet the header row is created if it does not exist.
 *
 * Key behaviors:
 * - The header check-then-create is idempotent within this process (guarded by a
 *   mutex) but not atomic across concurrent first-use from multiple instances.
 *   Header creation is a rare one-time event and is operationally monitored.
 * - Every row has the full declared column width; absent fields are written as
 *   empty strings, never omitted, so the column count stays fixed.
 * - Any failure from the underlying store is logged here and surfaced to the
 *   caller only as ErrPersistenceUnavailable.
 *
 * @dependencies
 * - pkg/sheetsclient: The authenticated Google Sheets REST client.
 * - internal/domain: For the StoredRegistration model.
 */

package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lfic/registration-service/internal/domain"
)

// SheetHeader is the declared column order of the registrations sheet. Row
// construction and the header row must always agree with this slice.
var SheetHeader = []string{
	"Timestamp",
	"Surname",
	"Middle Name",
	"First Name",
	"Date of Birth",
	"Gender",
	"Email",
	"Phone",
	"Address",
	"Computing Knowledge",
	"Has Computer",
	"Using Phone",
	"Payment Reference",
	"Transaction ID",
	"Payment Status",
	"Payment Date",
}

// SheetsAPI is the subset of the sheets client the repository needs. Defined
// here so tests can substitute a fake without a live spreadsheet.
type SheetsAPI interface {
	GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]string, error)
	AppendRow(ctx context.Context, spreadsheetID, appendRange string, row []string) error
}

// SheetsRepository appends completed registrations to a Google Sheet.
type SheetsRepository struct {
	client        SheetsAPI
	spreadsheetID string
	sheetTitle    string
	now           func() time.Time

	mu          sync.Mutex
	headerReady bool
}

// NewSheetsRepository creates a repository writing to the given spreadsheet.
func NewSheetsRepository(client SheetsAPI, spreadsheetID, sheetTitle string) *SheetsRepository {
	return &SheetsRepository{
		client:        client,
		spreadsheetID: spreadsheetID,
		sheetTitle:    sheetTitle,
		now:           time.Now,
	}
}

// AppendRegistration ensures the header row exists, then appends exactly one
// full-width row for the record. It never updates or deduplicates existing rows.
func (r *SheetsRepository) AppendRegistration(ctx context.Context, record domain.StoredRegistration) error {
	if err := r.ensureHeader(ctx); err != nil {
		log.Printf("level=error component=sheets_repository msg=\"header ensure failed\" sheet=%s err=%v", r.sheetTitle, err)
		return ErrPersistenceUnavailable
	}

	row := r.buildRow(record)
	if err := r.client.AppendRow(ctx, r.spreadsheetID, r.appendRange(), row); err != nil {
		log.Printf("level=error component=sheets_repository msg=\"row append failed\" sheet=%s err=%v", r.sheetTitle, err)
		return ErrPersistenceUnavailable
	}

	log.Printf("level=info component=sheets_repository msg=\"registration appended\" sheet=%s payment_reference=%s", r.sheetTitle, record.PaymentReference)
	return nil
}

// ensureHeader creates the header row on first use if the sheet is empty. The
// check-then-create is serialized within this process; a concurrent first write
// from another instance can still race, which is accepted.
func (r *SheetsRepository) ensureHeader(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.headerReady {
		return nil
	}

	values, err := r.client.GetValues(ctx, r.spreadsheetID, r.headerRange())
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}

	if len(values) == 0 || len(values[0]) == 0 {
		if err := r.client.AppendRow(ctx, r.spreadsheetID, r.headerRange(), SheetHeader); err != nil {
			return fmt.Errorf("failed to create header row: %w", err)
		}
		log.Printf("level=info component=sheets_repository msg=\"header row created\" sheet=%s columns=%d", r.sheetTitle, len(SheetHeader))
	}

	r.headerReady = true
	return nil
}

// buildRow flattens a record into the declared column order. The first column is
// the server-assigned timestamp; every other value falls back to the empty
// string so the row width always matches the header.
func (r *SheetsRepository) buildRow(record domain.StoredRegistration) []string {
	return []string{
		r.now().UTC().Format(time.RFC3339),
		record.Surname,
		record.MiddleName,
		record.FirstName,
		record.DateOfBirth,
		record.Gender,
		record.Email,
		record.Phone,
		record.Address,
		record.ComputingKnowledge,
		record.HasComputer,
		record.UsingPhone,
		record.PaymentReference,
		record.TransactionID,
		record.PaymentStatus,
		record.PaymentDate,
	}
}

func (r *SheetsRepository) headerRange() string {
	return fmt.Sprintf("%s!A1:P1", r.sheetTitle)
}

func (r *SheetsRepository) appendRange() string {
	return fmt.Sprintf("%s!A:P", r.sheetTitle)
}
