package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lfic/registration-service/internal/domain"
)

// fakeSheets captures calls and scripts the read/append behavior.
type fakeSheets struct {
	existing  [][]string
	getErr    error
	appendErr error

	getRanges    []string
	appendRanges []string
	appendedRows [][]string
}

func (f *fakeSheets) GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]string, error) {
	f.getRanges = append(f.getRanges, readRange)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.existing, nil
}

func (f *fakeSheets) AppendRow(ctx context.Context, spreadsheetID, appendRange string, row []string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appendRanges = append(f.appendRanges, appendRange)
	f.appendedRows = append(f.appendedRows, row)
	return nil
}

func newTestRepository(client *fakeSheets) *SheetsRepository {
	r := NewSheetsRepository(client, "sheet-id", "Student Registrations")
	r.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return r
}

func fullRecord() domain.StoredRegistration {
	return domain.StoredRegistration{
		Surname:            "Okafor",
		MiddleName:         "Chinedu",
		FirstName:          "Emeka",
		DateOfBirth:        "2001-04-12",
		Gender:             "male",
		Email:              "emeka@example.com",
		Phone:              "+2348031234567",
		Address:            "12 Marina Road, Lagos",
		ComputingKnowledge: "yes",
		HasComputer:        "no",
		UsingPhone:         "yes",
		PaymentReference:   "1700000000000",
		TransactionID:      "1234567",
		PaymentStatus:      "completed",
		PaymentDate:        "2024-03-01T12:00:00Z",
	}
}

func TestAppendRegistration_CreatesHeaderOnEmptySheet(t *testing.T) {
	client := &fakeSheets{}
	repo := newTestRepository(client)

	if err := repo.AppendRegistration(context.Background(), fullRecord()); err != nil {
		t.Fatalf("AppendRegistration returned error: %v", err)
	}

	if len(client.appendedRows) != 2 {
		t.Fatalf("expected header + data row, got %d appends", len(client.appendedRows))
	}
	header := client.appendedRows[0]
	if len(header) != len(SheetHeader) {
		t.Fatalf("expected %d header columns, got %d", len(SheetHeader), len(header))
	}
	if header[0] != "Timestamp" || header[15] != "Payment Date" {
		t.Fatalf("unexpected header row: %v", header)
	}
	if client.appendRanges[0] != "Student Registrations!A1:P1" {
		t.Fatalf("unexpected header range: %q", client.appendRanges[0])
	}
	if client.appendRanges[1] != "Student Registrations!A:P" {
		t.Fatalf("unexpected append range: %q", client.appendRanges[1])
	}
}

func TestAppendRegistration_SkipsHeaderWhenPresent(t *testing.T) {
	client := &fakeSheets{existing: [][]string{SheetHeader}}
	repo := newTestRepository(client)

	if err := repo.AppendRegistration(context.Background(), fullRecord()); err != nil {
		t.Fatalf("AppendRegistration returned error: %v", err)
	}
	if len(client.appendedRows) != 1 {
		t.Fatalf("expected only the data row, got %d appends", len(client.appendedRows))
	}
}

func TestAppendRegistration_ChecksHeaderOnlyOnce(t *testing.T) {
	client := &fakeSheets{existing: [][]string{SheetHeader}}
	repo := newTestRepository(client)

	for i := 0; i < 3; i++ {
		if err := repo.AppendRegistration(context.Background(), fullRecord()); err != nil {
			t.Fatalf("append %d returned error: %v", i, err)
		}
	}
	if len(client.getRanges) != 1 {
		t.Fatalf("expected one header check, got %d", len(client.getRanges))
	}
	if len(client.appendedRows) != 3 {
		t.Fatalf("expected three data rows, got %d", len(client.appendedRows))
	}
}

func TestAppendRegistration_RowMatchesDeclaredColumnOrder(t *testing.T) {
	client := &fakeSheets{existing: [][]string{SheetHeader}}
	repo := newTestRepository(client)

	if err := repo.AppendRegistration(context.Background(), fullRecord()); err != nil {
		t.Fatalf("AppendRegistration returned error: %v", err)
	}

	row := client.appendedRows[0]
	want := []string{
		"2024-03-01T12:00:00Z",
		"Okafor",
		"Chinedu",
		"Emeka",
		"2001-04-12",
		"male",
		"emeka@example.com",
		"+2348031234567",
		"12 Marina Road, Lagos",
		"yes",
		"no",
		"yes",
		"1700000000000",
		"1234567",
		"completed",
		"2024-03-01T12:00:00Z",
	}
	if len(row) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(row))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("cell %d (%s): expected %q, got %q", i, SheetHeader[i], want[i], row[i])
		}
	}
}

func TestAppendRegistration_MissingFieldsPersistAsEmptyStrings(t *testing.T) {
	client := &fakeSheets{existing: [][]string{SheetHeader}}
	repo := newTestRepository(client)

	if err := repo.AppendRegistration(context.Background(), domain.StoredRegistration{Surname: "Okafor"}); err != nil {
		t.Fatalf("AppendRegistration returned error: %v", err)
	}

	row := client.appendedRows[0]
	if len(row) != len(SheetHeader) {
		t.Fatalf("expected full row width %d, got %d", len(SheetHeader), len(row))
	}
	if row[1] != "Okafor" {
		t.Fatalf("expected the surname cell to be set, got %q", row[1])
	}
	for i := 2; i < len(row); i++ {
		if row[i] != "" {
			t.Fatalf("expected cell %d (%s) to be empty, got %q", i, SheetHeader[i], row[i])
		}
	}
}

func TestAppendRegistration_FailuresSurfaceAsPersistenceUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeSheets
	}{
		{"header read fails", &fakeSheets{getErr: errors.New("sheets api error: PERMISSION_DENIED")}},
		{"append fails", &fakeSheets{existing: [][]string{SheetHeader}, appendErr: errors.New("sheets api error: UNAVAILABLE")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepository(tt.client)
			err := repo.AppendRegistration(context.Background(), fullRecord())
			if !errors.Is(err, ErrPersistenceUnavailable) {
				t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
			}
		})
	}
}

func TestUnavailableRepository_AlwaysFails(t *testing.T) {
	err := UnavailableRepository{}.AppendRegistration(context.Background(), fullRecord())
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
}
