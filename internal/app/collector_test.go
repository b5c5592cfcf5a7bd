package app

import (
	"testing"
	"time"

	"github.com/lfic/registration-service/internal/domain"
)

func validSubmission() domain.RawRegistration {
	return domain.RawRegistration{
		Surname:             "Okafor",
		MiddleName:          "Chinedu",
		FirstName:           "Emeka",
		DateOfBirth:         "2001-04-12",
		Gender:              "male",
		Email:               "emeka.okafor@example.com",
		Phone:               "+2348031234567",
		Address:             "12 Marina Road, Lagos",
		ComputingKnowledge:  "yes",
		HasComputer:         "no",
		UsingPhone:          "yes",
		AttestationAccepted: true,
	}
}

func TestCollect_ValidSubmissionProducesNormalizedRecord(t *testing.T) {
	c := NewCollector()
	c.now = func() time.Time {
		return time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	}

	raw := validSubmission()
	raw.Surname = "  Okafor  "
	raw.Email = " emeka.okafor@example.com "
	raw.Phone = " +234 803 123 4567 "

	record, fieldErrs := c.Collect(raw)
	if fieldErrs != nil {
		t.Fatalf("expected no field errors, got %v", fieldErrs)
	}
	if record == nil {
		t.Fatal("expected a record, got nil")
	}
	if record.Surname != "Okafor" {
		t.Fatalf("expected trimmed surname, got %q", record.Surname)
	}
	if record.Email != "emeka.okafor@example.com" {
		t.Fatalf("expected trimmed email, got %q", record.Email)
	}
	if record.Phone != "+2348031234567" {
		t.Fatalf("expected whitespace-stripped phone, got %q", record.Phone)
	}
	if !record.AttestationAccepted {
		t.Fatal("expected attestation to be recorded as accepted")
	}
	if record.SubmissionTimestamp != "2024-03-01T10:30:00Z" {
		t.Fatalf("expected RFC3339 submission timestamp, got %q", record.SubmissionTimestamp)
	}
}

func TestCollect_ValidatesAfterNormalization(t *testing.T) {
	c := NewCollector()

	// Padding around an otherwise valid value must not fail the rules the
	// stored value would pass.
	raw := validSubmission()
	raw.Email = "  emeka.okafor@example.com  "
	raw.Phone = "\t+234 803 123 4567\n"
	if _, fieldErrs := c.Collect(raw); fieldErrs != nil {
		t.Fatalf("expected padded values to validate, got %v", fieldErrs)
	}

	// A whitespace-only required field is still missing.
	raw = validSubmission()
	raw.Surname = "   "
	_, fieldErrs := c.Collect(raw)
	if fieldErrs["surname"] != "Surname is required" {
		t.Fatalf("expected a whitespace-only surname to be rejected, got %v", fieldErrs)
	}
}

func TestCollect_AccumulatesAllViolations(t *testing.T) {
	c := NewCollector()

	raw := validSubmission()
	raw.Surname = ""
	raw.Email = "not-an-email"
	raw.Phone = "123"
	raw.AttestationAccepted = false

	record, fieldErrs := c.Collect(raw)
	if record != nil {
		t.Fatal("expected no record on a failing submission")
	}
	if len(fieldErrs) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(fieldErrs), fieldErrs)
	}
	if fieldErrs["surname"] != "Surname is required" {
		t.Fatalf("unexpected surname message: %q", fieldErrs["surname"])
	}
	if fieldErrs["email"] != "Please enter a valid email address" {
		t.Fatalf("unexpected email message: %q", fieldErrs["email"])
	}
	if fieldErrs["phone"] != "Please enter a valid phone number" {
		t.Fatalf("unexpected phone message: %q", fieldErrs["phone"])
	}
	if fieldErrs[domain.AttestationErrorKey] != "You must agree to the attestation" {
		t.Fatalf("unexpected attestation message: %q", fieldErrs[domain.AttestationErrorKey])
	}
}

func TestCollect_AttestationAloneBlocksTheSubmission(t *testing.T) {
	c := NewCollector()

	raw := validSubmission()
	raw.AttestationAccepted = false

	record, fieldErrs := c.Collect(raw)
	if record != nil {
		t.Fatal("expected no record when the attestation is missing")
	}
	if len(fieldErrs) != 1 {
		t.Fatalf("expected exactly one violation, got %v", fieldErrs)
	}
	if _, ok := fieldErrs[domain.AttestationErrorKey]; !ok {
		t.Fatalf("expected the violation under %q, got %v", domain.AttestationErrorKey, fieldErrs)
	}
}

func TestCollect_EmailShapes(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"a@b.co", true},
		{"student+class@school.edu.ng", true},
		{"no-at-sign.example.com", false},
		{"no-dot@example", false},
		{"spaces in@local.part", false},
		{"", false},
	}

	c := NewCollector()
	for _, tt := range tests {
		raw := validSubmission()
		raw.Email = tt.email
		_, fieldErrs := c.Collect(raw)
		_, failed := fieldErrs["email"]
		if failed == tt.valid {
			t.Errorf("email %q: expected valid=%t, got field errors %v", tt.email, tt.valid, fieldErrs)
		}
	}
}

func TestCollect_PhoneShapes(t *testing.T) {
	tests := []struct {
		phone string
		valid bool
	}{
		{"08031234567", true},
		{"+2348031234567", true},
		{"+234 803 123 4567", true},
		{"123456789", false},
		{"12345678901234567", false},
		{"0803-123-4567", false},
		{"", false},
	}

	c := NewCollector()
	for _, tt := range tests {
		raw := validSubmission()
		raw.Phone = tt.phone
		_, fieldErrs := c.Collect(raw)
		_, failed := fieldErrs["phone"]
		if failed == tt.valid {
			t.Errorf("phone %q: expected valid=%t, got field errors %v", tt.phone, tt.valid, fieldErrs)
		}
	}
}

func TestCollect_EnumeratedFieldsRejectUnknownValues(t *testing.T) {
	c := NewCollector()

	raw := validSubmission()
	raw.Gender = "unknown"
	raw.ComputingKnowledge = "maybe"

	_, fieldErrs := c.Collect(raw)
	if fieldErrs["gender"] != "Gender must be male, female or other" {
		t.Fatalf("unexpected gender message: %q", fieldErrs["gender"])
	}
	if fieldErrs["computingKnowledge"] != "Computing knowledge must be yes or no" {
		t.Fatalf("unexpected computingKnowledge message: %q", fieldErrs["computingKnowledge"])
	}
}

func TestCollect_MiddleNameIsOptional(t *testing.T) {
	c := NewCollector()

	raw := validSubmission()
	raw.MiddleName = ""

	record, fieldErrs := c.Collect(raw)
	if fieldErrs != nil {
		t.Fatalf("expected no field errors, got %v", fieldErrs)
	}
	if record.MiddleName != "" {
		t.Fatalf("expected empty middle name, got %q", record.MiddleName)
	}
}
