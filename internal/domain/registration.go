/**
 * @description
 * This file defines the registration-side domain models for the registration-service.
 * These structs represent the raw form input, the validated registration record, and
 * the flattened row that ultimately gets persisted to the class spreadsheet.
 *
 * @notes
 * - Using distinct types for raw input, validated records, and the persisted row
 *   ensures clear separation of concerns: raw input may be arbitrarily incomplete,
 *   a RegistrationRecord is always valid, and a StoredRegistration is always
 *   full-width (missing values normalized to empty strings, never omitted).
 */

package domain

// RawRegistration is the DTO for the incoming registration form submission.
// Field names mirror the browser form; validation tags drive the collector.
type RawRegistration struct {
	Surname             string `json:"surname" validate:"required"`
	MiddleName          string `json:"middlename"`
	FirstName           string `json:"firstname" validate:"required"`
	DateOfBirth         string `json:"dob" validate:"required"`
	Gender              string `json:"gender" validate:"required,oneof=male female other"`
	Email               string `json:"email" validate:"required,regemail"`
	Phone               string `json:"phone" validate:"required,regphone"`
	Address             string `json:"address" validate:"required"`
	ComputingKnowledge  string `json:"computingKnowledge" validate:"required,oneof=yes no"`
	HasComputer         string `json:"hasComputer" validate:"required,oneof=yes no"`
	UsingPhone          string `json:"usingPhone" validate:"required,oneof=yes no"`
	AttestationAccepted bool   `json:"attestationAccepted"`
}

// RegistrationRecord is a validated, normalized registration. Records of this type
// only ever leave the collector in a valid state: every required field is non-empty,
// email and phone match their patterns, and the attestation has been accepted.
type RegistrationRecord struct {
	Surname             string `json:"surname"`
	MiddleName          string `json:"middlename"`
	FirstName           string `json:"firstname"`
	DateOfBirth         string `json:"dob"`
	Gender              string `json:"gender"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	Address             string `json:"address"`
	ComputingKnowledge  string `json:"computingKnowledge"`
	HasComputer         string `json:"hasComputer"`
	UsingPhone          string `json:"usingPhone"`
	AttestationAccepted bool   `json:"attestationAccepted"`
	SubmissionTimestamp string `json:"submissionDate"`
}

// FullName joins first name and surname the way the payment gateway expects a
// customer display name.
func (r RegistrationRecord) FullName() string {
	switch {
	case r.FirstName == "":
		return r.Surname
	case r.Surname == "":
		return r.FirstName
	default:
		return r.FirstName + " " + r.Surname
	}
}

// FieldErrors maps a form field name to a human-readable validation message.
// The consent violation lives under the reserved AttestationErrorKey, distinct
// from any form field.
type FieldErrors map[string]string

// AttestationErrorKey is the reserved FieldErrors key for a missing consent flag.
const AttestationErrorKey = "attestation"

// StoredRegistration is the flat record appended to the spreadsheet: the
// registration fields plus the payment outcome. JSON keys match the payload the
// store endpoint has always accepted; any subset may be absent and defaults to
// an empty string when persisted.
type StoredRegistration struct {
	Surname            string `json:"surname"`
	MiddleName         string `json:"middlename"`
	FirstName          string `json:"firstname"`
	DateOfBirth        string `json:"dob"`
	Gender             string `json:"gender"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Address            string `json:"address"`
	ComputingKnowledge string `json:"computingKnowledge"`
	HasComputer        string `json:"hasComputer"`
	UsingPhone         string `json:"usingPhone"`
	PaymentReference   string `json:"paymentReference"`
	TransactionID      string `json:"transactionId"`
	PaymentStatus      string `json:"paymentStatus"`
	PaymentDate        string `json:"paymentDate"`
}
