/**
 * @description
 * This file contains the registration collector: it validates the raw form
 * submission against the registration rules and, when valid, produces a
 * normalized RegistrationRecord stamped with the submission time.
 *
 * Key behaviors:
 * - Violations are accumulated: every failing field gets an entry in the
 *   returned FieldErrors, so the caller can show all problems at once.
 * - The consent violation is reported under a reserved key, distinct from the
 *   form fields.
 * - The collector has no side effects; it never touches the network.
 *
 * @dependencies
 * - github.com/go-playground/validator/v10: For struct validation with the
 *   custom email/phone tag validators.
 * - internal/domain: For the raw input and record models.
 */

package app

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lfic/registration-service/internal/domain"
)

var (
	// The registration form accepts any nonspace@nonspace.nonspace shape; this
	// is deliberately looser than RFC-grade email validation.
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	// Optional leading +, then 10 to 15 digits, checked after whitespace is
	// stripped.
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

// EmailValidator validates the simple email shape used by the registration form.
var EmailValidator = func(fl validator.FieldLevel) bool {
	return emailPattern.MatchString(fl.Field().String())
}

// PhoneValidator validates phone numbers after stripping whitespace.
var PhoneValidator = func(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(stripWhitespace(fl.Field().String()))
}

// fieldMessages maps "field.tag" keys to the messages shown inline on the form.
var fieldMessages = map[string]string{
	"surname.required":            "Surname is required",
	"firstname.required":          "First name is required",
	"dob.required":                "Date of birth is required",
	"gender.required":             "Gender is required",
	"gender.oneof":                "Gender must be male, female or other",
	"email.required":              "Email is required",
	"email.regemail":              "Please enter a valid email address",
	"phone.required":              "Phone number is required",
	"phone.regphone":              "Please enter a valid phone number",
	"address.required":            "Address is required",
	"computingKnowledge.required": "Computing knowledge is required",
	"computingKnowledge.oneof":    "Computing knowledge must be yes or no",
	"hasComputer.required":        "Computer availability is required",
	"hasComputer.oneof":           "Computer availability must be yes or no",
	"usingPhone.required":         "Phone usage is required",
	"usingPhone.oneof":            "Phone usage must be yes or no",
}

const attestationMessage = "You must agree to the attestation"

// Collector validates raw registration submissions.
type Collector struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewCollector builds a collector with the registration rules registered.
func NewCollector() *Collector {
	v := validator.New()
	_ = v.RegisterValidation("regemail", EmailValidator)
	_ = v.RegisterValidation("regphone", PhoneValidator)

	// Report violations under the form field names, not the Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Collector{validate: v, now: time.Now}
}

// Collect validates the raw submission. On any violation it returns the full
// FieldErrors mapping and a nil record; on success it returns the normalized
// record with the submission timestamp stamped.
//
// Normalization happens once, before validation, so the values the rules see
// are exactly the values that end up on the record: a padded but otherwise
// valid email passes, and a whitespace-only required field is still missing.
func (c *Collector) Collect(raw domain.RawRegistration) (*domain.RegistrationRecord, domain.FieldErrors) {
	raw = normalizeSubmission(raw)
	fieldErrs := domain.FieldErrors{}

	if err := c.validate.Struct(raw); err != nil {
		var violations validator.ValidationErrors
		if errors.As(err, &violations) {
			for _, violation := range violations {
				field := violation.Field()
				if _, seen := fieldErrs[field]; seen {
					continue
				}
				key := field + "." + violation.Tag()
				msg, ok := fieldMessages[key]
				if !ok {
					msg = field + " is invalid"
				}
				fieldErrs[field] = msg
			}
		}
	}

	if !raw.AttestationAccepted {
		fieldErrs[domain.AttestationErrorKey] = attestationMessage
	}

	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}

	record := &domain.RegistrationRecord{
		Surname:             raw.Surname,
		MiddleName:          raw.MiddleName,
		FirstName:           raw.FirstName,
		DateOfBirth:         raw.DateOfBirth,
		Gender:              raw.Gender,
		Email:               raw.Email,
		Phone:               raw.Phone,
		Address:             raw.Address,
		ComputingKnowledge:  raw.ComputingKnowledge,
		HasComputer:         raw.HasComputer,
		UsingPhone:          raw.UsingPhone,
		AttestationAccepted: true,
		SubmissionTimestamp: c.now().UTC().Format(time.RFC3339),
	}

	return record, nil
}

// normalizeSubmission trims the text fields and strips all whitespace from the
// phone number, in one place, ahead of validation.
func normalizeSubmission(raw domain.RawRegistration) domain.RawRegistration {
	raw.Surname = strings.TrimSpace(raw.Surname)
	raw.MiddleName = strings.TrimSpace(raw.MiddleName)
	raw.FirstName = strings.TrimSpace(raw.FirstName)
	raw.DateOfBirth = strings.TrimSpace(raw.DateOfBirth)
	raw.Gender = strings.TrimSpace(raw.Gender)
	raw.Email = strings.TrimSpace(raw.Email)
	raw.Phone = stripWhitespace(raw.Phone)
	raw.Address = strings.TrimSpace(raw.Address)
	raw.ComputingKnowledge = strings.TrimSpace(raw.ComputingKnowledge)
	raw.HasComputer = strings.TrimSpace(raw.HasComputer)
	raw.UsingPhone = strings.TrimSpace(raw.UsingPhone)
	return raw
}

func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
