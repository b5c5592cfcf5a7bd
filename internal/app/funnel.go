/**
 * @description
 * This file contains the funnel state machine. A Funnel owns the state of one
 * registration session: the current step, the orthogonal processing flag, the
 * accumulated registration record and payment result, and the current payment
 * attempt.
 *
 * Transition rules:
 * - registration --(valid record)--> payment
 * - payment --(confirmed outcome)--> confirmation
 * - payment --(any other outcome)--> payment (error shown inline)
 * - No transition ever goes backward, and confirmation is terminal.
 *
 * The processing flag blocks user interaction while an operation that must not
 * be interrupted is in flight; it is always cleared on every exit path of that
 * operation.
 */

package app

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lfic/registration-service/internal/domain"
)

// Step is one of the three funnel stages.
type Step string

const (
	StepRegistration Step = "registration"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
)

var (
	ErrWrongStep         = errors.New("operation not allowed in the current funnel step")
	ErrProcessing        = errors.New("funnel is processing a previous operation")
	ErrNoPendingAttempt  = errors.New("no pending payment attempt")
	ErrReferenceMismatch = errors.New("callback reference does not match the pending attempt")
)

// Funnel is the state machine for one registration session.
type Funnel struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu           sync.Mutex
	step         Step
	processing   bool
	registration *domain.RegistrationRecord
	payment      *domain.PaymentResult
	attempt      *domain.PaymentAttempt
	lastError    string
}

// NewFunnel creates a funnel at the registration step.
func NewFunnel() *Funnel {
	return &Funnel{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		step:      StepRegistration,
	}
}

// Step returns the current step.
func (f *Funnel) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Processing reports whether a blocking operation is in flight.
func (f *Funnel) Processing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processing
}

// BeginProcessing raises the processing flag. It fails if the flag is already
// raised so that only one blocking operation can be in flight at a time.
func (f *Funnel) BeginProcessing() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processing {
		return ErrProcessing
	}
	f.processing = true
	return nil
}

// EndProcessing clears the processing flag. Safe to call on every exit path.
func (f *Funnel) EndProcessing() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processing = false
}

// CompleteRegistration stores the validated record and advances to payment.
func (f *Funnel) CompleteRegistration(record *domain.RegistrationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepRegistration {
		return ErrWrongStep
	}
	f.registration = record
	f.lastError = ""
	f.step = StepPayment
	return nil
}

// Registration returns the record collected so far, or nil before the
// registration step completes.
func (f *Funnel) Registration() *domain.RegistrationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registration
}

// BeginAttempt records a fresh payment attempt. It requires the payment step
// and no blocking operation in flight. An unresolved previous attempt (a hosted
// page the user abandoned without any callback firing) is superseded: its
// reference becomes stale and its callback, should it ever arrive, is rejected.
func (f *Funnel) BeginAttempt(attempt *domain.PaymentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepPayment {
		return ErrWrongStep
	}
	if f.processing {
		return ErrProcessing
	}
	f.attempt = attempt
	f.lastError = ""
	return nil
}

// TakeAttempt claims the pending attempt matching the given reference, marking
// it resolved so the same attempt can never resolve twice. A stale or unknown
// reference is rejected.
func (f *Funnel) TakeAttempt(reference string) (*domain.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil || f.attempt.Resolved {
		return nil, ErrNoPendingAttempt
	}
	if f.attempt.Session.Reference != reference {
		return nil, ErrReferenceMismatch
	}
	f.attempt.Resolved = true
	return f.attempt, nil
}

// ConfirmPayment stores the result and advances to confirmation. The processing
// flag is cleared before the step changes, so processing is never observed true
// on entry to confirmation.
func (f *Funnel) ConfirmPayment(result *domain.PaymentResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepPayment {
		return ErrWrongStep
	}
	f.payment = result
	f.lastError = ""
	f.processing = false
	f.step = StepConfirmation
	return nil
}

// Payment returns the confirmed payment result, or nil before confirmation.
func (f *Funnel) Payment() *domain.PaymentResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payment
}

// RecordFailure keeps the funnel on its current step and stores the inline
// error message for the next render.
func (f *Funnel) RecordFailure(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastError = reason
	f.processing = false
}

// LastError returns the inline error from the most recent failed operation.
func (f *Funnel) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}
