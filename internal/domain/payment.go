/**
 * @description
 * This file defines the payment-side domain models: the per-attempt payment
 * session handed to the hosted gateway, the normalized gateway result, and the
 * closed set of outcomes a payment attempt can resolve to.
 *
 * @notes
 * - Amounts are whole naira (the class fee is a fixed 3000 NGN); there is no
 *   kobo arithmetic anywhere in this flow.
 * - A PaymentSession is ephemeral: it exists for exactly one attempt and its
 *   reference is never reused after the attempt resolves.
 */

package domain

import (
	"strings"
	"time"
)

// Payment statuses the gateway reports back on the redirect.
const (
	StatusSuccessful = "successful"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// IsSuccessStatus reports whether a gateway status should be treated as a paid
// transaction. The gateway is known to report both "successful" and "completed".
func IsSuccessStatus(status string) bool {
	return status == StatusSuccessful || status == StatusCompleted
}

// Customer is the customer sub-object sent to (and echoed back by) the payment
// gateway.
type Customer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	ID          string `json:"id,omitempty"`
}

// Sanitize returns a copy of the customer safe for the gateway's field syntax.
// A literal "." in the identifier is known to break the gateway; it is replaced
// with "_". Applied at session construction and again to any customer object the
// gateway echoes back.
func (c Customer) Sanitize() Customer {
	c.ID = strings.ReplaceAll(c.ID, ".", "_")
	return c
}

// PaymentSession is the configuration for one hosted-payment attempt.
type PaymentSession struct {
	Reference      string
	Amount         int64
	Currency       string
	PaymentOptions string
	Customer       Customer
	Title          string
	Description    string
	LogoURL        string
	RedirectURL    string
	// DisableEventTracking is forwarded in the gateway meta object to silence
	// its noisy client-side telemetry.
	DisableEventTracking bool
}

// PaymentAttempt tracks one in-flight hosted-payment attempt on a funnel. An
// attempt resolves at most once; a new attempt always carries a new reference.
type PaymentAttempt struct {
	Session     PaymentSession
	PaymentLink string
	CreatedAt   time.Time
	Resolved    bool
}

// GatewayCallback is the normalized form of the gateway's redirect back to us:
// the transaction status, the echoed attempt reference, the gateway transaction
// id, an optionally echoed customer object, and the error message carried by the
// gateway's error path.
type GatewayCallback struct {
	Status        string
	TxRef         string
	TransactionID string
	Customer      *Customer
	ErrorMessage  string
}

// PaymentResult is the normalized outcome of a paid transaction.
type PaymentResult struct {
	TransactionID string `json:"transactionId"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	// RawStatus keeps the gateway's verified status for diagnostics only; it
	// is never persisted or rendered.
	RawStatus string `json:"-"`
}

// OutcomeKind enumerates the terminal results of one payment attempt.
type OutcomeKind string

const (
	OutcomeConfirmed    OutcomeKind = "confirmed"
	OutcomeDeclined     OutcomeKind = "declined"
	OutcomeCancelled    OutcomeKind = "cancelled"
	OutcomeConfigError  OutcomeKind = "config_error"
	OutcomeNetworkError OutcomeKind = "network_error"
)

// PaymentOutcome is the single terminal result of a payment attempt. Exactly one
// outcome is produced per attempt; none of them are retried automatically.
type PaymentOutcome struct {
	Kind   OutcomeKind    `json:"kind"`
	Reason string         `json:"reason,omitempty"`
	Result *PaymentResult `json:"result,omitempty"`
	// ContactSupport marks the one outcome that must not be retried: payment
	// went through but persistence failed, so re-charging would be incorrect.
	ContactSupport bool `json:"contactSupport,omitempty"`
}

// Confirmed reports whether the outcome advances the funnel.
func (o PaymentOutcome) Confirmed() bool {
	return o.Kind == OutcomeConfirmed
}
