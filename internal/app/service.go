/**
 * @description
 * This file contains the core business logic for the registration-service. The
 * `Service` struct orchestrates the payment leg of the funnel, coordinating
 * between the funnel state machine, the Flutterwave hosted-payment gateway, and
 * the spreadsheet-backed persistence gateway.
 *
 * Key features:
 * - Builds a fresh payment session (new reference) for every attempt.
 * - Performs a connectivity pre-check before ever contacting the gateway.
 * - Resolves the gateway callback into exactly one terminal outcome per attempt:
 *   Confirmed, Declined, Cancelled, ConfigError, or NetworkError.
 * - Verifies paid transactions server-side before persisting, and persists at
 *   most once per attempt.
 *
 * @dependencies
 * - context, fmt, log, strconv, sync/atomic, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and persistence.
 * - pkg/flutterwave: For the gateway wire types.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lfic/registration-service/internal/domain"
	"github.com/lfic/registration-service/internal/store"
	"github.com/lfic/registration-service/pkg/flutterwave"
)

// PaymentGateway is the subset of the Flutterwave client the orchestrator
// needs. Defined here so tests can substitute a fake gateway.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, payload flutterwave.PaymentRequest) (*flutterwave.PaymentResponse, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*flutterwave.VerifyResponse, error)
	Ping(ctx context.Context) error
}

// PaymentConfig carries the fixed payment parameters for the class.
type PaymentConfig struct {
	Amount          int64
	Currency        string
	PaymentOptions  string
	Title           string
	Description     string
	LogoURL         string
	RedirectBaseURL string
}

// User-facing failure copy. The partial-failure message must direct to support,
// never to a retry, because the charge already went through.
const (
	ReasonNoConnectivity   = "No internet connection. Please check your network and try again."
	ReasonPartialFailure   = "Payment successful but registration failed. Please contact support."
	ReasonSessionUnusable  = "Payment configuration is missing. Please try again."
	declinedReasonTemplate = "Payment not completed. Status: %s"
)

// Service provides the payment orchestration logic.
type Service struct {
	repo    store.Repository
	gateway PaymentGateway
	cfg     PaymentConfig

	now          func() time.Time
	newReference func() string
}

// NewService creates a new orchestrator instance.
func NewService(repo store.Repository, gateway PaymentGateway, cfg PaymentConfig) *Service {
	return &Service{
		repo:         repo,
		gateway:      gateway,
		cfg:          cfg,
		now:          time.Now,
		newReference: monotonicReference,
	}
}

var lastReferenceMillis int64

// monotonicReference returns a millisecond timestamp, matching the reference
// format the sheet has always recorded, bumped past the previous value so two
// payments started within the same millisecond never share a reference.
func monotonicReference() string {
	for {
		next := time.Now().UnixMilli()
		prev := atomic.LoadInt64(&lastReferenceMillis)
		if next <= prev {
			next = prev + 1
		}
		if atomic.CompareAndSwapInt64(&lastReferenceMillis, prev, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}

// BuildPaymentSession derives a session from a validated registration record.
// It fails if the customer sub-object cannot be populated.
func (s *Service) BuildPaymentSession(record *domain.RegistrationRecord, funnelID string) (*domain.PaymentSession, error) {
	if record == nil {
		return nil, fmt.Errorf("no registration record to build a session from")
	}

	customer := domain.Customer{
		Email:       record.Email,
		PhoneNumber: record.Phone,
		Name:        record.FullName(),
		ID:          funnelID,
	}.Sanitize()

	if customer.Email == "" || customer.PhoneNumber == "" || customer.Name == "" {
		return nil, fmt.Errorf("customer fields missing from registration record")
	}

	return &domain.PaymentSession{
		Reference:            s.newReference(),
		Amount:               s.cfg.Amount,
		Currency:             s.cfg.Currency,
		PaymentOptions:       s.cfg.PaymentOptions,
		Customer:             customer,
		Title:                s.cfg.Title,
		Description:          s.cfg.Description,
		LogoURL:              s.cfg.LogoURL,
		RedirectURL:          fmt.Sprintf("%s/api/funnel/%s/payment/callback", s.cfg.RedirectBaseURL, funnelID),
		DisableEventTracking: true,
	}, nil
}

// InitiatePayment opens a fresh payment attempt for the funnel. On success the
// attempt (with its hosted payment link) is recorded on the funnel and
// returned; on failure the terminal outcome is returned instead and the funnel
// stays on the payment step.
func (s *Service) InitiatePayment(ctx context.Context, f *Funnel) (*domain.PaymentAttempt, *domain.PaymentOutcome) {
	session, err := s.BuildPaymentSession(f.Registration(), f.ID.String())
	if err != nil {
		log.Printf("level=warn component=payment_orchestrator msg=\"session build failed\" funnel_id=%s err=%v", f.ID, err)
		outcome := &domain.PaymentOutcome{Kind: domain.OutcomeConfigError, Reason: ReasonSessionUnusable}
		f.RecordFailure(outcome.Reason)
		return nil, outcome
	}

	// Connectivity pre-check: fail fast without contacting the payment API.
	if err := s.gateway.Ping(ctx); err != nil {
		log.Printf("level=warn component=payment_orchestrator msg=\"connectivity pre-check failed\" funnel_id=%s err=%v", f.ID, err)
		outcome := &domain.PaymentOutcome{Kind: domain.OutcomeNetworkError, Reason: ReasonNoConnectivity}
		f.RecordFailure(outcome.Reason)
		return nil, outcome
	}

	payload := flutterwave.PaymentRequest{
		TxRef:          session.Reference,
		Amount:         session.Amount,
		Currency:       session.Currency,
		PaymentOptions: session.PaymentOptions,
		RedirectURL:    session.RedirectURL,
		Customer: flutterwave.CustomerPayload{
			Email:       session.Customer.Email,
			PhoneNumber: session.Customer.PhoneNumber,
			Name:        session.Customer.Name,
		},
		Customizations: flutterwave.CustomizationsPayload{
			Title:       session.Title,
			Description: session.Description,
			Logo:        session.LogoURL,
		},
	}
	if session.DisableEventTracking {
		payload.Meta = map[string]interface{}{"__disableProblematicEventTracking": true}
	}

	resp, err := s.gateway.CreatePayment(ctx, payload)
	if err != nil {
		log.Printf("level=warn component=payment_orchestrator msg=\"hosted payment creation failed\" funnel_id=%s tx_ref=%s err=%v", f.ID, session.Reference, err)
		outcome := &domain.PaymentOutcome{Kind: domain.OutcomeNetworkError, Reason: fmt.Sprintf("Payment error: %v", err)}
		f.RecordFailure(outcome.Reason)
		return nil, outcome
	}

	attempt := &domain.PaymentAttempt{
		Session:     *session,
		PaymentLink: resp.Data.Link,
		CreatedAt:   s.now().UTC(),
	}
	if err := f.BeginAttempt(attempt); err != nil {
		log.Printf("level=warn component=payment_orchestrator msg=\"attempt rejected\" funnel_id=%s err=%v", f.ID, err)
		outcome := &domain.PaymentOutcome{Kind: domain.OutcomeConfigError, Reason: err.Error()}
		return nil, outcome
	}

	log.Printf("level=info component=payment_orchestrator msg=\"payment attempt opened\" funnel_id=%s tx_ref=%s amount=%d currency=%s", f.ID, session.Reference, session.Amount, session.Currency)
	return attempt, nil
}

// ResolvePayment consumes the gateway callback for the funnel's pending attempt
// and produces its single terminal outcome. The attempt is marked resolved
// before any side effect, so a duplicate callback can never trigger a second
// persistence call.
func (s *Service) ResolvePayment(ctx context.Context, f *Funnel, cb domain.GatewayCallback) (domain.PaymentOutcome, error) {
	attempt, err := f.TakeAttempt(cb.TxRef)
	if err != nil {
		return domain.PaymentOutcome{}, err
	}

	// Sanitize the echoed customer object exactly as at session construction;
	// the gateway has been observed echoing unsanitized input back.
	if cb.Customer != nil {
		sanitized := cb.Customer.Sanitize()
		cb.Customer = &sanitized
	}

	switch {
	case cb.ErrorMessage != "":
		outcome := domain.PaymentOutcome{Kind: domain.OutcomeNetworkError, Reason: fmt.Sprintf("Payment error: %s", cb.ErrorMessage)}
		f.RecordFailure(outcome.Reason)
		log.Printf("level=warn component=payment_orchestrator msg=\"gateway error callback\" funnel_id=%s tx_ref=%s err=%q", f.ID, cb.TxRef, cb.ErrorMessage)
		return outcome, nil

	case cb.Status == domain.StatusCancelled:
		outcome := domain.PaymentOutcome{Kind: domain.OutcomeCancelled, Reason: "Payment was not completed"}
		f.RecordFailure(outcome.Reason)
		log.Printf("level=info component=payment_orchestrator msg=\"payment cancelled by user\" funnel_id=%s tx_ref=%s", f.ID, cb.TxRef)
		return outcome, nil

	case domain.IsSuccessStatus(cb.Status):
		return s.settle(ctx, f, attempt, cb), nil

	default:
		outcome := domain.PaymentOutcome{Kind: domain.OutcomeDeclined, Reason: fmt.Sprintf(declinedReasonTemplate, cb.Status)}
		f.RecordFailure(outcome.Reason)
		log.Printf("level=warn component=payment_orchestrator msg=\"payment declined\" funnel_id=%s tx_ref=%s status=%s", f.ID, cb.TxRef, cb.Status)
		return outcome, nil
	}
}

// settle verifies a paid transaction and persists the merged record. The
// processing flag blocks further interaction for the duration and is cleared on
// every exit path.
func (s *Service) settle(ctx context.Context, f *Funnel, attempt *domain.PaymentAttempt, cb domain.GatewayCallback) domain.PaymentOutcome {
	if err := f.BeginProcessing(); err != nil {
		return domain.PaymentOutcome{Kind: domain.OutcomeDeclined, Reason: err.Error()}
	}
	defer f.EndProcessing()

	verification, err := s.gateway.VerifyTransaction(ctx, cb.TransactionID)
	if err != nil {
		outcome := domain.PaymentOutcome{Kind: domain.OutcomeNetworkError, Reason: fmt.Sprintf("Payment error: %v", err)}
		f.RecordFailure(outcome.Reason)
		log.Printf("level=warn component=payment_orchestrator msg=\"verification failed\" funnel_id=%s tx_ref=%s transaction_id=%s err=%v", f.ID, cb.TxRef, cb.TransactionID, err)
		return outcome
	}

	if !domain.IsSuccessStatus(verification.Data.Status) ||
		verification.Data.TxRef != attempt.Session.Reference ||
		int64(verification.Data.Amount) < attempt.Session.Amount ||
		verification.Data.Currency != attempt.Session.Currency {
		outcome := domain.PaymentOutcome{Kind: domain.OutcomeDeclined, Reason: fmt.Sprintf(declinedReasonTemplate, verification.Data.Status)}
		f.RecordFailure(outcome.Reason)
		log.Printf("level=warn component=payment_orchestrator msg=\"verification mismatch\" funnel_id=%s tx_ref=%s verified_tx_ref=%s status=%s amount=%f currency=%s",
			f.ID, attempt.Session.Reference, verification.Data.TxRef, verification.Data.Status, verification.Data.Amount, verification.Data.Currency)
		return outcome
	}

	record := f.Registration()
	stored := domain.StoredRegistration{
		Surname:            record.Surname,
		MiddleName:         record.MiddleName,
		FirstName:          record.FirstName,
		DateOfBirth:        record.DateOfBirth,
		Gender:             record.Gender,
		Email:              record.Email,
		Phone:              record.Phone,
		Address:            record.Address,
		ComputingKnowledge: record.ComputingKnowledge,
		HasComputer:        record.HasComputer,
		UsingPhone:         record.UsingPhone,
		PaymentReference:   attempt.Session.Reference,
		TransactionID:      cb.TransactionID,
		PaymentStatus:      "completed",
		PaymentDate:        s.now().UTC().Format(time.RFC3339),
	}

	if err := s.repo.AppendRegistration(ctx, stored); err != nil {
		// The charge went through but the registration did not persist.
		// Retrying payment would double-charge, so the user is sent to support.
		outcome := domain.PaymentOutcome{
			Kind:           domain.OutcomeDeclined,
			Reason:         ReasonPartialFailure,
			ContactSupport: true,
		}
		f.RecordFailure(outcome.Reason)
		log.Printf("level=error component=payment_orchestrator msg=\"payment settled but persistence failed\" funnel_id=%s tx_ref=%s transaction_id=%s err=%v", f.ID, cb.TxRef, cb.TransactionID, err)
		return outcome
	}

	result := &domain.PaymentResult{
		TransactionID: cb.TransactionID,
		Reference:     attempt.Session.Reference,
		Status:        cb.Status,
		RawStatus:     verification.Data.Status,
	}
	if err := f.ConfirmPayment(result); err != nil {
		outcome := domain.PaymentOutcome{Kind: domain.OutcomeDeclined, Reason: err.Error()}
		f.RecordFailure(outcome.Reason)
		return outcome
	}

	log.Printf("level=info component=payment_orchestrator msg=\"registration confirmed\" funnel_id=%s tx_ref=%s transaction_id=%s", f.ID, cb.TxRef, cb.TransactionID)
	return domain.PaymentOutcome{Kind: domain.OutcomeConfirmed, Result: result}
}
