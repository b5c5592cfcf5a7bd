/**
 * @description
 * This file contains the HTTP handlers for the registration-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application layer, and writing the HTTP response.
 * They act as the bridge between the web layer and the funnel logic.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/google/uuid: For parsing session IDs.
 * - internal/app, internal/domain, internal/store: For funnel logic, models, and
 *   persistence.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lfic/registration-service/internal/app"
	"github.com/lfic/registration-service/internal/domain"
	"github.com/lfic/registration-service/internal/store"
)

// StoreRateLimiter is the subset of the rate limiter the store endpoint needs.
// Defined here so tests can substitute a fake without a live Redis.
type StoreRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// FunnelHandlers holds the application dependencies the handlers use.
type FunnelHandlers struct {
	sessions   *app.SessionStore
	collector  *app.Collector
	service    *app.Service
	repo       store.Repository
	limiter    StoreRateLimiter
	storeLimit int
	publicKey  string
	inviteLink string
}

// NewFunnelHandlers creates a new instance of FunnelHandlers.
func NewFunnelHandlers(
	sessions *app.SessionStore,
	collector *app.Collector,
	service *app.Service,
	repo store.Repository,
	limiter StoreRateLimiter,
	storeLimit int,
	publicKey string,
	inviteLink string,
) *FunnelHandlers {
	return &FunnelHandlers{
		sessions:   sessions,
		collector:  collector,
		service:    service,
		repo:       repo,
		limiter:    limiter,
		storeLimit: storeLimit,
		publicKey:  publicKey,
		inviteLink: inviteLink,
	}
}

// funnelView is the step-appropriate rendering of one funnel session.
type funnelView struct {
	SessionID    string                     `json:"session_id"`
	Step         app.Step                   `json:"step"`
	Processing   bool                       `json:"processing"`
	Error        string                     `json:"error,omitempty"`
	Registration *domain.RegistrationRecord `json:"registration,omitempty"`
	Payment      *domain.PaymentResult      `json:"payment,omitempty"`
	InviteLink   string                     `json:"invite_link,omitempty"`
}

func (h *FunnelHandlers) buildFunnelView(f *app.Funnel) funnelView {
	view := funnelView{
		SessionID:    f.ID.String(),
		Step:         f.Step(),
		Processing:   f.Processing(),
		Error:        f.LastError(),
		Registration: f.Registration(),
		Payment:      f.Payment(),
	}
	if view.Step == app.StepConfirmation {
		view.InviteLink = h.inviteLink
	}
	return view
}

// CreateFunnelHandler opens a new funnel session at the registration step.
func (h *FunnelHandlers) CreateFunnelHandler(w http.ResponseWriter, r *http.Request) {
	f := h.sessions.Create()
	log.Printf("level=info component=api msg=\"funnel session created\" funnel_id=%s", f.ID)
	h.writeJSON(w, http.StatusCreated, h.buildFunnelView(f))
}

// GetFunnelHandler renders the current state of a funnel session.
func (h *FunnelHandlers) GetFunnelHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.buildFunnelView(f))
}

// SubmitRegistrationHandler validates the registration form and, when valid,
// advances the funnel to the payment step. All violations are returned at once.
func (h *FunnelHandlers) SubmitRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var raw domain.RawRegistration
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// The submission is a blocking operation from the client's point of view;
	// the flag is cleared on every exit path.
	if err := f.BeginProcessing(); err != nil {
		h.writeError(w, http.StatusConflict, "Your submission is already being processed")
		return
	}
	defer f.EndProcessing()

	record, fieldErrs := h.collector.Collect(raw)
	if fieldErrs != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"errors": fieldErrs})
		return
	}

	if err := f.CompleteRegistration(record); err != nil {
		if errors.Is(err, app.ErrWrongStep) {
			h.writeError(w, http.StatusConflict, "Registration has already been submitted")
			return
		}
		log.Printf("level=error component=api msg=\"registration completion failed\" funnel_id=%s err=%v", f.ID, err)
		h.writeError(w, http.StatusInternalServerError, "There was an error submitting your form. Please try again.")
		return
	}

	log.Printf("level=info component=api msg=\"registration collected\" funnel_id=%s email=%s", f.ID, record.Email)
	h.writeJSON(w, http.StatusOK, h.buildFunnelView(f))
}

// initiatePaymentResponse is sent back once a hosted payment attempt is open.
type initiatePaymentResponse struct {
	Reference   string `json:"reference"`
	PaymentLink string `json:"payment_link"`
	PublicKey   string `json:"public_key"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// InitiatePaymentHandler opens a fresh payment attempt for the session.
func (h *FunnelHandlers) InitiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	if f.Step() != app.StepPayment {
		h.writeError(w, http.StatusConflict, "Payment is not available for this step")
		return
	}
	if f.Processing() {
		h.writeError(w, http.StatusConflict, "A payment is already being processed")
		return
	}

	attempt, outcome := h.service.InitiatePayment(r.Context(), f)
	if outcome != nil {
		h.writeOutcome(w, *outcome)
		return
	}

	h.writeJSON(w, http.StatusOK, initiatePaymentResponse{
		Reference:   attempt.Session.Reference,
		PaymentLink: attempt.PaymentLink,
		PublicKey:   h.publicKey,
		Amount:      attempt.Session.Amount,
		Currency:    attempt.Session.Currency,
	})
}

// PaymentCallbackHandler consumes the gateway redirect for a pending attempt
// and resolves it into its terminal outcome.
func (h *FunnelHandlers) PaymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	cb := domain.GatewayCallback{
		Status:        query.Get("status"),
		TxRef:         query.Get("tx_ref"),
		TransactionID: query.Get("transaction_id"),
		ErrorMessage:  query.Get("error"),
	}

	outcome, err := h.service.ResolvePayment(r.Context(), f, cb)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNoPendingAttempt):
			h.writeError(w, http.StatusConflict, "No payment attempt is awaiting a result")
		case errors.Is(err, app.ErrReferenceMismatch):
			h.writeError(w, http.StatusConflict, "Payment reference does not match the pending attempt")
		default:
			log.Printf("level=error component=api msg=\"callback resolution failed\" funnel_id=%s err=%v", f.ID, err)
			h.writeError(w, http.StatusInternalServerError, "Unable to resolve payment")
		}
		return
	}

	h.writeOutcome(w, outcome)
}

// writeOutcome renders a payment outcome with a status code matching its kind.
func (h *FunnelHandlers) writeOutcome(w http.ResponseWriter, outcome domain.PaymentOutcome) {
	status := http.StatusOK
	switch outcome.Kind {
	case domain.OutcomeConfigError:
		status = http.StatusUnprocessableEntity
	case domain.OutcomeNetworkError:
		status = http.StatusBadGateway
	case domain.OutcomeDeclined:
		status = http.StatusPaymentRequired
	}
	h.writeJSON(w, status, outcome)
}

// storeUserDataResponse mirrors the response shape the store endpoint has
// always produced.
type storeUserDataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StoreUserDataHandler appends a completed registration+payment record to the
// spreadsheet. Any subset of fields may be missing; they persist as empty
// strings. Every failure surfaces uniformly as a generic 500.
func (h *FunnelHandlers) StoreUserDataHandler(w http.ResponseWriter, r *http.Request) {
	if h.storeLimit > 0 && h.limiter != nil {
		subject := clientAddr(r)
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "store_user_data", subject, h.storeLimit, time.Minute)
		if err != nil {
			// Limiter trouble must not take the endpoint down.
			log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if count > h.storeLimit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
	}

	var record domain.StoredRegistration
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		log.Printf("level=error component=api msg=\"store payload decode failed\" err=%v", err)
		h.writeJSON(w, http.StatusInternalServerError, storeUserDataResponse{Success: false, Error: "Failed to store user data"})
		return
	}

	if err := h.repo.AppendRegistration(r.Context(), record); err != nil {
		log.Printf("level=error component=api msg=\"registration append failed\" payment_reference=%s err=%v", record.PaymentReference, err)
		h.writeJSON(w, http.StatusInternalServerError, storeUserDataResponse{Success: false, Error: "Failed to store user data"})
		return
	}

	h.writeJSON(w, http.StatusOK, storeUserDataResponse{Success: true, Message: "User data stored successfully"})
}

// lookupSession parses the session ID and finds the live funnel, writing the
// error response itself when either fails.
func (h *FunnelHandlers) lookupSession(w http.ResponseWriter, r *http.Request) (*app.Funnel, bool) {
	idStr := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid session ID")
		return nil, false
	}

	f, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Session not found or expired")
		return nil, false
	}
	return f, true
}

// writeJSON is a helper for writing JSON responses.
func (h *FunnelHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *FunnelHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
