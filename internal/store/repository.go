/**
 * @description
 * This file defines the `Repository` interface, the contract for the persistence
 * gateway the rest of the service writes completed registrations through. By
 * defining an interface, the payment orchestration logic stays decoupled from the
 * spreadsheet backend and can be exercised with stubs in tests.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: For the StoredRegistration model.
 */

package store

import (
	"context"
	"errors"

	"github.com/lfic/registration-service/internal/domain"
)

// ErrPersistenceUnavailable is the single error kind the persistence gateway
// exposes. Callers are deliberately not given enough detail to distinguish auth,
// network, or quota failures; the specifics are logged server-side.
var ErrPersistenceUnavailable = errors.New("persistence unavailable")

// Repository is the persistence gateway contract: append-only, exactly one row
// per call, no update or delete path.
type Repository interface {
	AppendRegistration(ctx context.Context, record domain.StoredRegistration) error
}

// UnavailableRepository is the degraded-mode repository installed when the
// spreadsheet credentials are missing at boot. Every append fails with
// ErrPersistenceUnavailable.
type UnavailableRepository struct{}

func (UnavailableRepository) AppendRegistration(ctx context.Context, record domain.StoredRegistration) error {
	return ErrPersistenceUnavailable
}
