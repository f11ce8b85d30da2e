package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/bitfsorg/filepay-go/access"
	"github.com/bitfsorg/filepay-go/capability"
	"github.com/bitfsorg/filepay-go/escrow"
	"github.com/bitfsorg/filepay-go/funding"
	"github.com/bitfsorg/filepay-go/ledger"
	"github.com/bitfsorg/filepay-go/registry"
	"github.com/bitfsorg/filepay-go/service"
	"github.com/bitfsorg/filepay-go/storage"
)

// statusOf maps a domain error to its HTTP status.
func statusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, registry.ErrInvalidInput),
		errors.Is(err, escrow.ErrInvalidInput),
		errors.Is(err, capability.ErrInvalidInput),
		errors.Is(err, access.ErrEmptyIdentity),
		errors.Is(err, storage.ErrInvalidContentID),
		errors.Is(err, storage.ErrEmptyContent),
		errors.Is(err, funding.ErrInvalidParams),
		errors.Is(err, funding.ErrInvalidTx),
		errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, ledger.ErrEmptyAccount),
		errors.Is(err, service.ErrSizeMismatch):
		return http.StatusBadRequest

	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, registry.ErrDuplicateResource),
		errors.Is(err, registry.ErrInvalidState),
		errors.Is(err, escrow.ErrAlreadyPaid),
		errors.Is(err, escrow.ErrAlreadyFinalized),
		errors.Is(err, escrow.ErrAlreadyStored),
		errors.Is(err, escrow.ErrStorageNotConfirmed),
		errors.Is(err, funding.ErrReplayed),
		errors.Is(err, funding.ErrUnconfirmed),
		errors.Is(err, service.ErrNotStored):
		return http.StatusConflict

	case errors.Is(err, escrow.ErrAmountMismatch),
		errors.Is(err, funding.ErrNoMatchingOutput),
		errors.Is(err, service.ErrContentMismatch):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrVoided):
		return http.StatusGone

	case errors.Is(err, escrow.ErrTooEarly):
		return http.StatusTooEarly

	case errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, funding.ErrInsufficientPayment):
		return http.StatusPaymentRequired

	case errors.Is(err, capability.ErrMissingAuthorization),
		errors.Is(err, capability.ErrInvalidAuthorization):
		return http.StatusUnauthorized

	case errors.Is(err, access.ErrUnauthorized),
		errors.Is(err, capability.ErrMalformedToken),
		errors.Is(err, capability.ErrInvalidSignature),
		errors.Is(err, capability.ErrIssuerMismatch),
		errors.Is(err, capability.ErrResourceMismatch),
		errors.Is(err, capability.ErrActionMismatch),
		errors.Is(err, capability.ErrNotYetValid),
		errors.Is(err, capability.ErrExpired):
		return http.StatusForbidden

	case errors.Is(err, service.ErrStorageDisabled),
		errors.Is(err, service.ErrFundingDisabled):
		return http.StatusNotImplemented

	case errors.Is(err, storage.ErrIOFailure),
		errors.Is(err, storage.ErrContentMismatch):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}
