package dto

import (
	"net/http"

	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// Domain codes are passed through unchanged; the transport adds its own
// codes for failures that never reach a service.
const (
	CodeValidation            = shared.CodeValidation
	CodeNotFound              = shared.CodeNotFound
	CodeDecryptionFailed      = shared.CodeDecryptionFailed
	CodeConfigDecryption      = shared.CodeConfigDecryption
	CodeInvalidState          = shared.CodeInvalidState
	CodeConcurrencyConflict   = shared.CodeConcurrencyConflict
	CodeAlreadyExists         = shared.CodeAlreadyExists
	CodeTransferFailed        = shared.CodeTransferFailed
	CodeProbeFailed           = shared.CodeProbeFailed
	CodeInternal              = shared.CodeInternal
	CodeIdempotencyInProgress = shared.CodeIdempotencyInProgress

	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"
	CodeRouteNotFound   = "ROUTE_NOT_FOUND"
)

var codeStatus = map[string]int{
	CodeValidation:            http.StatusBadRequest,
	CodeBadRequest:            http.StatusBadRequest,
	CodeUnauthorized:          http.StatusUnauthorized,
	CodeNotFound:              http.StatusNotFound,
	CodeRouteNotFound:         http.StatusNotFound,
	CodeAlreadyExists:         http.StatusConflict,
	CodeConcurrencyConflict:   http.StatusConflict,
	CodeIdempotencyInProgress: http.StatusConflict,
	CodeRequestTooLarge:       http.StatusRequestEntityTooLarge,
	CodeInvalidState:          http.StatusUnprocessableEntity,
	// A credential that no longer decrypts is a server-side fault
	CodeDecryptionFailed: http.StatusInternalServerError,
	CodeConfigDecryption: http.StatusInternalServerError,
	CodeTransferFailed:   http.StatusBadGateway,
	CodeProbeFailed:      http.StatusBadGateway,
	CodeInternal:         http.StatusInternalServerError,
}

// HTTPStatus returns the status for an error code, 500 when unknown
func HTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
