package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/service"
)

type ErrorDetails struct {
	RemainingStock *int `json:"remaining_stock,omitempty"`
}

type ErrorResponse struct {
	ErrorKind string        `json:"error_kind"`
	Message   string        `json:"message"`
	Details   *ErrorDetails `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Base().Error("failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, ErrorResponse{ErrorKind: kind, Message: message})
}

var kindStatus = map[service.ErrorKind]int{
	service.KindValidation:              http.StatusBadRequest,
	service.KindPolicyNotAccepted:       http.StatusBadRequest,
	service.KindPaymentInfoMissing:      http.StatusBadRequest,
	service.KindForbidden:               http.StatusForbidden,
	service.KindProductNotFound:         http.StatusNotFound,
	service.KindOrderNotFound:           http.StatusNotFound,
	service.KindInsufficientStock:       http.StatusConflict,
	service.KindProductUnavailable:      http.StatusConflict,
	service.KindInvalidStatusTransition: http.StatusConflict,
	service.KindDuplicateRequest:        http.StatusConflict,
	service.KindTransactionFailed:       http.StatusServiceUnavailable,
}

// respondServiceError maps a service error to its HTTP status. Only the
// customer-facing message is written, never the wrapped cause.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var oe *service.OrderError
	if !errors.As(err, &oe) {
		logging.FromCtx(r.Context()).Error("unexpected error", "err", err)
		respondError(w, http.StatusInternalServerError, "InternalError", "internal server error")
		return
	}

	status, ok := kindStatus[oe.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logging.FromCtx(r.Context()).Error("request failed", "kind", oe.Kind, "err", err)
	}

	resp := ErrorResponse{ErrorKind: string(oe.Kind), Message: oe.Message}
	if oe.RemainingStock != nil {
		resp.Details = &ErrorDetails{RemainingStock: oe.RemainingStock}
	}
	respondJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, string(service.KindValidation), "invalid JSON body")
		return false
	}
	return true
}
