package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

const maxBodyBytes = 4 << 20

var validate = validator.New()

// ErrorResponse represents the API error response format
type ErrorResponse struct {
	Error     bool           `json:"error"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps AppError types to HTTP statuses. Anything else is a 500
// whose cause is logged but not returned.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	requestID := middleware.GetReqID(r.Context())

	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		logger.Error("Unhandled error",
			zap.String("path", r.URL.Path),
			zap.String("requestID", requestID),
			zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     true,
			Type:      string(pkgerrors.ErrorTypeInternal),
			Message:   "internal server error",
			RequestID: requestID,
		})
		return
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestID", requestID),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("type", string(appErr.Type)),
			zap.String("message", appErr.Message))
	}

	if appErr.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, status, ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		Code:      appErr.Code,
		Details:   appErr.Details,
		Retryable: appErr.Retryable,
		RequestID: requestID,
	})
}

// decodeJSON reads a size-limited body into v. An empty body leaves v at its
// zero value.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return pkgerrors.NewValidationError(strings.Join(msgs, "; "))
		}
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.NewValidationError(key + " must be an integer")
	}
	return v, nil
}

func queryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.NewValidationError(key + " must be a boolean")
	}
	return v, nil
}
