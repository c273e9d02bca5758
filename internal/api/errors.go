package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/lattice-walk-go/internal/sampling"
	"github.com/MJE43/lattice-walk-go/internal/store"
	"github.com/MJE43/lattice-walk-go/internal/sweep"
	"github.com/MJE43/lattice-walk-go/internal/walks"
)

// ErrorBuilder helps construct structured errors with context.
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder.
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds the request ID to the error.
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error's message.
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final APIError.
func (eb *ErrorBuilder) Build() APIError {
	var ctx map[string]any
	if len(eb.context) > 0 {
		ctx = eb.context
	}
	return APIError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// classify maps a domain error to an error type and HTTP status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, sampling.ErrWalkNotFound):
		return ErrTypeWalkNotFound, http.StatusNotFound
	case errors.Is(err, store.ErrRunNotFound):
		return ErrTypeRunNotFound, http.StatusNotFound
	case errors.Is(err, sampling.ErrInvalidSamples),
		errors.Is(err, sampling.ErrTooManySamples),
		errors.Is(err, sampling.ErrInvalidSteps),
		errors.Is(err, sampling.ErrStepsTooLarge),
		errors.Is(err, sampling.ErrNoConfigurations),
		errors.Is(err, sweep.ErrEmptySweep),
		errors.Is(err, sweep.ErrNegativeSteps),
		errors.Is(err, sweep.ErrStepsTooLarge),
		errors.Is(err, sweep.ErrTooManyConfigurations),
		errors.Is(err, sweep.ErrInvalidExpression):
		return ErrTypeValidation, http.StatusBadRequest
	case errors.Is(err, walks.ErrStepLimit):
		return ErrTypeSampling, http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout, http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return ErrTypeServiceUnavailable, http.StatusServiceUnavailable
	default:
		return ErrTypeInternal, http.StatusInternalServerError
	}
}

// ErrorHandler writes structured errors and logs them.
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError classifies err and writes the matching response.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		eh.write(w, r, http.StatusInternalServerError, apiErr)
		return
	}

	errType, status := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	apiErr = NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithCause(err).
		Build()
	eh.write(w, r, status, apiErr)
}

// HandleValidationError reports a bad request field.
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	apiErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		Build()
	eh.write(w, r, http.StatusBadRequest, apiErr)
}

// HandleStatus writes an error of the given type and status.
func (eh *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	apiErr := NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()
	eh.write(w, r, status, apiErr)
}

func (eh *ErrorHandler) write(w http.ResponseWriter, r *http.Request, status int, apiErr APIError) {
	category := GetErrorCategory(apiErr.Type)
	fields := []zap.Field{
		zap.String("type", apiErr.Type),
		zap.String("category", string(category)),
		zap.Int("status", status),
		zap.String("request_id", apiErr.RequestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("message", apiErr.Message),
	}
	if cause, ok := apiErr.Context["cause"]; ok {
		fields = append(fields, zap.Any("cause", cause))
	}
	if status >= http.StatusInternalServerError {
		eh.logger.Error("error_occurred", fields...)
	} else {
		eh.logger.Warn("error_occurred", fields...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", sampling.EngineVersion)
	w.Header().Set("X-Error-Type", apiErr.Type)
	w.Header().Set("X-Error-Category", string(category))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		eh.logger.Error("error_encode_failed", zap.Error(err))
	}
}

// RecoveryHandler turns panics into 500 responses.
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Error("panic_recovered",
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rvr),
					zap.Stack("stack"),
				)

				apiErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					Build()
				eh.write(w, r, http.StatusInternalServerError, apiErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
