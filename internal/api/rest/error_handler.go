package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
)

// ErrorHandler converts errors to HTTP status codes and error bodies.
type ErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Translate maps err to a status and response body. Unknown errors are logged
// and reported as INTERNAL_ERROR without their message.
func (h *ErrorHandler) Translate(ctx context.Context, err error) (int, *ErrorResponse) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("error.type", fmt.Sprintf("%T", err))))

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "request failed", "error", err, "code", appErr.Code)
			return status, &ErrorResponse{Code: appErr.Code, Message: appErr.Message}
		}
		return status, &ErrorResponse{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  fields,
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "INVALID_JSON",
			Message: fmt.Sprintf("invalid JSON at position %d", syntaxErr.Offset),
		}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "TYPE_MISMATCH",
			Message: fmt.Sprintf("invalid type for field %q", typeErr.Field),
		}
	}
	var sizeErr *http.MaxBytesError
	if errors.As(err, &sizeErr) {
		return http.StatusRequestEntityTooLarge, &ErrorResponse{Code: "BODY_TOO_LARGE", Message: "request body too large"}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, &ErrorResponse{Code: "REQUEST_TIMEOUT", Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, &ErrorResponse{Code: "REQUEST_CANCELED", Message: "request was canceled"}
	}

	h.logger.ErrorContext(ctx, "unhandled error", "error", err)
	return http.StatusInternalServerError, &ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a UUID"
	case "oneof":
		return "must be one of " + fe.Param()
	case "decision":
		return "must be APPROVED, NEEDS_REVISION or REJECTED"
	}
	return "failed " + fe.Tag() + " validation"
}
