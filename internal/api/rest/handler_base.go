package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
)

type contextKey string

const (
	contextKeyActor     contextKey = "actor"
	contextKeyRequestID contextKey = "request_id"
)

const maxBodySize = 1 << 20

// ResponseEnvelope wraps all API responses
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Meta    ResponseMeta   `json:"meta"`
}

type ResponseMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse provides detailed error information
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Fields  map[string]string      `json:"fields,omitempty"`
}

// BaseHandler provides request decoding, validation and response writing for
// all handlers.
type BaseHandler struct {
	validator *validator.Validate
	errors    *ErrorHandler
	logger    *slog.Logger
}

func NewBaseHandler(logger *slog.Logger) *BaseHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("decision", validateDecision)
	return &BaseHandler{
		validator: v,
		errors:    NewErrorHandler(logger),
		logger:    logger,
	}
}

// decode reads a JSON body into dst and validates it.
func (h *BaseHandler) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("EMPTY_BODY", "request body is required")
		}
		var (
			appErr    *apperrors.AppError
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
		)
		if errors.As(err, &appErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return err
		}
		// unknown fields
		return apperrors.NewValidationError("INVALID_JSON", err.Error())
	}
	return h.validator.Struct(dst)
}

func (h *BaseHandler) writeSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, status, ResponseEnvelope{
		Success: true,
		Data:    data,
		Meta:    newMeta(r.Context()),
	})
}

func (h *BaseHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := h.errors.Translate(r.Context(), err)
	writeJSON(w, status, ResponseEnvelope{
		Error: body,
		Meta:  newMeta(r.Context()),
	})
}

func newMeta(ctx context.Context) ResponseMeta {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return ResponseMeta{RequestID: id, Timestamp: time.Now().UTC()}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ActorFromContext returns the authenticated caller set by the auth middleware.
func ActorFromContext(ctx context.Context) (authz.Actor, bool) {
	a, ok := ctx.Value(contextKeyActor).(authz.Actor)
	return a, ok
}

func withActor(ctx context.Context, a authz.Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor, a)
}

func (h *BaseHandler) actor(r *http.Request) (authz.Actor, error) {
	a, ok := ActorFromContext(r.Context())
	if !ok {
		return authz.Actor{}, apperrors.NewUnauthorizedError("authentication required")
	}
	return a, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NewValidationError("INVALID_ID", name+" must be a UUID").
			WithDetails(map[string]interface{}{name: raw})
	}
	return id, nil
}

func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("INVALID_ID", name+" must be a UUID")
	}
	return &id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError("INVALID_QUERY", name+" must be a non-negative integer")
	}
	return n, nil
}
