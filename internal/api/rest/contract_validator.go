package rest

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
)

//go:embed openapi.yaml
var openAPISpec []byte

// ContractValidator validates HTTP requests and responses against the
// embedded OpenAPI document.
type ContractValidator struct {
	doc     *openapi3.T
	router  routers.Router
	options *openapi3filter.Options
}

func NewContractValidator() (*ContractValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	return &ContractValidator{
		doc:    doc,
		router: router,
		// bearer tokens are verified by the auth middleware
		options: &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
	}, nil
}

// Document exposes the loaded OpenAPI document.
func (cv *ContractValidator) Document() *openapi3.T { return cv.doc }

// ValidateRequest validates a request. Routes absent from the document
// report routers.ErrPathNotFound.
func (cv *ContractValidator) ValidateRequest(r *http.Request) error {
	route, params, err := cv.router.FindRoute(r)
	if err != nil {
		return err
	}
	return openapi3filter.ValidateRequest(r.Context(), &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: params,
		Route:      route,
		Options:    cv.options,
	})
}

// ValidateResponse validates a recorded response for the given request.
func (cv *ContractValidator) ValidateResponse(r *http.Request, status int, header http.Header, body []byte) error {
	route, params, err := cv.router.FindRoute(r)
	if err != nil {
		return err
	}
	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options:    cv.options,
		},
		Status:  status,
		Header:  header,
		Options: cv.options,
	}
	input.SetBodyBytes(body)
	return openapi3filter.ValidateResponse(r.Context(), input)
}

// Middleware rejects requests that violate the contract. Unknown routes pass
// through so chi can answer them.
func (cv *ContractValidator) Middleware(base *BaseHandler, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := cv.ValidateRequest(r)
			switch {
			case err == nil:
			case errors.Is(err, routers.ErrPathNotFound), errors.Is(err, routers.ErrMethodNotAllowed):
			default:
				logger.InfoContext(r.Context(), "contract violation", "path", r.URL.Path, "error", err)
				base.writeError(w, r, apperrors.NewValidationError("CONTRACT_VIOLATION", contractMessage(err)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func contractMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("parameter %q: %s", reqErr.Parameter.Name, reqErr.Reason)
		}
		if reqErr.Reason != "" {
			return reqErr.Reason
		}
	}
	return err.Error()
}
