// Package api exposes the issuer over HTTP.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
	"github.com/pilacorp/go-vc-issuer/credential/common/schema"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
	"github.com/pilacorp/go-vc-issuer/issuer"
)

// Response messages.
const (
	MessageNormalized = "VC document successfully normalized and hashed!"
	MessageSigned     = "VC document successfully signed"
)

// NormalizeResponse is the body of a successful normalize request.
type NormalizeResponse struct {
	Message string `json:"message"`
	// Data is the lowercase hex SHA-256 of the canonical document.
	Data string `json:"data"`
}

// SignResponse is the body of a successful sign request.
type SignResponse struct {
	Message string          `json:"message"`
	Data    *document.Value `json:"data"`
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// Wrapper binds the issuer service to HTTP routes.
type Wrapper struct {
	Service *issuer.Service
}

// EchoRouter is the part of echo the routes are registered on.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// Routes registers the issuer operations.
func (w *Wrapper) Routes(router EchoRouter) {
	router.POST("/normalize/urdna2015", w.Normalize)
	router.POST("/sign", w.Sign)
	router.GET("/verification-method", w.VerificationMethod)
	router.GET("/health", w.Health)
}

// Normalize handles POST /normalize/urdna2015 with body {"document": ...}.
func (w *Wrapper) Normalize(ctx echo.Context) error {
	body, err := readBody(ctx, schema.NormalizeRequest)
	if err != nil {
		return err
	}
	digest, err := w.Service.Normalize(ctx.Request().Context(), body.Get("document"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, NormalizeResponse{
		Message: MessageNormalized,
		Data:    digest.Hex(),
	})
}

// Sign handles POST /sign with body {"document": {...}, "verification_method": "..."}.
// The field name issuer_verification_method is accepted as well.
func (w *Wrapper) Sign(ctx echo.Context) error {
	body, err := readBody(ctx, schema.SignRequest)
	if err != nil {
		return err
	}
	request := issuer.SignRequest{Document: body.Get("document")}
	for _, field := range []string{"verification_method", "issuer_verification_method"} {
		if vm, ok := body.Get(field).StringValue(); ok && vm != "" {
			request.VerificationMethod = vm
			break
		}
	}
	if options := body.Get("options"); options != nil {
		if request.Options, err = proofOptions(options); err != nil {
			return err
		}
	}

	signed, err := w.Service.Sign(ctx.Request().Context(), request)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, SignResponse{
		Message: MessageSigned,
		Data:    signed,
	})
}

// VerificationMethod handles GET /verification-method, returning the public key of the issuer.
func (w *Wrapper) VerificationMethod(ctx echo.Context) error {
	info, err := w.Service.KeyInfo()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, info)
}

// Health handles GET /health.
func (w *Wrapper) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// readBody validates the request body against the schema and parses it into a document.
func readBody(ctx echo.Context, validator *schema.Validator) (*document.Value, error) {
	raw, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		// body limit exceeded
		if httpErr, ok := err.(*echo.HTTPError); ok {
			return nil, httpErr
		}
		return nil, vcerr.Wrap(vcerr.MalformedDocument, err, "unable to read request body")
	}
	if err := validator.Validate(raw); err != nil {
		return nil, err
	}
	return document.Parse(raw)
}

func proofOptions(v *document.Value) (dto.ProofOptions, error) {
	var options dto.ProofOptions
	raw, err := v.MarshalJSON()
	if err != nil {
		return options, vcerr.Wrap(vcerr.MalformedDocument, err, "invalid proof options")
	}
	if err := json.Unmarshal(raw, &options); err != nil {
		return options, vcerr.Wrap(vcerr.MalformedDocument, err, "invalid proof options")
	}
	return options, nil
}
