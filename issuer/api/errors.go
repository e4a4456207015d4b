package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

// Error strings of the response bodies.
const (
	ErrorMissingData          = "Missing data"
	ErrorConflictingProof     = "Conflicting proof field"
	ErrorInvalidVM            = "Invalid verification method"
	ErrorKeyFileNotFound      = "Private key file not found"
	ErrorKeyFileUnreadable    = "Private key file not readable"
	ErrorUnsupportedKeyType   = "Unsupported key type"
	ErrorSigningFailure       = "Signing failure"
	ErrorCanonicalizationTime = "Canonicalization timeout"
	ErrorInternal             = "Internal Server Error"
	ErrorPageNotFound         = "Page not found!"
	ErrorMethodNotAllowed     = "Method not allowed"
)

const internalMessage = "An unexpected error occurred while processing the request"

type errorMapping struct {
	status int
	name   string
}

var kindMappings = map[vcerr.Kind]errorMapping{
	vcerr.MalformedDocument:         {http.StatusBadRequest, ErrorMissingData},
	vcerr.ConflictingProofField:     {http.StatusBadRequest, ErrorConflictingProof},
	vcerr.InvalidVerificationMethod: {http.StatusBadRequest, ErrorInvalidVM},
	vcerr.KeyFileUnavailable:        {http.StatusInternalServerError, ErrorKeyFileNotFound},
	vcerr.UnsupportedKeyType:        {http.StatusInternalServerError, ErrorUnsupportedKeyType},
	vcerr.SigningFailure:            {http.StatusInternalServerError, ErrorSigningFailure},
	vcerr.CanonicalizationTimeout:   {http.StatusInternalServerError, ErrorCanonicalizationTime},
	vcerr.InternalFailure:           {http.StatusInternalServerError, ErrorInternal},
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusCodeError is an error carrying its own response.
type statusCodeError struct {
	status   int
	response ErrorResponse
	err      error
}

func (e statusCodeError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.response.Error
}

func (e statusCodeError) StatusCode() int {
	return e.status
}

func (e statusCodeError) Unwrap() error {
	return e.err
}

// resolveError maps any handler error to its status and response body.
func resolveError(err error) statusCodeError {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		return resolveEchoError(echoErr)
	}

	kind := vcerr.KindOf(err)
	mapping, ok := kindMappings[kind]
	if !ok {
		kind = vcerr.InternalFailure
		mapping = kindMappings[kind]
	}
	if kind == vcerr.KeyFileUnavailable && !errors.Is(err, fs.ErrNotExist) {
		mapping.name = ErrorKeyFileUnreadable
	}
	message := internalMessage
	var classified *vcerr.Error
	if kind != vcerr.InternalFailure && errors.As(err, &classified) && classified.Message != "" {
		message = classified.Message
	}
	return statusCodeError{
		status:   mapping.status,
		response: ErrorResponse{Error: mapping.name, Message: message},
		err:      err,
	}
}

func resolveEchoError(err *echo.HTTPError) statusCodeError {
	result := statusCodeError{status: err.Code, err: err}
	switch err.Code {
	case http.StatusNotFound:
		result.response = ErrorResponse{Error: ErrorPageNotFound}
	case http.StatusMethodNotAllowed:
		result.response = ErrorResponse{Error: ErrorMethodNotAllowed}
	case http.StatusRequestEntityTooLarge:
		result.response = ErrorResponse{Error: http.StatusText(err.Code), Message: "request body exceeds the configured limit"}
	default:
		result.response = ErrorResponse{Error: http.StatusText(err.Code), Message: fmt.Sprintf("%v", err.Message)}
	}
	if result.response.Error == "" {
		result.response.Error = ErrorInternal
		result.status = http.StatusInternalServerError
	}
	return result
}

// createHTTPErrorHandler returns an Echo HTTPErrorHandler that logs the error and writes it as a JSON response.
func createHTTPErrorHandler(logger *logrus.Entry) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		resolved := resolveError(err)
		logMsg := logger.
			WithField("requestURI", ctx.Request().RequestURI).
			WithField("requestID", ctx.Response().Header().Get(echo.HeaderXRequestID)).
			WithError(err)
		switch {
		case resolved.status >= http.StatusInternalServerError:
			logMsg.Error("Request failed")
		case resolved.status != http.StatusNotFound:
			logMsg.Warn("Request failed")
		}

		if ctx.Response().Committed {
			logger.
				WithError(err).
				Warn("Unable to send error back to client, response already committed")
			return
		}
		if writeErr := ctx.JSON(resolved.status, resolved.response); writeErr != nil {
			logger.WithError(writeErr).Error("Unable to write error response")
		}
	}
}
