package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

func TestResolveError(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		status  int
		error   string
		message string
	}{
		{"unclassified", errors.New("disk on fire"), http.StatusInternalServerError, ErrorInternal, internalMessage},
		{"malformed", vcerr.New(vcerr.MalformedDocument, "document is required"), http.StatusBadRequest, ErrorMissingData, "document is required"},
		{"wrapped kind", fmt.Errorf("sign: %w", vcerr.New(vcerr.CanonicalizationTimeout, "work limit exceeded")), http.StatusInternalServerError, ErrorCanonicalizationTime, "work limit exceeded"},
		{"key file missing", vcerr.Wrap(vcerr.KeyFileUnavailable, fs.ErrNotExist, "Private key file not found"), http.StatusInternalServerError, ErrorKeyFileNotFound, "Private key file not found"},
		{"key file unreadable", vcerr.Wrap(vcerr.KeyFileUnavailable, fs.ErrPermission, "Private key file not readable"), http.StatusInternalServerError, ErrorKeyFileUnreadable, "Private key file not readable"},
		{"key file is a directory", vcerr.New(vcerr.KeyFileUnavailable, "key file /tmp is a directory"), http.StatusInternalServerError, ErrorKeyFileUnreadable, "key file /tmp is a directory"},
		{"unsupported key", vcerr.New(vcerr.UnsupportedKeyType, "no signer"), http.StatusInternalServerError, ErrorUnsupportedKeyType, "no signer"},
		{"signing failure", vcerr.New(vcerr.SigningFailure, "bad key"), http.StatusInternalServerError, ErrorSigningFailure, "bad key"},
		{"verification method", vcerr.New(vcerr.InvalidVerificationMethod, "mismatch"), http.StatusBadRequest, ErrorInvalidVM, "mismatch"},
		{"internal hides detail", vcerr.New(vcerr.InternalFailure, "pointer at 0xc000"), http.StatusInternalServerError, ErrorInternal, internalMessage},
		{"echo not found", echo.ErrNotFound, http.StatusNotFound, ErrorPageNotFound, ""},
		{"echo bad request", echo.NewHTTPError(http.StatusBadRequest, "bad"), http.StatusBadRequest, "Bad Request", "bad"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resolved := resolveError(tc.err)

			assert.Equal(t, tc.status, resolved.StatusCode())
			assert.Equal(t, tc.error, resolved.response.Error)
			assert.Equal(t, tc.message, resolved.response.Message)
			assert.ErrorIs(t, resolved, tc.err)
		})
	}
}
