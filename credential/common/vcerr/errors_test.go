package vcerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("classified", func(t *testing.T) {
		err := New(MalformedDocument, "document is not valid JSON")
		assert.Equal(t, MalformedDocument, KindOf(err))
		assert.ErrorIs(t, err, ErrMalformedDocument)
		assert.NotErrorIs(t, err, ErrSigningFailure)
	})
	t.Run("wrapped with fmt", func(t *testing.T) {
		err := fmt.Errorf("sign: %w", New(KeyFileUnavailable, "privkey.pem"))
		assert.Equal(t, KeyFileUnavailable, KindOf(err))
		assert.ErrorIs(t, err, ErrKeyFileUnavailable)
	})
	t.Run("unclassified", func(t *testing.T) {
		assert.Equal(t, InternalFailure, KindOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("boom")

	err := Wrap(SigningFailure, cause, "failed to sign")
	assert.Equal(t, SigningFailure, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "SigningFailure: failed to sign: boom", err.Error())

	// an existing kind wins
	again := Wrap(InternalFailure, err, "outer")
	assert.Equal(t, SigningFailure, KindOf(again))

	assert.Nil(t, Wrap(SigningFailure, nil, "nothing"))
}

func TestKind_ClientFault(t *testing.T) {
	assert.True(t, MalformedDocument.ClientFault())
	assert.True(t, ConflictingProofField.ClientFault())
	assert.True(t, InvalidVerificationMethod.ClientFault())
	assert.False(t, KeyFileUnavailable.ClientFault())
	assert.False(t, CanonicalizationTimeout.ClientFault())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
