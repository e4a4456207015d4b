package issuer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
	"github.com/pilacorp/go-vc-issuer/credential/common/keystore"
	"github.com/pilacorp/go-vc-issuer/credential/common/processor"
	"github.com/pilacorp/go-vc-issuer/credential/common/proof"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
	"github.com/pilacorp/go-vc-issuer/issuer/metrics"
)

const (
	credentialDoc      = `{"@context":"https://www.w3.org/2018/credentials/v1","id":"urn:uuid:1","type":"VerifiableCredential"}`
	credentialDigest   = "8f93ec74b1f9aef71a01245d4f97fc84d0d6731615569cabbe13c79a43bad344"
	verificationMethod = "did:example:issuer#key-1"
)

type staticKey struct {
	key *crypto.KeyMaterial
	err error
}

func (s staticKey) Key() (*crypto.KeyMaterial, error) {
	return s.key, s.err
}

type checkerFunc func(ctx context.Context, key *crypto.KeyMaterial, vm string) error

func (f checkerFunc) CheckVerificationMethod(ctx context.Context, key *crypto.KeyMaterial, vm string) error {
	return f(ctx, key, vm)
}

func secp256k1Key(t *testing.T) *crypto.KeyMaterial {
	t.Helper()
	raw, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	k, err := crypto.NewKeyMaterial(raw)
	require.NoError(t, err)
	return k
}

func p256Key(t *testing.T) *crypto.KeyMaterial {
	t.Helper()
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	k, err := crypto.NewKeyMaterial(raw)
	require.NoError(t, err)
	return k
}

func parseDoc(t *testing.T, input string) *document.Value {
	t.Helper()
	v, err := document.Parse([]byte(input))
	require.NoError(t, err)
	return v
}

func signedProof(t *testing.T, signed *document.Value) dto.Proof {
	t.Helper()
	proofs, err := proof.Proofs(signed)
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	return proofs[0]
}

func TestService_Normalize(t *testing.T) {
	ctx := context.Background()

	t.Run("credential digest", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		service := NewService(staticKey{}, WithMetrics(m))

		first, err := service.Normalize(ctx, parseDoc(t, credentialDoc))
		require.NoError(t, err)
		second, err := service.Normalize(ctx, parseDoc(t, `{"type":"VerifiableCredential","id":"urn:uuid:1","@context":"https://www.w3.org/2018/credentials/v1"}`))
		require.NoError(t, err)

		assert.Equal(t, credentialDigest, first.Hex())
		assert.Equal(t, first, second)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues(OperationNormalize, metrics.OutcomeSuccess)))
	})
	t.Run("scalar document is malformed", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		service := NewService(staticKey{}, WithMetrics(m))

		_, err := service.Normalize(ctx, document.NewString("credential"))

		assert.ErrorIs(t, err, vcerr.ErrMalformedDocument)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(OperationNormalize, "MalformedDocument")))
	})
}

func TestService_Sign(t *testing.T) {
	ctx := context.Background()

	t.Run("signs with the configured defaults", func(t *testing.T) {
		key := secp256k1Key(t)
		p := processor.NewProcessor()
		service := NewService(staticKey{key: key}, WithProcessor(p))
		doc := parseDoc(t, credentialDoc)

		signed, err := service.Sign(ctx, SignRequest{Document: doc, VerificationMethod: verificationMethod})

		require.NoError(t, err)
		assert.Equal(t, []string{"@context", "id", "type", "proof"}, memberKeys(signed))
		assert.Equal(t, []string{"@context", "id", "type"}, memberKeys(doc))
		result := signedProof(t, signed)
		assert.Equal(t, proof.JsonWebSignature2020, result.Type)
		assert.Equal(t, proof.AssertionMethod, result.ProofPurpose)
		assert.Equal(t, verificationMethod, result.VerificationMethod)
		assert.NotEmpty(t, result.JWS)
		assert.NoError(t, proof.NewSigner(p).Verify(ctx, signed, result, key.Family(), key.Public()))
	})
	t.Run("request options override defaults", func(t *testing.T) {
		key := p256Key(t)
		service := NewService(staticKey{key: key}, WithDefaults(proof.JsonWebSignature2020, proof.Authentication))

		signed, err := service.Sign(ctx, SignRequest{
			Document:           parseDoc(t, credentialDoc),
			VerificationMethod: verificationMethod,
			Options:            dto.ProofOptions{Type: proof.DataIntegrityProof, Challenge: "abc"},
		})

		require.NoError(t, err)
		result := signedProof(t, signed)
		assert.Equal(t, proof.DataIntegrityProof, result.Type)
		assert.Equal(t, proof.CryptosuiteECDSA, result.Cryptosuite)
		assert.Equal(t, proof.Authentication, result.ProofPurpose)
		assert.Equal(t, "abc", result.Challenge)
		assert.NotEmpty(t, result.ProofValue)
	})
	t.Run("missing key file", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		keys := keystore.NewFileKey(filepath.Join(t.TempDir(), "privkey.pem"))
		service := NewService(keys, WithMetrics(m))

		_, err := service.Sign(ctx, SignRequest{Document: parseDoc(t, credentialDoc), VerificationMethod: verificationMethod})

		assert.ErrorIs(t, err, vcerr.ErrKeyFileUnavailable)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(OperationSign, "KeyFileUnavailable")))
	})
	t.Run("key from file", func(t *testing.T) {
		key := secp256k1Key(t)
		encoded, err := crypto.PrivateKeyHex(key)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "privkey.pem")
		require.NoError(t, os.WriteFile(path, []byte(encoded), 0o600))
		service := NewService(keystore.NewFileKey(path))

		signed, err := service.Sign(ctx, SignRequest{Document: parseDoc(t, credentialDoc), VerificationMethod: verificationMethod})

		require.NoError(t, err)
		assert.NotEmpty(t, signedProof(t, signed).JWS)
	})
	t.Run("existing proof becomes a proof set", func(t *testing.T) {
		key := secp256k1Key(t)
		service := NewService(staticKey{key: key})
		once, err := service.Sign(ctx, SignRequest{Document: parseDoc(t, credentialDoc), VerificationMethod: verificationMethod})
		require.NoError(t, err)

		twice, err := service.Sign(ctx, SignRequest{Document: once, VerificationMethod: verificationMethod})

		require.NoError(t, err)
		proofs, err := proof.Proofs(twice)
		require.NoError(t, err)
		assert.Len(t, proofs, 2)
	})
	t.Run("conflicting proof field", func(t *testing.T) {
		service := NewService(staticKey{key: secp256k1Key(t)})
		doc := parseDoc(t, `{"@context":"https://www.w3.org/2018/credentials/v1","type":"VerifiableCredential","proof":"signed"}`)

		_, err := service.Sign(ctx, SignRequest{Document: doc, VerificationMethod: verificationMethod})

		assert.ErrorIs(t, err, vcerr.ErrConflictingProofField)
	})
	t.Run("verification method check", func(t *testing.T) {
		key := secp256k1Key(t)
		var checked string
		checker := checkerFunc(func(_ context.Context, k *crypto.KeyMaterial, vm string) error {
			assert.Same(t, key, k)
			checked = vm
			return nil
		})
		service := NewService(staticKey{key: key}, WithVerificationMethodChecker(checker))

		_, err := service.Sign(ctx, SignRequest{Document: parseDoc(t, credentialDoc), VerificationMethod: verificationMethod})

		require.NoError(t, err)
		assert.Equal(t, verificationMethod, checked)
	})
	t.Run("verification method mismatch", func(t *testing.T) {
		checker := checkerFunc(func(context.Context, *crypto.KeyMaterial, string) error {
			return vcerr.New(vcerr.InvalidVerificationMethod, "private key does not match")
		})
		service := NewService(staticKey{key: secp256k1Key(t)}, WithVerificationMethodChecker(checker))

		_, err := service.Sign(ctx, SignRequest{Document: parseDoc(t, credentialDoc), VerificationMethod: verificationMethod})

		assert.ErrorIs(t, err, vcerr.ErrInvalidVerificationMethod)
	})
	t.Run("invalid input", func(t *testing.T) {
		service := NewService(staticKey{err: errors.New("key must not be loaded")})

		testCases := []struct {
			name    string
			request SignRequest
		}{
			{"no document", SignRequest{VerificationMethod: verificationMethod}},
			{"array document", SignRequest{Document: parseDoc(t, `[`+credentialDoc+`]`), VerificationMethod: verificationMethod}},
			{"no verification method", SignRequest{Document: parseDoc(t, credentialDoc)}},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := service.Sign(ctx, tc.request)

				assert.ErrorIs(t, err, vcerr.ErrMalformedDocument)
			})
		}
	})
}

func TestService_KeyInfo(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		service := NewService(staticKey{key: p256Key(t)})

		info, err := service.KeyInfo()

		require.NoError(t, err)
		assert.Equal(t, "P-256", info.Family)
		assert.Equal(t, "ES256", info.Algorithm)
		assert.Equal(t, "EC", info.PublicJWK.Kty)
		assert.Equal(t, "P-256", info.PublicJWK.Crv)
	})
	t.Run("missing key file", func(t *testing.T) {
		service := NewService(keystore.NewFileKey(filepath.Join(t.TempDir(), "absent.pem")))

		_, err := service.KeyInfo()

		assert.ErrorIs(t, err, vcerr.ErrKeyFileUnavailable)
	})
}

func memberKeys(v *document.Value) []string {
	keys := make([]string, 0, len(v.Members))
	for _, m := range v.Members {
		keys = append(keys, m.Key)
	}
	return keys
}
