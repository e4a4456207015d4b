package proof

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
	"github.com/pilacorp/go-vc-issuer/credential/common/processor"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

const (
	credentialDoc      = `{"@context":"https://www.w3.org/2018/credentials/v1","id":"urn:uuid:1","type":"VerifiableCredential"}`
	verificationMethod = "did:example:issuer#key-1"
)

func newKey(t *testing.T, family crypto.Family) *crypto.KeyMaterial {
	t.Helper()
	var raw interface{}
	var err error
	switch family {
	case crypto.FamilyP256:
		raw, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case crypto.FamilyP384:
		raw, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case crypto.FamilySecp256k1:
		raw, err = ethcrypto.GenerateKey()
	case crypto.FamilyEd25519:
		_, raw, err = ed25519.GenerateKey(rand.Reader)
	case crypto.FamilyRSA:
		raw, err = rsa.GenerateKey(rand.Reader, 2048)
	default:
		t.Fatalf("no generator for %s", family)
	}
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

func newTestSigner() *Signer {
	s := NewSigner(processor.NewProcessor())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600)) }
	return s
}

func signDocument(t *testing.T, s *Signer, doc *document.Value, key *crypto.KeyMaterial, options dto.ProofOptions) *dto.Proof {
	t.Helper()
	digest, err := s.processor.DigestDocument(context.Background(), doc.Without(ProofField))
	require.NoError(t, err)
	p, err := s.Sign(context.Background(), digest, key, options)
	require.NoError(t, err)
	return p
}

func TestSigner_SignAndVerify(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		family      crypto.Family
		proofType   string
		cryptosuite string
	}{
		{"JsonWebSignature2020 P-256", crypto.FamilyP256, JsonWebSignature2020, ""},
		{"JsonWebSignature2020 secp256k1", crypto.FamilySecp256k1, JsonWebSignature2020, ""},
		{"JsonWebSignature2020 Ed25519", crypto.FamilyEd25519, JsonWebSignature2020, ""},
		{"JsonWebSignature2020 RSA", crypto.FamilyRSA, JsonWebSignature2020, ""},
		{"EcdsaSecp256k1Signature2019", crypto.FamilySecp256k1, EcdsaSecp256k1Signature2019, ""},
		{"DataIntegrityProof P-384", crypto.FamilyP384, DataIntegrityProof, ""},
		{"DataIntegrityProof Ed25519", crypto.FamilyEd25519, DataIntegrityProof, CryptosuiteEdDSA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSigner()
			key := newKey(t, tt.family)
			doc := parseDoc(t, credentialDoc)

			p := signDocument(t, s, doc, key, dto.ProofOptions{
				Type:               tt.proofType,
				Cryptosuite:        tt.cryptosuite,
				VerificationMethod: verificationMethod,
			})

			assert.Equal(t, tt.proofType, p.Type)
			assert.Equal(t, "2024-05-01T10:00:00Z", p.Created)
			assert.Equal(t, AssertionMethod, p.ProofPurpose)
			if tt.proofType == DataIntegrityProof {
				assert.True(t, strings.HasPrefix(p.ProofValue, "z"))
				assert.Empty(t, p.JWS)
				assert.NotEmpty(t, p.Cryptosuite)
			} else {
				assert.NotEmpty(t, p.JWS)
				assert.Empty(t, p.ProofValue)
			}

			signed, err := Attach(doc, p)
			require.NoError(t, err)
			assert.NoError(t, s.Verify(ctx, signed, *p, key.Family(), key.Public()))
		})
	}
}

func TestSigner_Sign_JWSHeader(t *testing.T) {
	s := newTestSigner()
	p := signDocument(t, s, parseDoc(t, credentialDoc), newKey(t, crypto.FamilyP256), dto.ProofOptions{VerificationMethod: verificationMethod})

	assert.Equal(t, JsonWebSignature2020, p.Type)
	parts := strings.Split(p.JWS, ".")
	require.Len(t, parts, 3)
	assert.Empty(t, parts[1])
	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"alg":"ES256","b64":false,"crit":["b64"]}`, string(header))
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Len(t, signature, 64)
}

func TestSigner_Verify_Tampering(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	key := newKey(t, crypto.FamilyP256)
	doc := parseDoc(t, `{"@context":{"@vocab":"http://ex/"},"@id":"urn:a","name":"alice"}`)
	p := signDocument(t, s, doc, key, dto.ProofOptions{VerificationMethod: verificationMethod})

	t.Run("changed document", func(t *testing.T) {
		changed := parseDoc(t, `{"@context":{"@vocab":"http://ex/"},"@id":"urn:a","name":"mallory"}`)

		err := s.Verify(ctx, changed, *p, key.Family(), key.Public())

		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("reordered document still verifies", func(t *testing.T) {
		reordered := parseDoc(t, `{"name":"alice","@id":"urn:a","@context":{"@vocab":"http://ex/"}}`)

		assert.NoError(t, s.Verify(ctx, reordered, *p, key.Family(), key.Public()))
	})

	t.Run("changed metadata", func(t *testing.T) {
		altered := *p
		altered.Created = "2030-01-01T00:00:00Z"

		err := s.Verify(ctx, doc, altered, key.Family(), key.Public())

		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("other verification method", func(t *testing.T) {
		altered := *p
		altered.VerificationMethod = "did:example:other#key-1"

		err := s.Verify(ctx, doc, altered, key.Family(), key.Public())

		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("other key", func(t *testing.T) {
		other := newKey(t, crypto.FamilyP256)

		err := s.Verify(ctx, doc, *p, other.Family(), other.Public())

		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestSigner_Sign_Errors(t *testing.T) {
	s := newTestSigner()
	digest := processor.Digest{}
	tests := []struct {
		name    string
		family  crypto.Family
		options dto.ProofOptions
		kind    vcerr.Kind
	}{
		{"missing verification method", crypto.FamilyP256, dto.ProofOptions{}, vcerr.MalformedDocument},
		{"relative verification method", crypto.FamilyP256, dto.ProofOptions{VerificationMethod: "key-1"}, vcerr.MalformedDocument},
		{"bad created", crypto.FamilyP256, dto.ProofOptions{VerificationMethod: verificationMethod, Created: "yesterday"}, vcerr.MalformedDocument},
		{"unknown proof type", crypto.FamilyP256, dto.ProofOptions{VerificationMethod: verificationMethod, Type: "Unknown2099"}, vcerr.UnsupportedKeyType},
		{"secp256k1 suite with P-256 key", crypto.FamilyP256, dto.ProofOptions{VerificationMethod: verificationMethod, Type: EcdsaSecp256k1Signature2019}, vcerr.UnsupportedKeyType},
		{"data integrity with RSA key", crypto.FamilyRSA, dto.ProofOptions{VerificationMethod: verificationMethod, Type: DataIntegrityProof}, vcerr.UnsupportedKeyType},
		{"cryptosuite mismatch", crypto.FamilyP256, dto.ProofOptions{VerificationMethod: verificationMethod, Type: DataIntegrityProof, Cryptosuite: CryptosuiteEdDSA}, vcerr.UnsupportedKeyType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sign(context.Background(), digest, newKey(t, tt.family), tt.options)

			require.Error(t, err)
			assert.Equal(t, tt.kind, vcerr.KindOf(err))
		})
	}
}

func TestSigner_Sign_KeepsCallerOptions(t *testing.T) {
	s := newTestSigner()

	p := signDocument(t, s, parseDoc(t, credentialDoc), newKey(t, crypto.FamilyEd25519), dto.ProofOptions{
		Type:               JsonWebSignature2020,
		Created:            "2021-01-01T00:00:00Z",
		VerificationMethod: verificationMethod,
		ProofPurpose:       Authentication,
		Cryptosuite:        "ignored",
		Challenge:          "abc",
		Domain:             "example.com",
	})

	assert.Equal(t, "2021-01-01T00:00:00Z", p.Created)
	assert.Equal(t, Authentication, p.ProofPurpose)
	assert.Empty(t, p.Cryptosuite)
	assert.Equal(t, "abc", p.Challenge)
	assert.Equal(t, "example.com", p.Domain)
}
