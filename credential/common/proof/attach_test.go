package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

var testProof = &dto.Proof{
	Type:               JsonWebSignature2020,
	Created:            "2024-05-01T10:00:00Z",
	VerificationMethod: "did:example:issuer#key-1",
	ProofPurpose:       AssertionMethod,
	JWS:                "eyJhbGciOiJFUzI1NiJ9..c2ln",
}

const serializedTestProof = `{"type":"JsonWebSignature2020","created":"2024-05-01T10:00:00Z","verificationMethod":"did:example:issuer#key-1","proofPurpose":"assertionMethod","jws":"eyJhbGciOiJFUzI1NiJ9..c2ln"}`

func marshal(t *testing.T, v *document.Value) string {
	t.Helper()
	data, err := v.MarshalJSON()
	require.NoError(t, err)
	return string(data)
}

func TestAttach(t *testing.T) {
	t.Run("adds proof after the other fields", func(t *testing.T) {
		doc := parseDoc(t, `{"b":1,"a":"x"}`)

		signed, err := Attach(doc, testProof)

		require.NoError(t, err)
		assert.Equal(t, `{"b":1,"a":"x","proof":`+serializedTestProof+`}`, marshal(t, signed))
		assert.Equal(t, `{"b":1,"a":"x"}`, marshal(t, doc))
	})

	t.Run("existing proof object becomes a proof set", func(t *testing.T) {
		doc := parseDoc(t, `{"a":1,"proof":{"type":"Other"}}`)

		signed, err := Attach(doc, testProof)

		require.NoError(t, err)
		assert.Equal(t, `{"a":1,"proof":[{"type":"Other"},`+serializedTestProof+`]}`, marshal(t, signed))
		assert.Equal(t, `{"a":1,"proof":{"type":"Other"}}`, marshal(t, doc))
	})

	t.Run("existing proof set is extended", func(t *testing.T) {
		doc := parseDoc(t, `{"proof":[{"type":"A"},{"type":"B"}]}`)

		signed, err := Attach(doc, testProof)

		require.NoError(t, err)
		assert.Len(t, signed.Get("proof").Items, 3)
		assert.Len(t, doc.Get("proof").Items, 2)
	})

	conflicts := []string{
		`{"proof":"signed"}`,
		`{"proof":null}`,
		`{"proof":42}`,
		`{"proof":[{"type":"A"},"x"]}`,
	}
	for _, input := range conflicts {
		t.Run("conflict "+input, func(t *testing.T) {
			_, err := Attach(parseDoc(t, input), testProof)

			assert.ErrorIs(t, err, vcerr.ErrConflictingProofField)
		})
	}

	t.Run("not an object", func(t *testing.T) {
		_, err := Attach(parseDoc(t, `[{"a":1}]`), testProof)

		assert.ErrorIs(t, err, vcerr.ErrMalformedDocument)
	})

	t.Run("nil proof", func(t *testing.T) {
		_, err := Attach(parseDoc(t, `{}`), nil)

		assert.Error(t, err)
	})
}

func TestProofs(t *testing.T) {
	doc := parseDoc(t, `{"proof":[`+serializedTestProof+`,{"type":"DataIntegrityProof","created":"c","verificationMethod":"v","proofPurpose":"p","cryptosuite":"eddsa-rdfc-2022","proofValue":"z1"}]}`)

	proofs, err := Proofs(doc)

	require.NoError(t, err)
	require.Len(t, proofs, 2)
	assert.Equal(t, *testProof, proofs[0])
	assert.Equal(t, "eddsa-rdfc-2022", proofs[1].Cryptosuite)
	assert.Equal(t, "z1", proofs[1].ProofValue)

	none, err := Proofs(parseDoc(t, `{}`))
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = Proofs(parseDoc(t, `{"proof":{"type":"x"}}`))
	assert.Error(t, err)
}
