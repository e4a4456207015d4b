package proof

import (
	"fmt"

	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

// ProofField is the document member holding proofs.
const ProofField = "proof"

// Attach returns a copy of doc with proof added under "proof". An existing
// proof object or array of proof objects becomes a proof set; any other
// existing value is vcerr.ConflictingProofField. doc itself is not modified.
func Attach(doc *document.Value, proof *dto.Proof) (*document.Value, error) {
	if doc == nil || doc.Kind != document.Object {
		return nil, vcerr.New(vcerr.MalformedDocument, "only a JSON object can carry a proof")
	}
	if proof == nil {
		return nil, fmt.Errorf("proof is nil")
	}
	serialized := SerializeProof(*proof)

	existing := doc.Get(ProofField)
	if existing == nil {
		return doc.With(ProofField, serialized), nil
	}
	switch existing.Kind {
	case document.Object:
		return doc.With(ProofField, document.NewArray(existing, serialized)), nil
	case document.Array:
		items := make([]*document.Value, 0, len(existing.Items)+1)
		for _, item := range existing.Items {
			if item.Kind != document.Object {
				return nil, vcerr.Newf(vcerr.ConflictingProofField, "existing proof set holds a %s", item.Kind)
			}
			items = append(items, item)
		}
		return doc.With(ProofField, document.NewArray(append(items, serialized)...)), nil
	}
	return nil, vcerr.Newf(vcerr.ConflictingProofField, "existing proof field is a %s", existing.Kind)
}

// SerializeProof converts a proof into a JSON-LD object with a fixed member order.
func SerializeProof(proof dto.Proof) *document.Value {
	fields := []struct{ key, value string }{
		{"type", proof.Type},
		{"created", proof.Created},
		{"verificationMethod", proof.VerificationMethod},
		{"proofPurpose", proof.ProofPurpose},
		{"cryptosuite", proof.Cryptosuite},
		{"challenge", proof.Challenge},
		{"domain", proof.Domain},
		{"jws", proof.JWS},
		{"proofValue", proof.ProofValue},
	}
	out := document.NewObject()
	for _, f := range fields {
		if f.value != "" {
			out.Members = append(out.Members, document.Member{Key: f.key, Value: document.NewString(f.value)})
		}
	}
	return out
}

// ParseProof converts a single proof object into a Proof struct.
func ParseProof(v *document.Value) (dto.Proof, error) {
	var result dto.Proof
	if v == nil || v.Kind != document.Object {
		return result, fmt.Errorf("failed to parse proof: expected an object")
	}
	required := []struct {
		key    string
		target *string
	}{
		{"type", &result.Type},
		{"created", &result.Created},
		{"verificationMethod", &result.VerificationMethod},
		{"proofPurpose", &result.ProofPurpose},
	}
	for _, r := range required {
		value, ok := v.Get(r.key).StringValue()
		if !ok || value == "" {
			return dto.Proof{}, fmt.Errorf("failed to parse proof: invalid or missing %s field", r.key)
		}
		*r.target = value
	}
	optional := []struct {
		key    string
		target *string
	}{
		{"cryptosuite", &result.Cryptosuite},
		{"challenge", &result.Challenge},
		{"domain", &result.Domain},
		{"jws", &result.JWS},
		{"proofValue", &result.ProofValue},
	}
	for _, o := range optional {
		if value, ok := v.Get(o.key).StringValue(); ok {
			*o.target = value
		}
	}
	return result, nil
}

// Proofs returns the proofs attached to doc.
func Proofs(doc *document.Value) ([]dto.Proof, error) {
	existing := doc.Get(ProofField)
	if existing == nil {
		return nil, nil
	}
	items := []*document.Value{existing}
	if existing.Kind == document.Array {
		items = existing.Items
	}
	proofs := make([]dto.Proof, 0, len(items))
	for _, item := range items {
		p, err := ParseProof(item)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, nil
}
