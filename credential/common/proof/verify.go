package proof

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
)

// ErrInvalidSignature is returned when a proof does not verify.
var ErrInvalidSignature = errors.New("invalid proof signature")

// Verify checks proof against the document it was attached to, using the public key of the given family.
// The document digest is computed without the "proof" member.
func (s *Signer) Verify(ctx context.Context, doc *document.Value, proof dto.Proof, family crypto.Family, public interface{}) error {
	if doc == nil || doc.Kind != document.Object {
		return fmt.Errorf("only a JSON object can carry a proof")
	}
	selected, err := resolveSuite(proof.Type, proof.Cryptosuite, family)
	if err != nil {
		return err
	}
	verify, err := crypto.Verifier(family, public)
	if err != nil {
		return err
	}
	digest, err := s.processor.DigestDocument(ctx, doc.Without(ProofField))
	if err != nil {
		return fmt.Errorf("failed to digest document: %w", err)
	}
	tbs, err := s.signingInput(ctx, digest, proof.Options())
	if err != nil {
		return err
	}

	switch selected.encoding {
	case detachedJWS:
		header, signature, err := splitDetachedJWS(proof.JWS)
		if err != nil {
			return err
		}
		alg, err := crypto.Algorithm(family)
		if err != nil {
			return err
		}
		if err := checkHeader(header, alg.String()); err != nil {
			return err
		}
		if err := verify(append([]byte(header+"."), tbs...), signature); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	case multibase:
		if !strings.HasPrefix(proof.ProofValue, "z") {
			return fmt.Errorf("proofValue is not base58btc multibase encoded")
		}
		signature, err := base58.Decode(proof.ProofValue[1:])
		if err != nil {
			return fmt.Errorf("failed to decode proofValue: %w", err)
		}
		if err := verify(tbs, signature); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}
	return nil
}

func splitDetachedJWS(jws string) (string, []byte, error) {
	parts := strings.Split(jws, ".")
	if len(parts) != 3 || parts[1] != "" {
		return "", nil, fmt.Errorf("jws is not a detached JWS")
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode JWS signature: %w", err)
	}
	return parts[0], signature, nil
}

func checkHeader(encoded, alg string) error {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode JWS header: %w", err)
	}
	var header jwsHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("failed to parse JWS header: %w", err)
	}
	if header.Alg != alg {
		return fmt.Errorf("JWS algorithm %s does not match key algorithm %s", header.Alg, alg)
	}
	if header.B64 || len(header.Crit) != 1 || header.Crit[0] != "b64" {
		return fmt.Errorf("JWS must use an unencoded payload")
	}
	return nil
}
