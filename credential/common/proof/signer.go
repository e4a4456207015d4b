// Package proof builds Linked Data proofs over canonical document digests and
// attaches them to credentials.
package proof

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/mr-tron/base58"

	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
	"github.com/pilacorp/go-vc-issuer/credential/common/processor"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

const (
	securityVocab = "https://w3id.org/security#"
	xsdNamespace  = "http://www.w3.org/2001/XMLSchema#"
)

// optionsContext maps proof option terms into the security vocabulary so the
// options can be canonicalized like any other JSON-LD document.
var optionsContext = document.NewObject(
	document.Member{Key: "@vocab", Value: document.NewString(securityVocab)},
	document.Member{Key: "id", Value: document.NewString("@id")},
	document.Member{Key: "type", Value: document.NewString("@type")},
	document.Member{Key: "created", Value: document.NewObject(
		document.Member{Key: "@id", Value: document.NewString("http://purl.org/dc/terms/created")},
		document.Member{Key: "@type", Value: document.NewString(xsdNamespace + "dateTime")},
	)},
	document.Member{Key: "verificationMethod", Value: document.NewObject(
		document.Member{Key: "@id", Value: document.NewString(securityVocab + "verificationMethod")},
		document.Member{Key: "@type", Value: document.NewString("@id")},
	)},
	document.Member{Key: "proofPurpose", Value: document.NewObject(
		document.Member{Key: "@id", Value: document.NewString(securityVocab + "proofPurpose")},
		document.Member{Key: "@type", Value: document.NewString("@vocab")},
	)},
	document.Member{Key: "cryptosuite", Value: document.NewString(securityVocab + "cryptosuite")},
	document.Member{Key: "challenge", Value: document.NewString(securityVocab + "challenge")},
	document.Member{Key: "domain", Value: document.NewString(securityVocab + "domain")},
)

// jwsHeader is the protected header of an unencoded detached JWS (RFC 7797).
type jwsHeader struct {
	Alg  string   `json:"alg"`
	B64  bool     `json:"b64"`
	Crit []string `json:"crit"`
}

// Signer produces proofs. It is safe for concurrent use.
type Signer struct {
	processor *processor.Processor
	now       func() time.Time
}

// NewSigner returns a Signer canonicalizing proof options with p.
func NewSigner(p *processor.Processor) *Signer {
	return &Signer{processor: p, now: time.Now}
}

// Sign builds a proof over a document digest. The proof options are
// canonicalized and hashed, and that hash is signed together with the digest.
func (s *Signer) Sign(ctx context.Context, digest processor.Digest, key *crypto.KeyMaterial, options dto.ProofOptions) (*dto.Proof, error) {
	options, err := s.complete(options)
	if err != nil {
		return nil, err
	}
	selected, err := resolveSuite(options.Type, options.Cryptosuite, key.Family())
	if err != nil {
		return nil, err
	}
	options.Cryptosuite = selected.cryptosuite

	sign, err := crypto.Signer(key)
	if err != nil {
		return nil, err
	}
	tbs, err := s.signingInput(ctx, digest, options)
	if err != nil {
		return nil, err
	}

	proof := &dto.Proof{
		Type:               options.Type,
		Created:            options.Created,
		VerificationMethod: options.VerificationMethod,
		ProofPurpose:       options.ProofPurpose,
		Cryptosuite:        options.Cryptosuite,
		Challenge:          options.Challenge,
		Domain:             options.Domain,
	}
	switch selected.encoding {
	case detachedJWS:
		alg, err := crypto.Algorithm(key.Family())
		if err != nil {
			return nil, err
		}
		header, err := encodeHeader(alg.String())
		if err != nil {
			return nil, err
		}
		signature, err := sign(append([]byte(header+"."), tbs...))
		if err != nil {
			return nil, vcerr.Wrap(vcerr.SigningFailure, err, "signing failed")
		}
		proof.JWS = header + ".." + base64.RawURLEncoding.EncodeToString(signature)
	case multibase:
		signature, err := sign(tbs)
		if err != nil {
			return nil, vcerr.Wrap(vcerr.SigningFailure, err, "signing failed")
		}
		proof.ProofValue = "z" + base58.Encode(signature)
	}
	return proof, nil
}

// complete validates options and fills in defaults.
func (s *Signer) complete(options dto.ProofOptions) (dto.ProofOptions, error) {
	if options.VerificationMethod == "" {
		return options, vcerr.New(vcerr.MalformedDocument, "verification method is required")
	}
	if u, err := url.Parse(options.VerificationMethod); err != nil || u.Scheme == "" {
		return options, vcerr.Newf(vcerr.MalformedDocument, "verification method %q is not an absolute IRI", options.VerificationMethod)
	}
	if options.Type == "" {
		options.Type = JsonWebSignature2020
	}
	if options.Type != DataIntegrityProof {
		options.Cryptosuite = ""
	}
	if options.ProofPurpose == "" {
		options.ProofPurpose = AssertionMethod
	}
	if options.Created == "" {
		options.Created = s.now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, options.Created); err != nil {
		return options, vcerr.Newf(vcerr.MalformedDocument, "created %q is not an RFC 3339 timestamp", options.Created)
	}
	return options, nil
}

// signingInput returns SHA-256(canonical options) || digest.
func (s *Signer) signingInput(ctx context.Context, digest processor.Digest, options dto.ProofOptions) ([]byte, error) {
	optionsDigest, err := s.processor.DigestDocument(ctx, optionsDocument(options))
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize proof options: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(2 * processor.DigestSize)
	buf.Write(optionsDigest[:])
	buf.Write(digest[:])
	return buf.Bytes(), nil
}

func optionsDocument(options dto.ProofOptions) *document.Value {
	doc := document.NewObject(
		document.Member{Key: "@context", Value: optionsContext},
		document.Member{Key: "type", Value: document.NewString(options.Type)},
		document.Member{Key: "created", Value: document.NewString(options.Created)},
		document.Member{Key: "verificationMethod", Value: document.NewString(options.VerificationMethod)},
		document.Member{Key: "proofPurpose", Value: document.NewString(options.ProofPurpose)},
	)
	optional := []struct{ key, value string }{
		{"cryptosuite", options.Cryptosuite},
		{"challenge", options.Challenge},
		{"domain", options.Domain},
	}
	for _, o := range optional {
		if o.value != "" {
			doc = doc.With(o.key, document.NewString(o.value))
		}
	}
	return doc
}

func encodeHeader(alg string) (string, error) {
	data, err := json.Marshal(jwsHeader{Alg: alg, B64: false, Crit: []string{"b64"}})
	if err != nil {
		return "", fmt.Errorf("failed to encode JWS header: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}
