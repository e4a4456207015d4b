// Package issuer wires the issuing pipeline: a document is extracted to RDF,
// canonicalized, digested, signed with the issuer key and returned with its proof.
package issuer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
	"github.com/pilacorp/go-vc-issuer/credential/common/keystore"
	"github.com/pilacorp/go-vc-issuer/credential/common/model"
	"github.com/pilacorp/go-vc-issuer/credential/common/processor"
	"github.com/pilacorp/go-vc-issuer/credential/common/proof"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
	"github.com/pilacorp/go-vc-issuer/issuer/log"
	"github.com/pilacorp/go-vc-issuer/issuer/metrics"
)

const (
	// OperationNormalize labels the normalize+digest operation.
	OperationNormalize = "normalize"
	// OperationSign labels the sign operation.
	OperationSign = "sign"
)

// VerificationMethodChecker checks that a key belongs to a verification method.
type VerificationMethodChecker interface {
	CheckVerificationMethod(ctx context.Context, key *crypto.KeyMaterial, verificationMethod string) error
}

// SignRequest holds the input of Sign. Empty option fields take the service defaults.
type SignRequest struct {
	Document           *document.Value
	VerificationMethod string
	Options            dto.ProofOptions
}

// KeyInfo describes the loaded issuer key.
type KeyInfo struct {
	Family    string     `json:"family"`
	Algorithm string     `json:"algorithm"`
	PublicJWK *model.JWK `json:"publicKeyJwk"`
}

// Service runs the pipeline. It is safe for concurrent use.
type Service struct {
	processor *processor.Processor
	signer    *proof.Signer
	keys      keystore.KeySource
	checker   VerificationMethodChecker
	defaults  dto.ProofOptions
	metrics   *metrics.Metrics
	logger    *logrus.Entry
}

// Option configures a Service.
type Option func(*Service)

// WithProcessor replaces the default processor (embedded contexts, default budget).
func WithProcessor(p *processor.Processor) Option {
	return func(s *Service) {
		s.processor = p
	}
}

// WithDefaults sets the proof type and purpose used when a request leaves them empty.
func WithDefaults(proofType, proofPurpose string) Option {
	return func(s *Service) {
		s.defaults.Type = proofType
		s.defaults.ProofPurpose = proofPurpose
	}
}

// WithVerificationMethodChecker enables checking the key against the verification method before signing.
func WithVerificationMethodChecker(checker VerificationMethodChecker) Option {
	return func(s *Service) {
		s.checker = checker
	}
}

// WithMetrics records operation outcomes and canonicalization time.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a Service signing with the key supplied by keys.
func NewService(keys keystore.KeySource, opts ...Option) *Service {
	s := &Service{
		keys: keys,
		defaults: dto.ProofOptions{
			Type:         proof.JsonWebSignature2020,
			ProofPurpose: proof.AssertionMethod,
		},
		logger: log.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.processor == nil {
		s.processor = processor.NewProcessor()
	}
	s.signer = proof.NewSigner(s.processor)
	return s
}

// Normalize returns the SHA-256 digest of the URDNA2015 canonical form of doc.
func (s *Service) Normalize(ctx context.Context, doc *document.Value) (processor.Digest, error) {
	digest, err := s.digest(ctx, doc)
	s.record(OperationNormalize, err)
	if err != nil {
		return processor.Digest{}, err
	}
	s.logger.WithField("digest", digest.Hex()).Debug("Document normalized")
	return digest, nil
}

// Sign returns a copy of the request document with a proof made by the issuer key.
// The input document is not modified.
func (s *Service) Sign(ctx context.Context, request SignRequest) (*document.Value, error) {
	signed, err := s.sign(ctx, request)
	s.record(OperationSign, err)
	return signed, err
}

func (s *Service) sign(ctx context.Context, request SignRequest) (*document.Value, error) {
	doc := request.Document
	if doc == nil || doc.Kind != document.Object {
		return nil, vcerr.New(vcerr.MalformedDocument, "only a JSON object can be signed")
	}
	if request.VerificationMethod == "" {
		return nil, vcerr.New(vcerr.MalformedDocument, "verification method is required")
	}

	key, err := s.keys.Key()
	if err != nil {
		return nil, err
	}
	if s.checker != nil {
		if err := s.checker.CheckVerificationMethod(ctx, key, request.VerificationMethod); err != nil {
			return nil, err
		}
	}

	digest, err := s.digest(ctx, doc.Without(proof.ProofField))
	if err != nil {
		return nil, err
	}

	options := request.Options
	options.VerificationMethod = request.VerificationMethod
	if options.Type == "" {
		options.Type = s.defaults.Type
	}
	if options.ProofPurpose == "" {
		options.ProofPurpose = s.defaults.ProofPurpose
	}
	p, err := s.signer.Sign(ctx, digest, key, options)
	if err != nil {
		return nil, err
	}
	signed, err := proof.Attach(doc, p)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"digest":             digest.Hex(),
		"verificationMethod": p.VerificationMethod,
		"proofType":          p.Type,
	}).Debug("Document signed")
	return signed, nil
}

// KeyInfo returns the public part of the loaded issuer key.
func (s *Service) KeyInfo() (*KeyInfo, error) {
	key, err := s.keys.Key()
	if err != nil {
		return nil, err
	}
	jwk, err := crypto.PublicJWK(key)
	if err != nil {
		return nil, vcerr.Wrap(vcerr.UnsupportedKeyType, err, "unable to encode public key")
	}
	alg, err := crypto.Algorithm(key.Family())
	if err != nil {
		return nil, err
	}
	return &KeyInfo{
		Family:    key.Family().String(),
		Algorithm: alg.String(),
		PublicJWK: jwk,
	}, nil
}

func (s *Service) digest(ctx context.Context, doc *document.Value) (processor.Digest, error) {
	start := time.Now()
	digest, err := s.processor.DigestDocument(ctx, doc)
	s.metrics.ObserveCanonicalization(time.Since(start))
	return digest, err
}

func (s *Service) record(operation string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = vcerr.KindOf(err).String()
	}
	s.metrics.IncrementOperation(operation, outcome)
}
