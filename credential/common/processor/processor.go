// Package processor runs a JSON-LD document through extraction, canonicalization and digesting.
package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/piprate/json-gold/ld"

	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/rdf"
	"github.com/pilacorp/go-vc-issuer/credential/common/urdna2015"
)

// DigestSize is the size of a SHA-256 digest in bytes.
const DigestSize = sha256.Size

// Digest is the SHA-256 hash of a canonical form.
type Digest [DigestSize]byte

// Hex returns the lowercase hex encoding of d.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns a copy of d as a slice.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, d[:])
	return out
}

// ComputeDigest hashes the newline terminated lines of form.
func ComputeDigest(form rdf.CanonicalForm) Digest {
	return sha256.Sum256(form.Bytes())
}

// ProcessorOpt represents an option for the processor.
type ProcessorOpt func(*ProcessorOptions)

// ProcessorOptions holds the configuration of a Processor.
type ProcessorOptions struct {
	documentLoader ld.DocumentLoader
	budget         urdna2015.Budget
}

// WithDocumentLoader sets the loader used to resolve contexts.
func WithDocumentLoader(loader ld.DocumentLoader) ProcessorOpt {
	return func(p *ProcessorOptions) {
		p.documentLoader = loader
	}
}

// WithBudget bounds the blank node labelling search.
func WithBudget(budget urdna2015.Budget) ProcessorOpt {
	return func(p *ProcessorOptions) {
		p.budget = budget
	}
}

// Processor is safe for concurrent use.
type Processor struct {
	extractor     *rdf.Extractor
	canonicalizer *urdna2015.Canonicalizer
}

// NewProcessor creates a Processor. Without options it resolves the embedded contexts only.
func NewProcessor(opts ...ProcessorOpt) *Processor {
	options := &ProcessorOptions{budget: urdna2015.DefaultBudget()}
	for _, opt := range opts {
		opt(options)
	}
	return &Processor{
		extractor:     rdf.NewExtractor(options.documentLoader),
		canonicalizer: urdna2015.New(options.budget),
	}
}

// CanonicalizeDocument returns the canonical N-Quads form of doc.
func (p *Processor) CanonicalizeDocument(ctx context.Context, doc *document.Value) (rdf.CanonicalForm, error) {
	dataset, err := p.extractor.Extract(doc)
	if err != nil {
		return rdf.CanonicalForm{}, err
	}
	return p.canonicalizer.Canonicalize(ctx, dataset)
}

// DigestDocument returns the digest of the canonical form of doc.
func (p *Processor) DigestDocument(ctx context.Context, doc *document.Value) (Digest, error) {
	form, err := p.CanonicalizeDocument(ctx, doc)
	if err != nil {
		return Digest{}, err
	}
	return ComputeDigest(form), nil
}
