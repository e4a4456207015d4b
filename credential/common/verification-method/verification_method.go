package verificationmethod

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/model"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

// maxDocumentSize bounds the resolver response body.
const maxDocumentSize = 1 << 20

// Resolver is a client for resolving DIDs from a specific endpoint.
type Resolver struct {
	baseURL string
	client  *http.Client
}

// NewResolver creates a new DID resolver with a given base URL.
func NewResolver(baseURL string) *Resolver {
	return &Resolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ResolveToDoc fetches and parses a DID document from the resolver endpoint.
// Both a bare DID document and a resolution result wrapping it in "didDocument" are accepted.
func (r *Resolver) ResolveToDoc(ctx context.Context, did string) (*model.DIDDocument, error) {
	apiURL := r.baseURL + "/" + url.PathEscape(did)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create DID resolver request: %w", err)
	}
	req.Header.Set("Accept", "application/did+ld+json, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request to DID resolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, vcerr.Newf(vcerr.InvalidVerificationMethod, "DID %s could not be resolved", did)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DID resolver API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from DID resolver: %w", err)
	}

	var envelope struct {
		DIDDocument *model.DIDDocument `json:"didDocument"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.DIDDocument != nil {
		return envelope.DIDDocument, nil
	}
	var doc model.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document JSON: %w", err)
	}
	return &doc, nil
}

// GetDIDFromVerificationMethod extracts the DID from a verification method URL.
func GetDIDFromVerificationMethod(verificationMethod string) (string, error) {
	if verificationMethod == "" {
		return "", fmt.Errorf("verification method is empty")
	}

	didPart, _, found := strings.Cut(verificationMethod, "#")
	if !found || didPart == "" {
		return "", fmt.Errorf("invalid verification method URL, could not extract DID: %s", verificationMethod)
	}
	if !strings.HasPrefix(didPart, "did:") {
		return "", fmt.Errorf("extracted DID '%s' is invalid, must start with 'did:'", didPart)
	}
	return didPart, nil
}

// GetVerificationMethod resolves the DID of verificationMethod and returns the matching entry.
func (r *Resolver) GetVerificationMethod(ctx context.Context, verificationMethod string) (*model.VerificationMethodEntry, error) {
	did, err := GetDIDFromVerificationMethod(verificationMethod)
	if err != nil {
		return nil, vcerr.Wrap(vcerr.InvalidVerificationMethod, err, "invalid verification method")
	}
	doc, err := r.ResolveToDoc(ctx, did)
	if err != nil {
		return nil, err
	}
	_, fragment, _ := strings.Cut(verificationMethod, "#")
	for i, vm := range doc.VerificationMethod {
		// relative ids ("#key-1") are allowed in DID documents
		if vm.ID == verificationMethod || vm.ID == "#"+fragment {
			return &doc.VerificationMethod[i], nil
		}
	}
	return nil, vcerr.Newf(vcerr.InvalidVerificationMethod, "verification method '%s' not found in DID document", verificationMethod)
}

// CheckVerificationMethod verifies that key is the private half of the public key
// published for verificationMethod. A mismatch is vcerr.InvalidVerificationMethod.
func (r *Resolver) CheckVerificationMethod(ctx context.Context, key *crypto.KeyMaterial, verificationMethod string) error {
	vm, err := r.GetVerificationMethod(ctx, verificationMethod)
	if err != nil {
		return err
	}

	var match bool
	switch {
	case vm.PublicKeyJwk != nil:
		match, err = crypto.MatchesJWK(key, vm.PublicKeyJwk)
	case vm.PublicKeyHex != "":
		match, err = crypto.MatchesPublicKeyHex(key, vm.PublicKeyHex)
	default:
		return vcerr.Newf(vcerr.InvalidVerificationMethod, "verification method '%s' has no supported public key encoding", verificationMethod)
	}
	if err != nil {
		return vcerr.Wrap(vcerr.InvalidVerificationMethod, err, "unable to compare public keys")
	}
	if !match {
		return vcerr.Newf(vcerr.InvalidVerificationMethod, "private key does not match verification method '%s'", verificationMethod)
	}
	return nil
}
