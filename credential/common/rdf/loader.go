package rdf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/piprate/json-gold/ld"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

//go:embed contexts
var embeddedContexts embed.FS

// CredentialsV1Context is the W3C Verifiable Credentials v1 context URL.
const CredentialsV1Context = "https://www.w3.org/2018/credentials/v1"

const defaultFetchTimeout = 10 * time.Second

// ErrContextNotAllowed is returned when a context URL is neither embedded nor on the allow list.
var ErrContextNotAllowed = errors.New("context not on the remote allow list")

// LoaderConfig configures which JSON-LD contexts may be resolved.
type LoaderConfig struct {
	// AllowUnlisted permits fetching any http(s) context.
	AllowUnlisted bool `koanf:"allowunlisted"`
	// RemoteAllowList lists context URLs that may be fetched over the network.
	RemoteAllowList []string `koanf:"remoteallowlist"`
	// LocalMapping maps context URLs to paths in the embedded filesystem.
	LocalMapping map[string]string `koanf:"-"`
	// FetchTimeout bounds a single remote context fetch.
	FetchTimeout time.Duration `koanf:"fetchtimeout"`
}

// DefaultLoaderConfig serves the embedded contexts only.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		RemoteAllowList: []string{},
		FetchTimeout:    defaultFetchTimeout,
		LocalMapping: map[string]string{
			CredentialsV1Context: "contexts/credentials-v1.jsonld",
		},
	}
}

// NewContextLoader builds the loader chain: mapping to embedded files, a cache,
// the embedded filesystem and finally the network for http(s) URLs.
// Unless AllowUnlisted is set only mapped and allow-listed URLs pass.
func NewContextLoader(config LoaderConfig) ld.DocumentLoader {
	timeout := config.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	var loader ld.DocumentLoader = &mappedLoader{
		mapping: config.LocalMapping,
		next: newCachingLoader(&embeddedLoader{
			fs:   embeddedContexts,
			next: &remoteOnlyLoader{next: ld.NewDefaultDocumentLoader(client)},
		}),
	}
	if config.AllowUnlisted {
		return loader
	}
	allowed := make(map[string]struct{}, len(config.RemoteAllowList)+len(config.LocalMapping))
	for _, u := range config.RemoteAllowList {
		allowed[u] = struct{}{}
	}
	for u := range config.LocalMapping {
		allowed[u] = struct{}{}
	}
	return &filteredLoader{allowed: allowed, next: loader}
}

type filteredLoader struct {
	allowed map[string]struct{}
	next    ld.DocumentLoader
}

func (f *filteredLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	if _, ok := f.allowed[u]; !ok {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, fmt.Errorf("%w: %s", ErrContextNotAllowed, u))
	}
	return f.next.LoadDocument(u)
}

type mappedLoader struct {
	mapping map[string]string
	next    ld.DocumentLoader
}

// LoadDocument loads the mapped location of u, keeping u as the document URL.
func (m *mappedLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	target, ok := m.mapping[u]
	if !ok {
		return m.next.LoadDocument(u)
	}
	doc, err := m.next.LoadDocument(target)
	if err != nil {
		return nil, err
	}
	return &ld.RemoteDocument{DocumentURL: u, Document: doc.Document, ContextURL: doc.ContextURL}, nil
}

// cachingLoader keeps successfully loaded documents. Concurrent loads of the same
// URL share one fetch; loads of different URLs do not wait on each other.
type cachingLoader struct {
	next ld.DocumentLoader

	mu    sync.RWMutex
	cache map[string]*ld.RemoteDocument

	loads singleflight.Group
}

func newCachingLoader(next ld.DocumentLoader) *cachingLoader {
	return &cachingLoader{next: next, cache: map[string]*ld.RemoteDocument{}}
}

func (c *cachingLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	c.mu.RLock()
	doc, ok := c.cache[u]
	c.mu.RUnlock()
	if ok {
		return doc, nil
	}

	result, err, _ := c.loads.Do(u, func() (interface{}, error) {
		doc, err := c.next.LoadDocument(u)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[u] = doc
		c.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ld.RemoteDocument), nil
}

type embeddedLoader struct {
	fs   fs.FS
	next ld.DocumentLoader
}

// LoadDocument reads non-http URLs from the embedded filesystem and passes everything else on.
func (e *embeddedLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, fmt.Sprintf("error parsing URL: %s", u))
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		return e.next.LoadDocument(u)
	}
	file, err := e.fs.Open(u)
	if err != nil {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, err)
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, err)
	}
	if stat.IsDir() {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, errors.New("document can not be a directory"))
	}
	doc, err := ld.DocumentFromReader(file)
	if err != nil {
		return nil, err
	}
	return &ld.RemoteDocument{DocumentURL: u, Document: doc}, nil
}

// remoteOnlyLoader keeps the default loader from reading the local filesystem.
type remoteOnlyLoader struct {
	next ld.DocumentLoader
}

func (r *remoteOnlyLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	parsed, err := url.Parse(u)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, fmt.Sprintf("refusing to load non-http document: %s", u))
	}
	return r.next.LoadDocument(u)
}
