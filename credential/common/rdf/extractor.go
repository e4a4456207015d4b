package rdf

import (
	"fmt"
	"sort"

	"github.com/piprate/json-gold/ld"

	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

const defaultGraphName = "@default"

// Extractor expands JSON-LD documents into quads.
type Extractor struct {
	loader ld.DocumentLoader
}

// NewExtractor returns an Extractor resolving contexts through loader.
// A nil loader falls back to the embedded contexts only.
func NewExtractor(loader ld.DocumentLoader) *Extractor {
	if loader == nil {
		loader = NewContextLoader(DefaultLoaderConfig())
	}
	return &Extractor{loader: loader}
}

// Extract converts doc into its RDF dataset. Failures to resolve a context or
// to interpret the document as JSON-LD are vcerr.MalformedDocument.
func (e *Extractor) Extract(doc *document.Value) (*Dataset, error) {
	if doc == nil || (doc.Kind != document.Object && doc.Kind != document.Array) {
		return nil, vcerr.New(vcerr.MalformedDocument, "JSON-LD document must be an object or an array")
	}
	input, err := doc.ToInterface()
	if err != nil {
		return nil, err
	}

	options := ld.NewJsonLdOptions("")
	options.ProcessingMode = ld.JsonLd_1_1
	options.DocumentLoader = e.loader
	options.ProduceGeneralizedRdf = false

	result, err := ld.NewJsonLdProcessor().ToRDF(input, options)
	if err != nil {
		return nil, vcerr.Wrap(vcerr.MalformedDocument, err, "unable to expand JSON-LD document")
	}
	dataset, ok := result.(*ld.RDFDataset)
	if !ok {
		return nil, fmt.Errorf("unexpected toRDF result %T", result)
	}
	return convertDataset(dataset)
}

func convertDataset(in *ld.RDFDataset) (*Dataset, error) {
	graphNames := make([]string, 0, len(in.Graphs))
	for name := range in.Graphs {
		graphNames = append(graphNames, name)
	}
	sort.Strings(graphNames)

	out := NewDataset()
	for _, name := range graphNames {
		for _, q := range in.Graphs[name] {
			quad, err := convertQuad(q, name)
			if err != nil {
				return nil, err
			}
			out.Add(quad)
		}
	}
	return out, nil
}

func convertQuad(q *ld.Quad, graphName string) (Quad, error) {
	subject, err := convertNode(q.Subject)
	if err != nil {
		return Quad{}, err
	}
	predicate, err := convertNode(q.Predicate)
	if err != nil {
		return Quad{}, err
	}
	object, err := convertNode(q.Object)
	if err != nil {
		return Quad{}, err
	}
	graph := Term{Kind: DefaultGraph}
	if q.Graph != nil {
		graph, err = convertNode(q.Graph)
		if err != nil {
			return Quad{}, err
		}
	} else if graphName != defaultGraphName && graphName != "" {
		graph = graphTerm(graphName)
	}
	return Quad{Subject: subject, Predicate: predicate, Object: object, Graph: graph}, nil
}

func graphTerm(name string) Term {
	if len(name) > 2 && name[:2] == "_:" {
		return NewBlankNode(name)
	}
	return NewIRI(name)
}

func convertNode(node ld.Node) (Term, error) {
	switch n := node.(type) {
	case ld.IRI:
		return NewIRI(n.Value), nil
	case ld.BlankNode:
		return NewBlankNode(n.Attribute), nil
	case ld.Literal:
		return NewLiteral(n.Value, n.Datatype, n.Language), nil
	case *ld.IRI:
		return NewIRI(n.Value), nil
	case *ld.BlankNode:
		return NewBlankNode(n.Attribute), nil
	case *ld.Literal:
		return NewLiteral(n.Value, n.Datatype, n.Language), nil
	}
	return Term{}, fmt.Errorf("unsupported RDF node %T", node)
}
