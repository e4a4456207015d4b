// Package rdf holds the quad model shared by extraction and canonicalization,
// the N-Quads line syntax, and the JSON-LD to RDF extractor.
package rdf

import (
	"sort"
	"strings"
)

// XSDString is the implicit datatype of plain literals.
const XSDString = "http://www.w3.org/2001/XMLSchema#string"

// TermKind tells which RDF term a Term holds.
type TermKind int

const (
	// DefaultGraph is only valid as the graph component of a quad.
	DefaultGraph TermKind = iota
	IRI
	BlankNode
	Literal
)

// Term is an IRI, a blank node, a literal or the default graph marker.
// Blank node labels are stored without the "_:" prefix.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Language string
}

// NewIRI returns an IRI term.
func NewIRI(iri string) Term { return Term{Kind: IRI, Value: iri} }

// NewBlankNode returns a blank node term. A leading "_:" is dropped.
func NewBlankNode(label string) Term {
	return Term{Kind: BlankNode, Value: strings.TrimPrefix(label, "_:")}
}

// NewLiteral returns a literal term. An empty datatype means xsd:string,
// unless a language tag is given.
func NewLiteral(value, datatype, language string) Term {
	if datatype == "" && language == "" {
		datatype = XSDString
	}
	return Term{Kind: Literal, Value: value, Datatype: datatype, Language: language}
}

// IsBlank reports whether t is a blank node.
func (t Term) IsBlank() bool {
	return t.Kind == BlankNode
}

// NQuad writes t in N-Quads syntax. The default graph has no representation and yields "".
func (t Term) NQuad() string {
	switch t.Kind {
	case IRI:
		return "<" + t.Value + ">"
	case BlankNode:
		return "_:" + t.Value
	case Literal:
		var sb strings.Builder
		sb.WriteByte('"')
		sb.WriteString(escapeLiteral(t.Value))
		sb.WriteByte('"')
		if t.Language != "" {
			sb.WriteByte('@')
			sb.WriteString(t.Language)
		} else if t.Datatype != "" && t.Datatype != XSDString {
			sb.WriteString("^^<")
			sb.WriteString(t.Datatype)
			sb.WriteByte('>')
		}
		return sb.String()
	}
	return ""
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
	`"`, `\"`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

// Quad is a statement in a named or the default graph.
type Quad struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}

// Line serializes q as one N-Quads line including the terminating newline.
func (q Quad) Line() string {
	var sb strings.Builder
	sb.WriteString(q.Subject.NQuad())
	sb.WriteByte(' ')
	sb.WriteString(q.Predicate.NQuad())
	sb.WriteByte(' ')
	sb.WriteString(q.Object.NQuad())
	if q.Graph.Kind != DefaultGraph {
		sb.WriteByte(' ')
		sb.WriteString(q.Graph.NQuad())
	}
	sb.WriteString(" .\n")
	return sb.String()
}

// Dataset is a set of quads. Add collapses duplicates.
type Dataset struct {
	Quads []Quad
	seen  map[Quad]struct{}
}

// NewDataset returns a dataset holding quads, without duplicates.
func NewDataset(quads ...Quad) *Dataset {
	d := &Dataset{}
	for _, q := range quads {
		d.Add(q)
	}
	return d
}

// Add inserts q unless an equal quad is already present.
func (d *Dataset) Add(q Quad) {
	if d.seen == nil {
		d.seen = make(map[Quad]struct{})
	}
	if _, ok := d.seen[q]; ok {
		return
	}
	d.seen[q] = struct{}{}
	d.Quads = append(d.Quads, q)
}

// Len returns the number of distinct quads.
func (d *Dataset) Len() int {
	return len(d.Quads)
}

// BlankNodes returns the distinct blank node labels in order of first appearance.
func (d *Dataset) BlankNodes() []string {
	var labels []string
	seen := make(map[string]struct{})
	for _, q := range d.Quads {
		for _, t := range []Term{q.Subject, q.Object, q.Graph} {
			if !t.IsBlank() {
				continue
			}
			if _, ok := seen[t.Value]; !ok {
				seen[t.Value] = struct{}{}
				labels = append(labels, t.Value)
			}
		}
	}
	return labels
}

// CanonicalForm is the sorted sequence of canonical N-Quads lines.
type CanonicalForm struct {
	Lines []string
}

// NewCanonicalForm sorts lines bytewise and drops duplicates.
func NewCanonicalForm(lines []string) CanonicalForm {
	sorted := append([]string(nil), lines...)
	sort.Strings(sorted)
	out := sorted[:0]
	for _, l := range sorted {
		if len(out) > 0 && l == out[len(out)-1] {
			continue
		}
		out = append(out, l)
	}
	return CanonicalForm{Lines: out}
}

// Bytes concatenates the lines, each already newline terminated.
func (c CanonicalForm) Bytes() []byte {
	return []byte(c.String())
}

func (c CanonicalForm) String() string {
	return strings.Join(c.Lines, "")
}
