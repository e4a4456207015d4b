// Package urdna2015 labels blank nodes of an RDF dataset canonically and
// serializes the result as sorted N-Quads.
//
// Blank nodes live in an arena and are referred to by integer handles. Nodes
// with a unique first-degree hash are labelled directly. Nodes that share a
// hash are told apart by hashing their n-degree neighbourhood, which explores
// the permutations of equally hashed neighbours and keeps the smallest path.
// That search is bounded by a Budget.
package urdna2015

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/pilacorp/go-vc-issuer/credential/common/rdf"
)

const (
	canonicalPrefix = "c14n"
	temporaryPrefix = "b"
)

// handle indexes a blank node in the arena.
type handle int

const noNode handle = -1

// positions of the blank-node capable components of a quad.
const (
	posSubject = iota
	posObject
	posGraph
)

var positionNames = [3]string{"s", "o", "g"}

// quadRef is a quad with the arena handles of its subject, object and graph.
type quadRef struct {
	quad  rdf.Quad
	nodes [3]handle
}

// blankNode is one arena record.
type blankNode struct {
	quads []int
	hash  string
}

// Canonicalizer implements URDNA2015.
type Canonicalizer struct {
	budget Budget
}

// New returns a Canonicalizer bounded by budget.
func New(budget Budget) *Canonicalizer {
	return &Canonicalizer{budget: budget.normalized()}
}

// Canonicalize relabels the blank nodes of dataset and returns its canonical form.
// It fails with vcerr.CanonicalizationTimeout when the budget runs out or ctx ends.
func (c *Canonicalizer) Canonicalize(ctx context.Context, dataset *rdf.Dataset) (rdf.CanonicalForm, error) {
	s := newState(ctx, c.budget, dataset)
	if err := s.labelNodes(); err != nil {
		return rdf.CanonicalForm{}, err
	}
	lines := make([]string, len(s.quads))
	for i, ref := range s.quads {
		lines[i] = s.serialize(ref, func(h handle) string {
			id, _ := s.canonical.get(h)
			return id
		})
	}
	return rdf.NewCanonicalForm(lines), nil
}

type state struct {
	meter     *meter
	quads     []quadRef
	nodes     []blankNode
	canonical *identifierIssuer
}

func newState(ctx context.Context, budget Budget, dataset *rdf.Dataset) *state {
	s := &state{
		meter:     newMeter(ctx, budget),
		canonical: newIssuer(canonicalPrefix),
	}
	byLabel := make(map[string]handle)
	lookup := func(t rdf.Term) handle {
		if !t.IsBlank() {
			return noNode
		}
		h, ok := byLabel[t.Value]
		if !ok {
			h = handle(len(s.nodes))
			byLabel[t.Value] = h
			s.nodes = append(s.nodes, blankNode{})
		}
		return h
	}
	for _, q := range dataset.Quads {
		ref := quadRef{quad: q}
		ref.nodes[posSubject] = lookup(q.Subject)
		ref.nodes[posObject] = lookup(q.Object)
		ref.nodes[posGraph] = lookup(q.Graph)
		index := len(s.quads)
		s.quads = append(s.quads, ref)
		// a quad mentioning a node twice is listed twice
		for _, h := range ref.nodes {
			if h != noNode {
				s.nodes[h].quads = append(s.nodes[h].quads, index)
			}
		}
	}
	return s
}

// labelNodes issues a canonical identifier to every blank node.
func (s *state) labelNodes() error {
	hashToNodes := make(map[string][]handle)
	for h := range s.nodes {
		hash := s.hashFirstDegree(handle(h))
		hashToNodes[hash] = append(hashToNodes[hash], handle(h))
	}
	hashes := sortedKeys(hashToNodes)

	var shared []string
	for _, hash := range hashes {
		group := hashToNodes[hash]
		if len(group) == 1 {
			s.canonical.issue(group[0])
			continue
		}
		shared = append(shared, hash)
	}

	for _, hash := range shared {
		var results []nDegreeResult
		for _, h := range hashToNodes[hash] {
			if s.canonical.has(h) {
				continue
			}
			temporary := newIssuer(temporaryPrefix)
			temporary.issue(h)
			result, err := s.hashNDegree(h, temporary)
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		sort.SliceStable(results, func(i, j int) bool { return results[i].hash < results[j].hash })
		for _, result := range results {
			for _, h := range result.issuer.order {
				s.canonical.issue(h)
			}
		}
	}
	return nil
}

// hashFirstDegree hashes the quads touching h, with h written as _:a and every other blank node as _:z.
func (s *state) hashFirstDegree(h handle) string {
	node := &s.nodes[h]
	if node.hash != "" {
		return node.hash
	}
	lines := make([]string, 0, len(node.quads))
	for _, index := range node.quads {
		lines = append(lines, s.serialize(s.quads[index], func(other handle) string {
			if other == h {
				return "a"
			}
			return "z"
		}))
	}
	sort.Strings(lines)
	node.hash = sha256Hex(strings.Join(lines, ""))
	return node.hash
}

// hashRelated hashes the link from a quad to the related blank node at position.
func (s *state) hashRelated(related handle, ref quadRef, issuer *identifierIssuer, position int) string {
	var sb strings.Builder
	sb.WriteString(positionNames[position])
	if position != posGraph {
		sb.WriteString(ref.quad.Predicate.NQuad())
	}
	if id, ok := s.canonical.get(related); ok {
		sb.WriteString("_:" + id)
	} else if id, ok := issuer.get(related); ok {
		sb.WriteString("_:" + id)
	} else {
		sb.WriteString(s.hashFirstDegree(related))
	}
	return sha256Hex(sb.String())
}

type nDegreeResult struct {
	hash   string
	issuer *identifierIssuer
}

// hashNDegree hashes the neighbourhood of h, choosing the smallest path over
// all orderings of equally hashed related nodes.
func (s *state) hashNDegree(h handle, issuer *identifierIssuer) (nDegreeResult, error) {
	if err := s.meter.spend(); err != nil {
		return nDegreeResult{}, err
	}

	hashToRelated := make(map[string][]handle)
	for _, index := range s.nodes[h].quads {
		ref := s.quads[index]
		for position, related := range ref.nodes {
			if related == noNode || related == h {
				continue
			}
			hash := s.hashRelated(related, ref, issuer, position)
			hashToRelated[hash] = append(hashToRelated[hash], related)
		}
	}

	var data strings.Builder
	for _, relatedHash := range sortedKeys(hashToRelated) {
		data.WriteString(relatedHash)

		var chosenPath string
		var chosenIssuer *identifierIssuer
		err := permute(hashToRelated[relatedHash], func(permutation []handle) error {
			if err := s.meter.spend(); err != nil {
				return err
			}
			path, pathIssuer, ok, err := s.pathFor(permutation, issuer, chosenPath)
			if err != nil || !ok {
				return err
			}
			if chosenPath == "" || path < chosenPath {
				chosenPath = path
				chosenIssuer = pathIssuer
			}
			return nil
		})
		if err != nil {
			return nDegreeResult{}, err
		}
		data.WriteString(chosenPath)
		issuer = chosenIssuer
	}
	return nDegreeResult{hash: sha256Hex(data.String()), issuer: issuer}, nil
}

// pathFor builds the path of one permutation. ok is false once the path can no longer beat chosenPath.
func (s *state) pathFor(permutation []handle, issuer *identifierIssuer, chosenPath string) (string, *identifierIssuer, bool, error) {
	issuerCopy := issuer.clone()
	var path strings.Builder
	var recursion []handle

	worse := func() bool {
		return chosenPath != "" && path.Len() >= len(chosenPath) && path.String() > chosenPath
	}

	for _, related := range permutation {
		if id, ok := s.canonical.get(related); ok {
			path.WriteString("_:" + id)
		} else {
			if !issuerCopy.has(related) {
				recursion = append(recursion, related)
			}
			path.WriteString("_:" + issuerCopy.issue(related))
		}
		if worse() {
			return "", nil, false, nil
		}
	}

	for _, related := range recursion {
		result, err := s.hashNDegree(related, issuerCopy)
		if err != nil {
			return "", nil, false, err
		}
		path.WriteString("_:" + issuerCopy.issue(related))
		path.WriteString("<" + result.hash + ">")
		issuerCopy = result.issuer
		if worse() {
			return "", nil, false, nil
		}
	}
	return path.String(), issuerCopy, true, nil
}

// serialize writes ref as an N-Quads line, naming blank nodes through name.
func (s *state) serialize(ref quadRef, name func(handle) string) string {
	q := ref.quad
	if h := ref.nodes[posSubject]; h != noNode {
		q.Subject = rdf.NewBlankNode(name(h))
	}
	if h := ref.nodes[posObject]; h != noNode {
		q.Object = rdf.NewBlankNode(name(h))
	}
	if h := ref.nodes[posGraph]; h != noNode {
		q.Graph = rdf.NewBlankNode(name(h))
	}
	return q.Line()
}

// permute calls fn with every ordering of items (Heap's algorithm). fn must not retain its argument.
func permute(items []handle, fn func([]handle) error) error {
	a := append([]handle(nil), items...)
	if err := fn(a); err != nil {
		return err
	}
	c := make([]int, len(a))
	for i := 0; i < len(a); {
		if c[i] < i {
			if i%2 == 0 {
				a[0], a[i] = a[i], a[0]
			} else {
				a[c[i]], a[i] = a[i], a[c[i]]
			}
			if err := fn(a); err != nil {
				return err
			}
			c[i]++
			i = 0
			continue
		}
		c[i] = 0
		i++
	}
	return nil
}

func sortedKeys(m map[string][]handle) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
