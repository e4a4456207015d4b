package urdna2015

import "strconv"

// identifierIssuer hands out prefixed identifiers to blank node handles in issue order.
type identifierIssuer struct {
	prefix  string
	counter int
	issued  map[handle]string
	order   []handle
}

func newIssuer(prefix string) *identifierIssuer {
	return &identifierIssuer{prefix: prefix, issued: make(map[handle]string)}
}

// issue returns the identifier of h, issuing a new one when h has none yet.
func (i *identifierIssuer) issue(h handle) string {
	if id, ok := i.issued[h]; ok {
		return id
	}
	id := i.prefix + strconv.Itoa(i.counter)
	i.counter++
	i.issued[h] = id
	i.order = append(i.order, h)
	return id
}

func (i *identifierIssuer) has(h handle) bool {
	_, ok := i.issued[h]
	return ok
}

func (i *identifierIssuer) get(h handle) (string, bool) {
	id, ok := i.issued[h]
	return id, ok
}

func (i *identifierIssuer) clone() *identifierIssuer {
	c := &identifierIssuer{
		prefix:  i.prefix,
		counter: i.counter,
		issued:  make(map[handle]string, len(i.issued)),
		order:   append([]handle(nil), i.order...),
	}
	for k, v := range i.issued {
		c.issued[k] = v
	}
	return c
}
