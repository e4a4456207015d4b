// Package document holds the parsed form of a JSON-LD input document.
//
// A Value is a tagged union over the JSON types. Objects keep their members in
// input order, so a document that is parsed and marshalled again keeps its layout,
// and numbers keep their literal text.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

// Kind is the JSON type held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// maxDepth bounds nesting of arrays and objects.
const maxDepth = 256

// Member is a key/value pair of an object.
type Member struct {
	Key   string
	Value *Value
}

// Value is one node of a document.
type Value struct {
	Kind    Kind
	Bool    bool
	Number  string
	Str     string
	Items   []*Value
	Members []Member
}

// NewNull returns a null value.
func NewNull() *Value { return &Value{Kind: Null} }

// NewBool returns a boolean value.
func NewBool(b bool) *Value { return &Value{Kind: Bool, Bool: b} }

// NewString returns a string value.
func NewString(s string) *Value { return &Value{Kind: String, Str: s} }

// NewNumber returns a number value from its literal text.
func NewNumber(literal string) *Value { return &Value{Kind: Number, Number: literal} }

// NewArray returns an array holding items.
func NewArray(items ...*Value) *Value { return &Value{Kind: Array, Items: items} }

// NewObject returns an object with the given members.
func NewObject(members ...Member) *Value { return &Value{Kind: Object, Members: members} }

// Parse decodes data into a Value. Invalid JSON, duplicate object keys and
// trailing content are reported as vcerr.MalformedDocument.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec, 0)
	if err != nil {
		return nil, malformed(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, vcerr.New(vcerr.MalformedDocument, "unexpected data after top-level value")
	}
	return v, nil
}

func malformed(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return vcerr.New(vcerr.MalformedDocument, "document is empty or truncated")
	}
	return vcerr.Wrap(vcerr.MalformedDocument, err, "document is not valid JSON")
}

func parseValue(dec *json.Decoder, depth int) (*Value, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("nesting deeper than %d levels", maxDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return NewNumber(t.String()), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		switch t {
		case '[':
			return parseArray(dec, depth)
		case '{':
			return parseObject(dec, depth)
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseArray(dec *json.Decoder, depth int) (*Value, error) {
	arr := &Value{Kind: Array, Items: []*Value{}}
	for dec.More() {
		item, err := parseValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, item)
	}
	// closing ]
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func parseObject(dec *json.Decoder, depth int) (*Value, error) {
	obj := &Value{Kind: Object, Members: []Member{}}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %v", tok)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate object key %q", key)
		}
		seen[key] = struct{}{}
		value, err := parseValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		obj.Members = append(obj.Members, Member{Key: key, Value: value})
	}
	// closing }
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

// Get returns the member value for key, or nil when v is not an object or has no such member.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != Object {
		return nil
	}
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value
		}
	}
	return nil
}

// Has reports whether v is an object with a member named key.
func (v *Value) Has(key string) bool {
	return v.Get(key) != nil
}

// With returns a shallow copy of the object v where key is set to value.
// An existing member is replaced in place, a new member is appended.
func (v *Value) With(key string, value *Value) *Value {
	out := &Value{Kind: Object, Members: make([]Member, 0, len(v.Members)+1)}
	replaced := false
	for _, m := range v.Members {
		if m.Key == key {
			out.Members = append(out.Members, Member{Key: key, Value: value})
			replaced = true
			continue
		}
		out.Members = append(out.Members, m)
	}
	if !replaced {
		out.Members = append(out.Members, Member{Key: key, Value: value})
	}
	return out
}

// Without returns a shallow copy of the object v without the member key.
func (v *Value) Without(key string) *Value {
	out := &Value{Kind: Object, Members: make([]Member, 0, len(v.Members))}
	for _, m := range v.Members {
		if m.Key != key {
			out.Members = append(out.Members, m)
		}
	}
	return out
}

// StringValue returns the string held by v and whether v is a string.
func (v *Value) StringValue() (string, bool) {
	if v == nil || v.Kind != String {
		return "", false
	}
	return v.Str, true
}

// ToInterface converts v into the generic form produced by encoding/json
// (map[string]interface{}, []interface{}, float64, string, bool, nil).
func (v *Value) ToInterface() (interface{}, error) {
	switch v.Kind {
	case Null:
		return nil, nil
	case Bool:
		return v.Bool, nil
	case Number:
		return exactNumber(v.Number)
	case String:
		return v.Str, nil
	case Array:
		out := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			converted, err := item.ToInterface()
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case Object:
		out := make(map[string]interface{}, len(v.Members))
		for _, m := range v.Members {
			converted, err := m.Value.ToInterface()
			if err != nil {
				return nil, err
			}
			out[m.Key] = converted
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// exactNumber parses literal as a float64 and checks that both RDF lexical forms
// of the value (xsd:integer and the 16 significant digit xsd:double form) denote
// exactly the literal's value. Other literals would collide with their neighbours
// in the canonical form.
func exactNumber(literal string) (float64, error) {
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return 0, vcerr.Wrap(vcerr.MalformedDocument, err, "number out of range")
	}
	exact, ok := new(big.Rat).SetString(literal)
	if !ok {
		return 0, vcerr.Newf(vcerr.MalformedDocument, "invalid number %s", literal)
	}
	forms := []string{strconv.FormatFloat(f, 'E', 15, 64)}
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		forms = append(forms, strconv.FormatInt(int64(f), 10))
	}
	for _, form := range forms {
		r, ok := new(big.Rat).SetString(form)
		if !ok || r.Cmp(exact) != 0 {
			return 0, vcerr.Newf(vcerr.MalformedDocument, "number %s cannot be represented exactly", literal)
		}
	}
	return f, nil
}

// MarshalJSON writes v with members in their stored order. HTML characters are not escaped.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.Kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case Number:
		buf.WriteString(v.Number)
	case String:
		return encodeString(buf, v.Str)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
