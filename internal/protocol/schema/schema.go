// Package schema is the command catalogue: it names every remote command a
// client may issue, the ordered inputs it takes, and the ordered outputs it
// returns. Argument encoding and reply decoding are validated against the
// catalogue so a mismatch surfaces as a schema error with field detail
// instead of a bare JSON error from inside the codec.
//
// Kind checks are shallow. Containers are matched by JSON shape; element
// types are enforced by the destination types at decode time.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	logs "github.com/danmuck/shogunctl/internal/logging"
)

var (
	ErrNotRegistered    = errors.New("schema: command not registered")
	ErrDuplicateCommand = errors.New("schema: command already registered")
	ErrSchemaMismatch   = errors.New("schema: value does not match command schema")
)

// Kind classifies the JSON shape of a command field.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindUint
	KindFloat
	KindBool
	KindList
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field describes one input or output of a command. Elem is set for list
// fields and Fields for record members; both feed signatures and tooling
// rather than deep validation.
type Field struct {
	Name   string
	Kind   Kind
	Elem   *Field
	Fields []Field
}

// CommandSpec describes a remote command: the wire name sent in the frame
// header plus the ordered input and output fields.
type CommandSpec struct {
	Name    string
	Inputs  []Field
	Outputs []Field
}

// Signature renders the spec as a readable prototype, e.g.
// "CaptureServices.StartCapture(name: string) -> (id: uint)".
func (s CommandSpec) Signature() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	writeFieldList(&b, s.Inputs)
	b.WriteByte(')')
	if len(s.Outputs) > 0 {
		b.WriteString(" -> (")
		writeFieldList(&b, s.Outputs)
		b.WriteByte(')')
	}
	return b.String()
}

func writeFieldList(b *strings.Builder, fields []Field) {
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		if f.Name != "" {
			b.WriteString(f.Name)
			b.WriteString(": ")
		}
		b.WriteString(fieldType(f))
	}
}

func fieldType(f Field) string {
	switch f.Kind {
	case KindList:
		if f.Elem == nil {
			return "list"
		}
		return "list<" + fieldType(*f.Elem) + ">"
	case KindRecord:
		if len(f.Fields) == 0 {
			return "record"
		}
		var b strings.Builder
		b.WriteString("record{")
		writeFieldList(&b, f.Fields)
		b.WriteByte('}')
		return b.String()
	default:
		return f.Kind.String()
	}
}

// ValidationError reports a schema mismatch with command and field detail.
// It unwraps to ErrSchemaMismatch.
type ValidationError struct {
	Command string
	Field   string
	Reason  string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: command=%s: %s", e.Command, e.Reason)
	}
	return fmt.Sprintf("schema: command=%s field=%s: %s", e.Command, e.Field, e.Reason)
}

func (e ValidationError) Unwrap() error { return ErrSchemaMismatch }

// Catalog is an owned registry of command specs. Each client carries its
// own catalogue; nothing here is package-global.
type Catalog struct {
	mu    sync.RWMutex
	specs map[string]CommandSpec
}

func NewCatalog() *Catalog {
	return &Catalog{specs: make(map[string]CommandSpec)}
}

// Register adds a spec to the catalogue. Re-registering a name fails with
// ErrDuplicateCommand so two services cannot silently claim one command.
func (c *Catalog) Register(spec CommandSpec) error {
	if spec.Name == "" {
		return ValidationError{Reason: "empty command name"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.specs[spec.Name]; ok {
		logs.Errf("schema.Register duplicate command=%s", spec.Name)
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, spec.Name)
	}
	c.specs[spec.Name] = spec
	logs.Debugf("schema.Register command=%s inputs=%d outputs=%d", spec.Name, len(spec.Inputs), len(spec.Outputs))
	return nil
}

// MustRegister panics on registration failure. Service constructors use it
// for their fixed command tables.
func (c *Catalog) MustRegister(spec CommandSpec) {
	if err := c.Register(spec); err != nil {
		panic(err)
	}
}

func (c *Catalog) Lookup(name string) (CommandSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.specs[name]
	return spec, ok
}

// Names returns every registered command name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeArgs validates args against the command's inputs and renders the
// JSON argument list for the wire.
func EncodeArgs(spec CommandSpec, args ...any) ([]byte, error) {
	if len(args) != len(spec.Inputs) {
		return nil, fail(ValidationError{
			Command: spec.Name,
			Reason:  fmt.Sprintf("want %d inputs, got %d", len(spec.Inputs), len(args)),
		})
	}
	out := make([]json.RawMessage, len(args))
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fail(ValidationError{Command: spec.Name, Field: spec.Inputs[i].Name, Reason: err.Error()})
		}
		if err := checkKind(spec.Name, spec.Inputs[i], raw); err != nil {
			return nil, err
		}
		out[i] = raw
	}
	buf, err := json.Marshal(out)
	if err != nil {
		return nil, fail(ValidationError{Command: spec.Name, Reason: err.Error()})
	}
	return buf, nil
}

// DecodeReply splits a reply payload against the command's outputs and
// unmarshals each element into the matching destination. Trailing outputs
// may be dropped by passing fewer destinations; a nil destination skips
// its element.
func DecodeReply(spec CommandSpec, payload []byte, dests ...any) error {
	if len(dests) > len(spec.Outputs) {
		return fail(ValidationError{
			Command: spec.Name,
			Reason:  fmt.Sprintf("command has %d outputs, got %d destinations", len(spec.Outputs), len(dests)),
		})
	}
	var elems []json.RawMessage
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &elems); err != nil {
			return fail(ValidationError{Command: spec.Name, Reason: "reply is not a list: " + err.Error()})
		}
	}
	if len(elems) != len(spec.Outputs) {
		return fail(ValidationError{
			Command: spec.Name,
			Reason:  fmt.Sprintf("want %d outputs, got %d", len(spec.Outputs), len(elems)),
		})
	}
	for i, dest := range dests {
		if dest == nil {
			continue
		}
		if err := json.Unmarshal(elems[i], dest); err != nil {
			return fail(ValidationError{Command: spec.Name, Field: spec.Outputs[i].Name, Reason: err.Error()})
		}
	}
	return nil
}

// checkKind matches the encoded value's JSON shape against the field kind.
func checkKind(cmd string, f Field, raw json.RawMessage) error {
	got := jsonShape(raw)
	mismatch := func() error {
		return fail(ValidationError{
			Command: cmd,
			Field:   f.Name,
			Reason:  fmt.Sprintf("want %s, got %s", f.Kind, got),
		})
	}
	switch f.Kind {
	case KindString:
		if got != "string" {
			return mismatch()
		}
	case KindBool:
		if got != "bool" {
			return mismatch()
		}
	case KindList:
		if got != "list" {
			return mismatch()
		}
	case KindRecord:
		if got != "record" {
			return mismatch()
		}
	case KindInt, KindUint, KindFloat:
		if got != "number" {
			return mismatch()
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return mismatch()
		}
		switch f.Kind {
		case KindInt:
			if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
				return mismatch()
			}
		case KindUint:
			if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
				return mismatch()
			}
		case KindFloat:
			if _, err := n.Float64(); err != nil {
				return mismatch()
			}
		}
	default:
		return fail(ValidationError{Command: cmd, Field: f.Name, Reason: fmt.Sprintf("unknown kind %s", f.Kind)})
	}
	return nil
}

// jsonShape names the top-level JSON shape of an encoded value.
func jsonShape(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch c := trimmed[0]; {
	case c == '"':
		return "string"
	case c == '{':
		return "record"
	case c == '[':
		return "list"
	case c == 't' || c == 'f':
		return "bool"
	case c == 'n':
		return "null"
	case c == '-' || (c >= '0' && c <= '9'):
		return "number"
	default:
		return "invalid"
	}
}

func fail(ve ValidationError) error {
	logs.Errf("schema validation failed command=%s field=%s reason=%s", ve.Command, ve.Field, ve.Reason)
	return ve
}
