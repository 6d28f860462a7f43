package dna

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/holopos/internal/ir"
)

// ErrUnknownFunction is wrapped by Function when a zome, capability or
// function name does not resolve.
var ErrUnknownFunction = errors.New("unknown function")

// Built-in argument and output types. Any other type name must be an entry
// type of the same zome.
const (
	TypeString  = "string"
	TypeInt     = "int"
	TypeBool    = "bool"
	TypeDecimal = "decimal"
	TypeAddress = "address"
	TypeObject  = "object"
	TypeArray   = "array"
)

var builtinTypes = map[string]bool{
	TypeString:  true,
	TypeInt:     true,
	TypeBool:    true,
	TypeDecimal: true,
	TypeAddress: true,
	TypeObject:  true,
	TypeArray:   true,
}

// Bundle is a loaded application manifest.
type Bundle struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	UUID        string `json:"uuid,omitempty"`
	Zomes       []Zome `json:"zomes,omitempty"`
}

// Zome is one module of application code and the entries it owns.
type Zome struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	EntryTypes   []EntryType  `json:"entry_types,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// EntryType describes a kind of entry and the links it may have.
type EntryType struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Sharing     string    `json:"sharing"`
	Links       []LinkDef `json:"links,omitempty"`
}

// LinkDef allows links tagged Tag from this entry type to Target entries.
type LinkDef struct {
	Tag    string `json:"tag"`
	Target string `json:"target"`
}

// Capability groups the functions callable under one module name.
type Capability struct {
	Name       string        `json:"name"`
	Visibility string        `json:"visibility"`
	Functions  []FunctionSig `json:"functions,omitempty"`
}

// FunctionSig is a callable function's signature.
type FunctionSig struct {
	Name   string     `json:"name"`
	Inputs []NamedArg `json:"inputs,omitempty"`
	Output string     `json:"output"`
}

// NamedArg is a named, typed function input.
type NamedArg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Zome returns the zome called name.
func (b *Bundle) Zome(name string) (*Zome, bool) {
	for i := range b.Zomes {
		if b.Zomes[i].Name == name {
			return &b.Zomes[i], true
		}
	}
	return nil, false
}

// EntryType returns the entry type called name.
func (z *Zome) EntryType(name string) (*EntryType, bool) {
	for i := range z.EntryTypes {
		if z.EntryTypes[i].Name == name {
			return &z.EntryTypes[i], true
		}
	}
	return nil, false
}

// AllowsLink reports whether entries of type from may link to entries of
// type to under tag.
func (z *Zome) AllowsLink(from, tag, to string) bool {
	et, ok := z.EntryType(from)
	if !ok {
		return false
	}
	for _, l := range et.Links {
		if l.Tag == tag && l.Target == to {
			return true
		}
	}
	return false
}

// Function resolves zome/capability/function. The error wraps
// ErrUnknownFunction and names the first part that did not resolve.
func (b *Bundle) Function(zome, capability, function string) (*FunctionSig, error) {
	z, ok := b.Zome(zome)
	if !ok {
		return nil, fmt.Errorf("zome %q: %w", zome, ErrUnknownFunction)
	}
	for i := range z.Capabilities {
		c := &z.Capabilities[i]
		if c.Name != capability {
			continue
		}
		for j := range c.Functions {
			if c.Functions[j].Name == function {
				return &c.Functions[j], nil
			}
		}
		return nil, fmt.Errorf("function %q in %s/%s: %w", function, zome, capability, ErrUnknownFunction)
	}
	return nil, fmt.Errorf("capability %q in zome %q: %w", capability, zome, ErrUnknownFunction)
}

// IR returns the bundle in IR form, the input to Hash.
func (b *Bundle) IR() (ir.IRObject, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return ir.UnmarshalIRObject(data)
}

// Hash returns the bundle's content address. Two bundles that decode to the
// same structure hash the same regardless of source formatting, and an
// empty list hashes like an absent one.
func (b *Bundle) Hash() (string, error) {
	obj, err := b.IR()
	if err != nil {
		return "", err
	}
	return ir.DNAHash(obj)
}
