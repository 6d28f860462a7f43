package dna

import "fmt"

// Validation error codes (E100-E199).
const (
	ErrDuplicateZome       = "E101"
	ErrDuplicateEntryType  = "E102"
	ErrDuplicateCapability = "E103"
	ErrDuplicateFunction   = "E104"
	ErrDuplicateInput      = "E105"
	ErrUnknownType         = "E106"
	ErrUnknownLinkTarget   = "E107"
	ErrEmptyCapability     = "E108"
)

// ValidationError is one semantic problem in a bundle.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks what the schema cannot express: unique names, known
// input and output types, and link targets that exist. It returns every
// problem found, not just the first.
func (b *Bundle) Validate() []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	zomes := make(map[string]bool)
	for zi, z := range b.Zomes {
		zf := fmt.Sprintf("zomes[%d]", zi)
		if zomes[z.Name] {
			add(ErrDuplicateZome, zf+".name", "duplicate zome name %q", z.Name)
		}
		zomes[z.Name] = true

		entryTypes := make(map[string]bool)
		for ei, et := range z.EntryTypes {
			if entryTypes[et.Name] {
				add(ErrDuplicateEntryType, fmt.Sprintf("%s.entry_types[%d].name", zf, ei), "duplicate entry type %q", et.Name)
			}
			entryTypes[et.Name] = true
		}

		for ei, et := range z.EntryTypes {
			for li, l := range et.Links {
				if !entryTypes[l.Target] {
					add(ErrUnknownLinkTarget, fmt.Sprintf("%s.entry_types[%d].links[%d].target", zf, ei, li),
						"link %q targets unknown entry type %q", l.Tag, l.Target)
				}
			}
		}

		knownType := func(t string) bool {
			return builtinTypes[t] || entryTypes[t] || isListOf(t, entryTypes)
		}

		capabilities := make(map[string]bool)
		functions := make(map[string]string)
		for ci, c := range z.Capabilities {
			cf := fmt.Sprintf("%s.capabilities[%d]", zf, ci)
			if capabilities[c.Name] {
				add(ErrDuplicateCapability, cf+".name", "duplicate capability %q", c.Name)
			}
			capabilities[c.Name] = true

			if len(c.Functions) == 0 {
				add(ErrEmptyCapability, cf+".functions", "capability %q exposes no functions", c.Name)
			}

			for fi, fn := range c.Functions {
				ff := fmt.Sprintf("%s.functions[%d]", cf, fi)
				if prev, ok := functions[fn.Name]; ok {
					add(ErrDuplicateFunction, ff+".name", "function %q already defined in capability %q", fn.Name, prev)
				} else {
					functions[fn.Name] = c.Name
				}

				inputs := make(map[string]bool)
				for ii, in := range fn.Inputs {
					inf := fmt.Sprintf("%s.inputs[%d]", ff, ii)
					if inputs[in.Name] {
						add(ErrDuplicateInput, inf+".name", "duplicate input %q", in.Name)
					}
					inputs[in.Name] = true
					if !knownType(in.Type) {
						add(ErrUnknownType, inf+".type", "unknown type %q", in.Type)
					}
				}
				if !knownType(fn.Output) {
					add(ErrUnknownType, ff+".output", "unknown type %q", fn.Output)
				}
			}
		}
	}

	return errs
}

// isListOf accepts "[]T" where T is a builtin or entry type.
func isListOf(t string, entryTypes map[string]bool) bool {
	if len(t) < 3 || t[:2] != "[]" {
		return false
	}
	elem := t[2:]
	return builtinTypes[elem] || entryTypes[elem]
}
