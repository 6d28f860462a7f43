package engine

import (
	"sort"
	"strings"

	"github.com/roach88/holopos/internal/dna"
	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/zome"
)

// resolve checks req against the bundle and the registry and returns the
// handler to run. All failures are APIErrors.
func (e *Engine) resolve(req Request, args ir.IRObject) (zome.Handler, *dna.Zome, error) {
	sig, err := e.bundle.Function(req.Zome, req.Module, req.Function)
	if err != nil {
		return nil, nil, zome.UnknownFunction("%v", err)
	}
	z, _ := e.bundle.Zome(req.Zome)

	handler, err := e.registry.Handler(req.Zome, req.Function)
	if err != nil {
		return nil, nil, err
	}

	if err := checkArgs(z, sig, args); err != nil {
		return nil, nil, err
	}
	return handler, z, nil
}

// checkArgs requires exactly the declared inputs, each of its declared type.
func checkArgs(z *dna.Zome, sig *dna.FunctionSig, args ir.IRObject) error {
	declared := make(map[string]bool, len(sig.Inputs))
	for _, in := range sig.Inputs {
		declared[in.Name] = true
		v, ok := args[in.Name]
		if !ok {
			return zome.InvalidInput("%s: missing argument %q", sig.Name, in.Name)
		}
		if !matchesType(z, in.Type, v) {
			return zome.InvalidInput("%s: argument %q must be %s", sig.Name, in.Name, in.Type)
		}
	}

	var extra []string
	for name := range args {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return zome.InvalidInput("%s: unexpected argument(s) %s", sig.Name, strings.Join(extra, ", "))
	}
	return nil
}

// matchesType is a shape check only. Field-level checks belong to the
// handler's decoder and the entry validators.
func matchesType(z *dna.Zome, typ string, v ir.IRValue) bool {
	if elem, ok := strings.CutPrefix(typ, "[]"); ok {
		arr, isArr := v.(ir.IRArray)
		if !isArr {
			return false
		}
		for _, item := range arr {
			if !matchesType(z, elem, item) {
				return false
			}
		}
		return true
	}

	switch typ {
	case dna.TypeString, dna.TypeAddress:
		_, ok := v.(ir.IRString)
		return ok
	case dna.TypeInt:
		_, ok := v.(ir.IRInt)
		return ok
	case dna.TypeBool:
		_, ok := v.(ir.IRBool)
		return ok
	case dna.TypeDecimal:
		switch v.(type) {
		case ir.IRDecimal, ir.IRInt:
			return true
		}
		return false
	case dna.TypeObject:
		_, ok := v.(ir.IRObject)
		return ok
	case dna.TypeArray:
		_, ok := v.(ir.IRArray)
		return ok
	}

	if _, ok := z.EntryType(typ); ok {
		_, isObj := v.(ir.IRObject)
		return isObj
	}
	return false
}
