package extend

import (
	"reflect"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
	"github.com/wippyai/interp-bridge/object"
)

// Func is a free module function. Arguments are borrowed handles owned by
// the trampoline; the zero Object result stands for none.
type Func func(tok attach.Token, args []object.Object) (object.Object, error)

// Module collects functions and extension types under a namespace before
// registering them with a runtime.
type Module struct {
	name  string
	funcs map[string]Func
	order []string
	types []reflect.Type
}

// NewModule starts a module definition.
func NewModule(name string) *Module {
	return &Module{name: name, funcs: make(map[string]Func)}
}

// Func adds a function. Later additions under the same name win.
func (m *Module) Func(name string, f Func) *Module {
	if _, dup := m.funcs[name]; !dup {
		m.order = append(m.order, name)
	}
	m.funcs[name] = f
	return m
}

// Type exposes a registered extension type, named by GoTypeOf.
func (m *Module) Type(goType reflect.Type) *Module {
	m.types = append(m.types, goType)
	return m
}

// Register materializes the module in the runtime: a dict holding builtin
// functions and reified type objects, installed under the module name.
func (m *Module) Register(tok attach.Token) error {
	rt := tok.Runtime()
	dict := rt.NewDict()
	if dict == 0 {
		return tok.RaisedAsError(errors.PhaseRegister)
	}
	fail := func(err error) error {
		rt.DecRef(dict)
		return err
	}

	for _, name := range m.order {
		fn := m.funcs[name]
		ref := rt.NewBuiltin(m.name+"."+name, funcSlot(m.name+"."+name, fn))
		if ref == 0 {
			return fail(tok.RaisedAsError(errors.PhaseRegister))
		}
		rc := rt.DictSet(dict, name, ref)
		rt.DecRef(ref)
		if rc != 0 {
			return fail(tok.RaisedAsError(errors.PhaseRegister))
		}
	}

	for _, goType := range m.types {
		d := descriptorFor(goType)
		if d == nil {
			return fail(errors.NotFound(errors.PhaseRegister, "extension type", goType.String()))
		}
		to, err := d.bind(rt)
		if err != nil {
			return fail(err)
		}
		ref := rt.TypeRef(to)
		if ref == 0 {
			return fail(tok.RaisedAsError(errors.PhaseRegister))
		}
		rc := rt.DictSet(dict, d.name, ref)
		rt.DecRef(ref)
		if rc != 0 {
			return fail(tok.RaisedAsError(errors.PhaseRegister))
		}
	}

	// RegisterModule steals the dict reference on success.
	if err := rt.RegisterModule(m.name, dict); err != nil {
		return fail(err)
	}
	return nil
}

func funcSlot(op string, fn Func) interp.BuiltinFn {
	return func(rt *interp.Runtime, _ interp.Ref, args []interp.Ref) (out interp.Ref) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(op, r)
				rt.Raise(rt.ExcRuntime, "panic in %s", op)
				out = 0
			}
		}()
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		objs, release, err := wrapArgs(tok, args)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer release()
		res, err := fn(tok, objs)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		return resultRef(rt, res)
	}
}
