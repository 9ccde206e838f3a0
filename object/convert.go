package object

import (
	"fmt"
	"math"
	"sort"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
)

// FromInt creates a runtime integer.
func FromInt(tok attach.Token, v int64) (Object, error) {
	return FromOwned(tok, tok.Runtime().NewInt(v))
}

// FromFloat creates a runtime float.
func FromFloat(tok attach.Token, v float64) (Object, error) {
	return FromOwned(tok, tok.Runtime().NewFloat(v))
}

// FromStr creates a runtime string.
func FromStr(tok attach.Token, s string) (Object, error) {
	return FromOwned(tok, tok.Runtime().NewStr(s))
}

// FromBool returns the shared true or false singleton.
func FromBool(tok attach.Token, v bool) (Object, error) {
	return FromOwned(tok, tok.Runtime().NewBool(v))
}

// None returns the none singleton.
func None(tok attach.Token) (Object, error) {
	return FromOwned(tok, tok.Runtime().NewNone())
}

// FromGo converts a Go value into an owned handle. Supported inputs: nil,
// bool, all integer and float widths, string, []any, map[string]any, and
// existing Object or Bound handles. Unsigned values outside the signed
// 64-bit range fail with an overflow error rather than wrapping.
func FromGo(tok attach.Token, v any) (Object, error) {
	switch x := v.(type) {
	case nil:
		return None(tok)
	case Object:
		return x.Clone(tok), nil
	case Bound:
		return x.Owned(), nil
	case bool:
		return FromBool(tok, x)
	case int:
		return FromInt(tok, int64(x))
	case int8:
		return FromInt(tok, int64(x))
	case int16:
		return FromInt(tok, int64(x))
	case int32:
		return FromInt(tok, int64(x))
	case int64:
		return FromInt(tok, x)
	case uint:
		return fromUint(tok, uint64(x))
	case uint8:
		return FromInt(tok, int64(x))
	case uint16:
		return FromInt(tok, int64(x))
	case uint32:
		return FromInt(tok, int64(x))
	case uint64:
		return fromUint(tok, x)
	case float32:
		return FromFloat(tok, float64(x))
	case float64:
		return FromFloat(tok, x)
	case string:
		return FromStr(tok, x)
	case []any:
		return fromSlice(tok, x)
	case map[string]any:
		return fromMap(tok, x)
	default:
		return Object{}, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
			GoType(fmt.Sprintf("%T", v)).
			Detail("no conversion to a runtime value").
			Build()
	}
}

func fromUint(tok attach.Token, v uint64) (Object, error) {
	if v > math.MaxInt64 {
		return Object{}, errors.Overflow(errors.PhaseConvert, nil, v, "int")
	}
	return FromInt(tok, int64(v))
}

func fromSlice(tok attach.Token, xs []any) (Object, error) {
	rt := tok.Runtime()
	elems := make([]interp.Ref, 0, len(xs))
	drop := func() {
		for _, e := range elems {
			rt.DecRef(e)
		}
	}
	for i, x := range xs {
		o, err := FromGo(tok, x)
		if err != nil {
			drop()
			return Object{}, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
				Path(fmt.Sprintf("[%d]", i)).
				Cause(err).
				Build()
		}
		elems = append(elems, o.ref)
	}
	list := rt.NewList(elems)
	drop()
	return FromOwned(tok, list)
}

func fromMap(tok attach.Token, m map[string]any) (Object, error) {
	rt := tok.Runtime()
	dict, err := FromOwned(tok, rt.NewDict())
	if err != nil {
		return Object{}, err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		o, err := FromGo(tok, m[k])
		if err != nil {
			dict.Drop()
			return Object{}, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
				Path(k).
				Cause(err).
				Build()
		}
		rc := rt.DictSet(dict.ref, k, o.ref)
		rt.DecRef(o.ref)
		if rc != 0 {
			err := tok.RaisedAsError(errors.PhaseConvert)
			if err == nil {
				err = errors.NullPointer(errors.PhaseConvert, "dict insert failed")
			}
			dict.Drop()
			return Object{}, err
		}
	}
	return dict, nil
}

// AsInt extracts a signed integer, failing on any other runtime type.
func (b Bound) AsInt() (int64, error) {
	v, ok := b.tok.Runtime().AsInt(b.ref)
	if !ok {
		return 0, b.mismatch("int")
	}
	return v, nil
}

// AsUint extracts an unsigned integer, failing on negative values.
func (b Bound) AsUint() (uint64, error) {
	v, ok := b.tok.Runtime().AsInt(b.ref)
	if !ok {
		return 0, b.mismatch("uint")
	}
	if v < 0 {
		return 0, errors.Overflow(errors.PhaseConvert, nil, v, "uint")
	}
	return uint64(v), nil
}

// AsInt32 extracts an integer narrowed to 32 bits, failing on overflow.
func (b Bound) AsInt32() (int32, error) {
	v, err := b.AsInt()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errors.Overflow(errors.PhaseConvert, nil, v, "int32")
	}
	return int32(v), nil
}

// AsFloat extracts a float. Integers widen; nothing else converts.
func (b Bound) AsFloat() (float64, error) {
	rt := b.tok.Runtime()
	if v, ok := rt.AsFloat(b.ref); ok {
		return v, nil
	}
	if v, ok := rt.AsInt(b.ref); ok {
		return float64(v), nil
	}
	return 0, b.mismatch("float")
}

// AsStr extracts a string value. Unlike Str this does not fall back to the
// repr: non-string values fail.
func (b Bound) AsStr() (string, error) {
	s, ok := b.tok.Runtime().AsStr(b.ref)
	if !ok {
		return "", b.mismatch("string")
	}
	return s, nil
}

// AsBool extracts a bool value. Only the two bool singletons convert; use
// IsTruthy for general truth testing.
func (b Bound) AsBool() (bool, error) {
	v, ok := b.tok.Runtime().AsBool(b.ref)
	if !ok {
		return false, b.mismatch("bool")
	}
	return v, nil
}

// ToGo converts the value back into plain Go data: none becomes nil, lists
// and tuples become []any, dicts become map[string]any, scalars map to
// int64, float64, string and bool.
func (b Bound) ToGo() (any, error) {
	rt := b.tok.Runtime()
	ref := b.ref
	if rt.IsNone(ref) {
		return nil, nil
	}
	if v, ok := rt.AsBool(ref); ok {
		return v, nil
	}
	if v, ok := rt.AsInt(ref); ok {
		return v, nil
	}
	if v, ok := rt.AsFloat(ref); ok {
		return v, nil
	}
	if v, ok := rt.AsStr(ref); ok {
		return v, nil
	}
	if items, ok := rt.ListItems(ref); ok {
		out := make([]any, len(items))
		for i, e := range items {
			v, err := (Bound{tok: b.tok, ref: e}).ToGo()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	if keys, ok := rt.DictKeys(ref); ok {
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			// DictGet hands out a borrowed reference.
			e, _ := rt.DictGet(ref, k)
			v, err := (Bound{tok: b.tok, ref: e}).ToGo()
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, b.mismatch("go value")
}

func (b Bound) mismatch(goType string) error {
	return errors.TypeMismatch(errors.PhaseConvert, nil,
		goType, b.tok.Runtime().TypeOf(b.ref).Name)
}
