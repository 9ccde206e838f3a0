package main

import (
	"fmt"
	"math"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/extend"
	"github.com/wippyai/interp-bridge/object"
)

// The demo module exercises the extension surface end to end: a base
// type, a derived type with mutating methods, and a frozen type.

type shape struct {
	Kind string
}

type circle struct {
	Radius float64
}

func (c *circle) Repr() string { return fmt.Sprintf("circle(r=%g)", c.Radius) }

type limits struct {
	MaxRadius float64
}

func registerDemoTypes() error {
	if err := extend.Register(extend.TypeSpec[shape]{
		Name: "Shape",
		Init: func(tok attach.Token, args []object.Object) (*shape, error) {
			s := &shape{Kind: "shape"}
			if len(args) == 1 {
				kind, err := args[0].Bind(tok).AsStr()
				if err != nil {
					return nil, err
				}
				s.Kind = kind
			}
			return s, nil
		},
		Methods: map[string]extend.Method[shape]{
			"kind": func(tok attach.Token, self *shape, args []object.Object) (object.Object, error) {
				return object.FromStr(tok, self.Kind)
			},
		},
	}); err != nil {
		return err
	}

	if err := extend.Register(extend.TypeSpec[circle]{
		Name: "Circle",
		Base: extend.GoTypeOf[shape](),
		Init: func(tok attach.Token, args []object.Object) (*circle, error) {
			c := &circle{Radius: 1}
			if len(args) == 1 {
				r, err := args[0].Bind(tok).AsFloat()
				if err != nil {
					return nil, err
				}
				c.Radius = r
			}
			return c, nil
		},
		Methods: map[string]extend.Method[circle]{
			"area": func(tok attach.Token, self *circle, args []object.Object) (object.Object, error) {
				return object.FromFloat(tok, math.Pi*self.Radius*self.Radius)
			},
		},
		MethodsMut: map[string]extend.Method[circle]{
			"scale": func(tok attach.Token, self *circle, args []object.Object) (object.Object, error) {
				if len(args) != 1 {
					return object.Object{}, errors.InvalidInput(errors.PhaseCall, "scale takes 1 argument")
				}
				f, err := args[0].Bind(tok).AsFloat()
				if err != nil {
					return object.Object{}, err
				}
				self.Radius *= f
				return object.Object{}, nil
			},
		},
	}); err != nil {
		return err
	}

	return extend.Register(extend.TypeSpec[limits]{
		Name:   "Limits",
		Frozen: true,
		Init: func(tok attach.Token, args []object.Object) (*limits, error) {
			l := &limits{MaxRadius: 100}
			if len(args) == 1 {
				max, err := args[0].Bind(tok).AsFloat()
				if err != nil {
					return nil, err
				}
				l.MaxRadius = max
			}
			return l, nil
		},
		Methods: map[string]extend.Method[limits]{
			"max_radius": func(tok attach.Token, self *limits, args []object.Object) (object.Object, error) {
				return object.FromFloat(tok, self.MaxRadius)
			},
		},
	})
}

func demoModule() *extend.Module {
	return extend.NewModule("shapes").
		Func("make_circle", func(tok attach.Token, args []object.Object) (object.Object, error) {
			if len(args) != 1 {
				return object.Object{}, errors.InvalidInput(errors.PhaseCall, "make_circle takes 1 argument")
			}
			r, err := args[0].Bind(tok).AsFloat()
			if err != nil {
				return object.Object{}, err
			}
			h, err := extend.New(tok, &circle{Radius: r}, &shape{Kind: "circle"})
			if err != nil {
				return object.Object{}, err
			}
			return h.Object(), nil
		}).
		Func("total_area", func(tok attach.Token, args []object.Object) (object.Object, error) {
			if len(args) != 1 {
				return object.Object{}, errors.InvalidInput(errors.PhaseCall, "total_area takes 1 argument")
			}
			var sum float64
			err := args[0].Bind(tok).Iter(func(el object.Bound) error {
				res, err := el.CallMethod("area")
				if err != nil {
					return err
				}
				defer res.Drop()
				a, err := res.Bind(tok).AsFloat()
				if err != nil {
					return err
				}
				sum += a
				return nil
			})
			if err != nil {
				return object.Object{}, err
			}
			return object.FromFloat(tok, sum)
		}).
		Type(extend.GoTypeOf[shape]()).
		Type(extend.GoTypeOf[circle]()).
		Type(extend.GoTypeOf[limits]())
}
