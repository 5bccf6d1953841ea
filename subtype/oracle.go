// Package subtype decides subtyping between types and computes their meet and difference.
//
// It is structural for pairs, wrappers, functions and prefabs and nominal for
// structs, whose ancestry comes from a types.Arena. Recursive types are
// handled by assuming a pair of references holds while it is being checked,
// like the assumption cache of a coinductive subtyping check.
package subtype

import (
	"github.com/cottand/occur/internal/log"
	"github.com/cottand/occur/types"
)

var logger = log.DefaultLogger.With("section", "subtype")

type Oracle struct {
	arena *types.Arena
}

// New returns an Oracle resolving references in arena, which may be nil
// if no named types or struct hierarchies are used
func New(arena *types.Arena) *Oracle {
	return &Oracle{arena: arena}
}

func (o *Oracle) Arena() *types.Arena { return o.arena }

func (o *Oracle) Resolve(t types.Type) types.Type { return o.arena.Resolve(t) }

type pairKey struct {
	lhs, rhs uint64
}

func keyOf(a, b types.Type) pairKey {
	return pairKey{lhs: a.Hash(), rhs: b.Hash()}
}

// assumptions holds the pairs of types currently being compared or combined
// through a reference. Revisiting one means we are going around a recursive type.
// A pair is only assumed while its own check is in progress.
type assumptions map[pairKey]bool

func isRef(t types.Type) bool {
	_, ok := t.(types.Ref)
	return ok
}

// Subtype carries the notation <: : every value of a is a value of b
func (o *Oracle) Subtype(a, b types.Type) bool {
	return o.subtype(a, b, make(assumptions))
}

// Equivalent holds when a and b are subtypes of each other
func (o *Oracle) Equivalent(a, b types.Type) bool {
	return types.Equal(a, b) || o.Subtype(a, b) && o.Subtype(b, a)
}

func (o *Oracle) subtype(a, b types.Type, assumed assumptions) bool {
	if types.Equal(a, b) || types.IsBottom(a) || types.IsTop(b) {
		return true
	}
	if isRef(a) || isRef(b) {
		key := keyOf(a, b)
		if assumed[key] {
			return true
		}
		assumed[key] = true
		defer delete(assumed, key)
		return o.subtype(o.Resolve(a), o.Resolve(b), assumed)
	}
	if types.IsTop(a) || types.IsBottom(b) {
		return false
	}

	// unions, intersections
	if a, ok := a.(types.Union); ok {
		for _, m := range a.Members() {
			if !o.subtype(m, b, assumed) {
				return false
			}
		}
		return true
	}
	if b, ok := b.(types.Intersection); ok {
		if b.Prop() != nil {
			a, ok := a.(types.Intersection)
			if !ok || !types.SameProp(a.Prop(), b.Prop()) {
				return false
			}
		}
		for _, m := range b.Members() {
			if !o.subtype(a, m, assumed) {
				return false
			}
		}
		return true
	}
	if a, ok := a.(types.Intersection); ok {
		for _, m := range a.Members() {
			if o.subtype(m, b, assumed) {
				return true
			}
		}
		return false
	}
	if b, ok := b.(types.Union); ok {
		for _, m := range b.Members() {
			if o.subtype(a, m, assumed) {
				return true
			}
		}
		return false
	}

	switch a := a.(type) {
	case types.Pair:
		b, ok := b.(types.Pair)
		return ok && o.subtype(a.Car, b.Car, assumed) && o.subtype(a.Cdr, b.Cdr, assumed)
	case types.Tagged:
		b, ok := b.(types.Tagged)
		return ok && a.Tag == b.Tag && o.subtype(a.Inner, b.Inner, assumed)
	case types.Struct:
		b, ok := b.(types.Struct)
		if !ok || !o.arena.IsStructSubtype(a.Name, b.Name) || len(a.Fields) < len(b.Fields) {
			return false
		}
		for i, bField := range b.Fields {
			if !o.fieldSubtype(a.Fields[i].Type, bField.Type, bField.Mutable, assumed) {
				return false
			}
		}
		return true
	case types.Prefab:
		b, ok := b.(types.Prefab)
		if !ok || !a.Key.IsSubKey(b.Key) {
			return false
		}
		for i, bField := range b.Fields {
			if !o.fieldSubtype(a.Fields[i], bField, b.Key.IsMutable(i), assumed) {
				return false
			}
		}
		return true
	case types.Function:
		b, ok := b.(types.Function)
		if !ok {
			return false
		}
		// every arrow of b must be implemented by some arrow of a
		for _, bArrow := range b.Arrows {
			found := false
			for _, aArrow := range a.Arrows {
				if o.arrowSubtype(aArrow, bArrow, assumed) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	// distinct bases, or distinct shapes
	return false
}

// fieldSubtype is covariant for immutable fields and invariant for mutable ones
func (o *Oracle) fieldSubtype(a, b types.Type, mutable bool, assumed assumptions) bool {
	if !o.subtype(a, b, assumed) {
		return false
	}
	return !mutable || o.subtype(b, a, assumed)
}

func (o *Oracle) arrowSubtype(a, b types.Arrow, assumed assumptions) bool {
	if len(a.Dom) != len(b.Dom) || len(a.Results) != len(b.Results) {
		return false
	}
	for i, bDom := range b.Dom {
		if !o.subtype(bDom, a.Dom[i], assumed) {
			return false
		}
	}
	for i, bRes := range b.Results {
		aRes := a.Results[i]
		if !o.subtype(aRes.Type, bRes.Type, assumed) {
			return false
		}
		if bRes.Latent != nil && !types.SameProp(aRes.Latent, bRes.Latent) {
			return false
		}
	}
	return true
}
