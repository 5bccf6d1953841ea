package subtype

import (
	"github.com/cottand/occur/types"
)

// Intersect computes the meet of a and b: the values belonging to both.
// It returns Bottom when they are disjoint and never fails.
func (o *Oracle) Intersect(a, b types.Type) types.Type {
	return o.intersect(a, b, make(assumptions))
}

func (o *Oracle) intersect(a, b types.Type, assumed assumptions) types.Type {
	if o.Subtype(a, b) {
		return a
	}
	if o.Subtype(b, a) {
		return b
	}
	if isRef(a) || isRef(b) {
		key := keyOf(a, b)
		if assumed[key] {
			// going around a recursive type: keep the meet symbolic
			logger.Debug("symbolic meet of recursive types", "a", a, "b", b)
			return types.NewIntersection(a, b)
		}
		assumed[key] = true
		defer delete(assumed, key)
		return o.intersect(o.Resolve(a), o.Resolve(b), assumed)
	}

	if a, ok := a.(types.Union); ok {
		return o.intersectMembers(a.Members(), b, assumed)
	}
	if b, ok := b.(types.Union); ok {
		return o.intersectMembers(b.Members(), a, assumed)
	}
	aInter, aIsInter := a.(types.Intersection)
	bInter, bIsInter := b.(types.Intersection)
	switch {
	case aIsInter && bIsInter:
		acc := a
		for _, m := range bInter.Members() {
			acc = o.intersect(acc, m, assumed)
		}
		return types.Refine(acc, bInter.Prop())
	case aIsInter:
		return o.intersectInto(aInter, b, assumed)
	case bIsInter:
		return o.intersectInto(bInter, a, assumed)
	}

	switch a := a.(type) {
	case types.Pair:
		if b, ok := b.(types.Pair); ok {
			return types.NewPair(o.intersect(a.Car, b.Car, assumed), o.intersect(a.Cdr, b.Cdr, assumed))
		}
	case types.Tagged:
		if b, ok := b.(types.Tagged); ok && a.Tag == b.Tag {
			return types.NewTagged(a.Tag, o.intersect(a.Inner, b.Inner, assumed))
		}
	case types.Struct:
		if b, ok := b.(types.Struct); ok {
			return o.intersectStructs(a, b, assumed)
		}
	case types.Prefab:
		if b, ok := b.(types.Prefab); ok {
			return o.intersectPrefabs(a, b, assumed)
		}
	case types.Function:
		if _, ok := b.(types.Function); ok {
			// no simpler form for a value implementing both
			return types.NewIntersection(a, b)
		}
	}
	// distinct bases, or incompatible shapes
	return types.Bottom
}

func (o *Oracle) intersectMembers(members []types.Type, with types.Type, assumed assumptions) types.Type {
	results := make([]types.Type, 0, len(members))
	for _, m := range members {
		results = append(results, o.intersect(m, with, assumed))
	}
	return types.NewUnion(results...)
}

// intersectInto narrows the members of inter that have a precise meet with t,
// and otherwise adds t as a new member. The proposition of inter is kept.
func (o *Oracle) intersectInto(inter types.Intersection, t types.Type, assumed assumptions) types.Type {
	members := inter.Members()
	merged := false
	for i, m := range members {
		r := o.intersect(m, t, assumed)
		if types.IsBottom(r) {
			return types.Bottom
		}
		if symbolic, ok := r.(types.Intersection); ok && symbolic.Prop() == nil {
			continue
		}
		members[i] = r
		merged = true
	}
	if !merged {
		members = append(members, t)
	}
	return types.Refine(types.NewIntersection(members...), inter.Prop())
}

// intersectStructs keeps the most specific of two related structs, narrowing
// the fields they share. Unrelated structs are disjoint.
func (o *Oracle) intersectStructs(a, b types.Struct, assumed assumptions) types.Type {
	sub, super := a, b
	switch {
	case o.arena.IsStructSubtype(a.Name, b.Name):
	case o.arena.IsStructSubtype(b.Name, a.Name):
		sub, super = b, a
	default:
		return types.Bottom
	}
	if len(sub.Fields) < len(super.Fields) {
		return types.Bottom
	}
	fields := make([]types.Field, len(sub.Fields))
	copy(fields, sub.Fields)
	for i, superField := range super.Fields {
		meet, ok := o.intersectField(fields[i].Type, superField.Type, fields[i].Mutable || superField.Mutable, assumed)
		if !ok {
			return types.Bottom
		}
		fields[i].Type = meet
	}
	return types.NewStruct(sub.Name, fields...)
}

func (o *Oracle) intersectPrefabs(a, b types.Prefab, assumed assumptions) types.Type {
	sub, super := a, b
	switch {
	case a.Key.IsSubKey(b.Key):
	case b.Key.IsSubKey(a.Key):
		sub, super = b, a
	default:
		return types.Bottom
	}
	fields := make([]types.Type, len(sub.Fields))
	copy(fields, sub.Fields)
	for i, superField := range super.Fields {
		meet, ok := o.intersectField(fields[i], superField, sub.Key.IsMutable(i), assumed)
		if !ok {
			return types.Bottom
		}
		fields[i] = meet
	}
	return types.NewPrefab(sub.Key, fields...)
}

// intersectField narrows immutable fields. A mutable field can only
// be shared when both sides agree on its type.
func (o *Oracle) intersectField(a, b types.Type, mutable bool, assumed assumptions) (types.Type, bool) {
	if !mutable {
		return o.intersect(a, b, assumed), true
	}
	return a, o.Equivalent(a, b)
}

// Subtract computes the values of a that are not values of b.
// When the difference cannot be expressed precisely the result errs on the side
// of keeping values of a, never of removing values outside b.
func (o *Oracle) Subtract(a, b types.Type) types.Type {
	return o.subtract(a, b, make(assumptions))
}

func (o *Oracle) subtract(a, b types.Type, assumed assumptions) types.Type {
	if types.IsBottom(b) {
		return a
	}
	if o.Subtype(a, b) {
		return types.Bottom
	}
	if isRef(a) || isRef(b) {
		key := keyOf(a, b)
		if assumed[key] {
			return a
		}
		assumed[key] = true
		defer delete(assumed, key)
		return o.subtract(o.Resolve(a), o.Resolve(b), assumed)
	}

	switch a := a.(type) {
	case types.Union:
		results := make([]types.Type, 0, len(a.Members()))
		for _, m := range a.Members() {
			results = append(results, o.subtract(m, b, assumed))
		}
		return types.NewUnion(results...)
	case types.Intersection:
		// (A ∩ B) \ C = (A \ C) ∩ (B \ C)
		acc := types.Top
		for _, m := range a.Members() {
			acc = o.intersect(acc, o.subtract(m, b, assumed), assumed)
		}
		return types.Refine(acc, a.Prop())
	}
	if b, ok := b.(types.Union); ok {
		acc := a
		for _, m := range b.Members() {
			acc = o.subtract(acc, m, assumed)
		}
		return acc
	}

	switch a := a.(type) {
	case types.Pair:
		b, ok := b.(types.Pair)
		if !ok {
			return a
		}
		if o.Subtype(a.Cdr, b.Cdr) {
			return types.NewPair(o.subtract(a.Car, b.Car, assumed), a.Cdr)
		}
		if o.Subtype(a.Car, b.Car) {
			return types.NewPair(a.Car, o.subtract(a.Cdr, b.Cdr, assumed))
		}
	case types.Tagged:
		if b, ok := b.(types.Tagged); ok && a.Tag == b.Tag {
			return types.NewTagged(a.Tag, o.subtract(a.Inner, b.Inner, assumed))
		}
	}
	return a
}
