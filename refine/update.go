// Package refine narrows and widens types according to claims learned about
// values reachable from them through a path of projections.
package refine

import (
	"github.com/cottand/occur/internal/failure"
	"github.com/cottand/occur/internal/log"
	"github.com/cottand/occur/paths"
	"github.com/cottand/occur/subtype"
	"github.com/cottand/occur/types"
)

var logger = log.DefaultLogger.With("section", "refine")

// Engine applies claims to types. It holds no mutable state and
// can be shared by any number of environments.
type Engine struct {
	oracle *subtype.Oracle
}

func NewEngine(oracle *subtype.Oracle) *Engine {
	return &Engine{oracle: oracle}
}

func (e *Engine) Oracle() *subtype.Oracle { return e.oracle }

// Update returns t refined by the claim that the value reached through path
// is (positive) or is not (negative) a value of newT.
//
// path is in syntactic order, outermost projection first. The result is Bottom
// when the claim cannot hold for any value of t.
func (e *Engine) Update(t, newT types.Type, positive bool, path paths.Path) types.Type {
	u := &updater{Engine: e, newT: newT, positive: positive, visiting: make(map[visit]bool)}
	result := u.update(t, path.AccessOrder())
	logger.Debug("updated type", "type", t, "claim", newT, "positive", positive, "path", path, "result", result)
	return result
}

type visit struct {
	ref  string
	left int
}

// updater holds the state of a single call to Update
type updater struct {
	*Engine
	newT     types.Type
	positive bool
	// visiting holds the references being unfolded with a given number of path elements left
	visiting map[visit]bool
}

func (u *updater) update(t types.Type, path paths.Path) types.Type {
	if types.IsBottom(t) {
		return types.Bottom
	}
	if ref, ok := t.(types.Ref); ok {
		key := visit{ref: ref.Name, left: len(path)}
		if u.visiting[key] {
			// unfolding a recursive type without consuming the path: nothing more to learn
			return t
		}
		u.visiting[key] = true
		defer delete(u.visiting, key)
	}
	resolved := u.oracle.Resolve(t)

	if len(path) == 0 {
		if u.positive {
			return u.oracle.Intersect(resolved, u.newT)
		}
		return u.oracle.Subtract(resolved, u.newT)
	}
	elem, rest := path[0], path[1:]
	checkElem(elem)

	switch t := resolved.(type) {
	case types.Union:
		members := t.Members()
		results := make([]types.Type, 0, len(members))
		for _, m := range members {
			results = append(results, u.update(m, path))
		}
		return types.NewUnion(results...)
	case types.Intersection:
		acc := types.Top
		for _, m := range t.Members() {
			acc = u.oracle.Intersect(acc, u.update(m, path))
			if types.IsBottom(acc) {
				return types.Bottom
			}
		}
		return types.Refine(acc, t.Prop())
	}

	switch elem := elem.(type) {
	case paths.Car:
		if pair, ok := resolved.(types.Pair); ok {
			return types.NewPair(u.update(pair.Car, rest), pair.Cdr)
		}
		return u.fallback(resolved, types.NewPair(u.update(types.Top, rest), types.Top))
	case paths.Cdr:
		if pair, ok := resolved.(types.Pair); ok {
			return types.NewPair(pair.Car, u.update(pair.Cdr, rest))
		}
		return u.fallback(resolved, types.NewPair(types.Top, u.update(types.Top, rest)))
	case paths.SyntaxUnwrap:
		return u.updateTagged(resolved, types.TagSyntax, rest)
	case paths.PromiseForce:
		return u.updateTagged(resolved, types.TagPromise, rest)
	case paths.StructField:
		if s, ok := resolved.(types.Struct); ok && u.oracle.Subtype(s, elem.Struct) {
			return u.updateStructField(s, elem.Index, rest)
		}
		logger.Debug("struct accessor does not apply, using fallback", "type", resolved, "elem", elem)
		fields := make([]types.Field, len(elem.Struct.Fields))
		for i, declared := range elem.Struct.Fields {
			// mutable fields keep their declared type
			fields[i] = types.Field{Type: types.Top}
			if declared.Mutable {
				fields[i] = declared
			}
		}
		fields[elem.Index].Type = u.update(types.Top, rest)
		return u.fallback(resolved, types.NewStruct(elem.Struct.Name, fields...))
	case paths.PrefabField:
		if p, ok := resolved.(types.Prefab); ok && p.Key.IsSubKey(elem.Key) {
			return u.updatePrefabField(p, elem.Index, rest)
		}
		fields := prefabSkeleton(resolved, elem.Key)
		fields[elem.Index] = u.update(types.Top, rest)
		if types.IsBottom(fields[elem.Index]) {
			return types.Bottom
		}
		return u.fallback(resolved, types.NewPrefab(elem.Key, fields...))
	case paths.FunctionResult:
		fn, ok := resolved.(types.Function)
		if ok {
			if rng, single := fn.SingleResult(); single {
				return fn.WithSingleResult(u.update(rng, rest))
			}
		}
		if ok || types.IsTop(resolved) {
			// no arrow can be made up for an unknown function, so nothing is learnt
			return resolved
		}
		// bases, pairs, structs, prefabs and wrappers have no result
		return types.Bottom
	}
	failure.Raise("unknown path element %T", elem)
	return nil
}

// fallback is used when the shape of t does not statically support the projection:
// skeleton is the least structure the claim requires, and t is narrowed to it
func (u *updater) fallback(t, skeleton types.Type) types.Type {
	if types.IsBottom(skeleton) {
		return types.Bottom
	}
	return u.oracle.Intersect(t, skeleton)
}

// prefabSkeleton returns the fields of the least prefab of key. Prefab keys do not
// declare field types, so a mutable field takes its type from t when t is a prefab
// of an ancestor key, and is unconstrained otherwise.
func prefabSkeleton(t types.Type, key types.PrefabKey) []types.Type {
	fields := make([]types.Type, key.FieldCount())
	for i := range fields {
		fields[i] = types.Top
	}
	if p, ok := t.(types.Prefab); ok && key.IsSubKey(p.Key) {
		for i, f := range p.Fields {
			if p.Key.IsMutable(i) {
				fields[i] = f
			}
		}
	}
	return fields
}

func (u *updater) updateTagged(t types.Type, tag types.Tag, rest paths.Path) types.Type {
	if tagged, ok := t.(types.Tagged); ok && tagged.Tag == tag {
		return types.NewTagged(tag, u.update(tagged.Inner, rest))
	}
	return u.fallback(t, types.NewTagged(tag, u.update(types.Top, rest)))
}

// updateStructField rebuilds s with field index refined. No struct value
// is built when the field refines to Bottom.
func (u *updater) updateStructField(s types.Struct, index int, rest paths.Path) types.Type {
	refined := u.update(s.Fields[index].Type, rest)
	if types.IsBottom(refined) {
		return types.Bottom
	}
	fields := make([]types.Field, len(s.Fields))
	copy(fields, s.Fields)
	fields[index].Type = refined
	return types.Struct{Name: s.Name, Fields: fields}
}

func (u *updater) updatePrefabField(p types.Prefab, index int, rest paths.Path) types.Type {
	refined := u.update(p.Fields[index], rest)
	if types.IsBottom(refined) {
		return types.Bottom
	}
	fields := make([]types.Type, len(p.Fields))
	copy(fields, p.Fields)
	fields[index] = refined
	return types.Prefab{Key: p.Key, Fields: fields}
}

// checkElem rejects path elements that no well-behaved checker builds:
// out of range fields, and mutable fields, since mutation breaks path based aliasing
func checkElem(elem paths.Elem) {
	switch elem := elem.(type) {
	case paths.StructField:
		if elem.Index < 0 || elem.Index >= len(elem.Struct.Fields) {
			failure.Raise("field %d out of range for struct %s", elem.Index, elem.Struct.Name)
		}
		if elem.Struct.Fields[elem.Index].Mutable {
			failure.Raise("path through mutable field %d of struct %s", elem.Index, elem.Struct.Name)
		}
	case paths.PrefabField:
		if elem.Index < 0 || elem.Index >= elem.Key.FieldCount() {
			failure.Raise("field %d out of range for prefab %s", elem.Index, elem.Key.Name)
		}
		if elem.Key.IsMutable(elem.Index) {
			failure.Raise("path through mutable field %d of prefab %s", elem.Index, elem.Key.Name)
		}
	}
}
