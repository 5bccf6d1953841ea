package refine

import (
	"github.com/cottand/occur/paths"
	"github.com/cottand/occur/types"
)

// Project returns the type of the value reached from a value of type t through path,
// given in syntactic order. It only reads t: nothing is refined.
//
// Projections that t does not support lead to Top, except through unions where
// members that cannot support the projection are ignored.
func (e *Engine) Project(t types.Type, path paths.Path) types.Type {
	projected, ok := e.project(t, path.AccessOrder(), make(map[visit]bool))
	if !ok {
		return types.Top
	}
	return projected
}

// project returns false when no value of t supports the projection
func (e *Engine) project(t types.Type, path paths.Path, visiting map[visit]bool) (types.Type, bool) {
	if len(path) == 0 || types.IsBottom(t) {
		return t, true
	}
	if ref, ok := t.(types.Ref); ok {
		key := visit{ref: ref.Name, left: len(path)}
		if visiting[key] {
			return types.Top, true
		}
		visiting[key] = true
		defer delete(visiting, key)
	}
	elem, rest := path[0], path[1:]
	checkElem(elem)

	resolved := e.oracle.Resolve(t)
	switch t := resolved.(type) {
	case types.Union:
		var results []types.Type
		for _, m := range t.Members() {
			if r, ok := e.project(m, path, visiting); ok {
				results = append(results, r)
			}
		}
		if len(results) == 0 {
			return nil, false
		}
		return types.NewUnion(results...), true
	case types.Intersection:
		acc, supported := types.Top, false
		for _, m := range t.Members() {
			if r, ok := e.project(m, path, visiting); ok {
				acc = e.oracle.Intersect(acc, r)
				supported = true
			}
		}
		return acc, supported
	}
	next, ok := e.projectOne(resolved, elem)
	if !ok {
		return nil, false
	}
	return e.project(next, rest, visiting)
}

// projectOne takes a single projection step on a resolved type that is neither a union nor an intersection
func (e *Engine) projectOne(t types.Type, elem paths.Elem) (types.Type, bool) {
	switch elem := elem.(type) {
	case paths.Car:
		if pair, ok := t.(types.Pair); ok {
			return pair.Car, true
		}
	case paths.Cdr:
		if pair, ok := t.(types.Pair); ok {
			return pair.Cdr, true
		}
	case paths.SyntaxUnwrap:
		if tagged, ok := t.(types.Tagged); ok && tagged.Tag == types.TagSyntax {
			return tagged.Inner, true
		}
	case paths.PromiseForce:
		if tagged, ok := t.(types.Tagged); ok && tagged.Tag == types.TagPromise {
			return tagged.Inner, true
		}
	case paths.StructField:
		if s, ok := t.(types.Struct); ok && e.oracle.Subtype(s, elem.Struct) {
			return s.Fields[elem.Index].Type, true
		}
	case paths.PrefabField:
		if p, ok := t.(types.Prefab); ok && p.Key.IsSubKey(elem.Key) {
			return p.Fields[elem.Index], true
		}
	case paths.FunctionResult:
		if fn, ok := t.(types.Function); ok {
			if rng, single := fn.SingleResult(); single {
				return rng, true
			}
			return types.Top, true
		}
	}
	if types.IsTop(t) {
		return types.Top, true
	}
	return nil, false
}
