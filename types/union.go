package types

import (
	"cmp"
	"slices"
	"sort"

	"github.com/hashicorp/go-set/v3"
	xset "github.com/xtgo/set"

	"github.com/cottand/occur/util"
)

// Union is an unordered, deduplicated set of at least two members,
// none of which is Top, Bottom or itself a Union. Build it with NewUnion.
type Union struct {
	members []Type
}

// Intersection is the meet of its members, further refined by a proposition
// which may be nil. Build it with NewIntersection or Refine.
type Intersection struct {
	members []Type
	prop    Prop
}

// byHash sorts types so that xtgo/set can treat the slice as a set
type byHash []Type

func (s byHash) Len() int           { return len(s) }
func (s byHash) Less(i, j int) bool { return s[i].Hash() < s[j].Hash() }
func (s byHash) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func sortedSet(ts []Type) []Type {
	data := byHash(ts)
	sort.Sort(data)
	return ts[:xset.Uniq(data)]
}

// NewUnion flattens nested unions, drops Bottom members and duplicates,
// and collapses to Top, Bottom or the single remaining member when possible
func NewUnion(ts ...Type) Type {
	flat := make([]Type, 0, len(ts))
	for _, t := range ts {
		switch t := t.(type) {
		case Extreme:
			if t.IsTop() {
				return Top
			}
		case Union:
			flat = append(flat, t.members...)
		default:
			flat = append(flat, t)
		}
	}
	flat = sortedSet(flat)
	switch len(flat) {
	case 0:
		return Bottom
	case 1:
		return flat[0]
	}
	return Union{members: flat}
}

// Members returns a copy of the members of the union, in a stable order
func (t Union) Members() []Type { return slices.Clone(t.members) }

func (Union) isType()          {}
func (t Union) String() string { return "(U " + util.JoinString(t.members, " ") + ")" }
func (t Union) Hash() uint64 {
	var hash uint64 = 2166136261
	for _, m := range t.members {
		hash = mix(hash, m.Hash())
	}
	return hash * 31
}

// NewIntersection flattens nested intersections without propositions,
// drops Top members and duplicates, and collapses to Top, Bottom or
// the single remaining member when possible.
//
// It performs no semantic simplification: two disjoint members are kept
// as they are. Use the subtype package to compute a meet.
func NewIntersection(ts ...Type) Type {
	members := set.NewHashSet[Type, uint64](len(ts))
	for _, t := range ts {
		switch t := t.(type) {
		case Extreme:
			if t.IsBottom() {
				return Bottom
			}
		case Intersection:
			if t.prop != nil {
				members.Insert(t)
				continue
			}
			members.InsertSlice(t.members)
		default:
			members.Insert(t)
		}
	}
	flat := members.Slice()
	switch len(flat) {
	case 0:
		return Top
	case 1:
		return flat[0]
	}
	slices.SortFunc(flat, func(a, b Type) int { return cmp.Compare(a.Hash(), b.Hash()) })
	return Intersection{members: flat}
}

// Refine attaches prop to t. The result is Bottom when t is, and t itself when prop is nil.
func Refine(t Type, prop Prop) Type {
	if prop == nil || IsBottom(t) {
		return t
	}
	if i, ok := t.(Intersection); ok {
		if i.prop == nil {
			return Intersection{members: i.members, prop: prop}
		}
		if propHash(i.prop) == propHash(prop) {
			return i
		}
	}
	return Intersection{members: []Type{t}, prop: prop}
}

// Members returns a copy of the members of the intersection, in a stable order
func (t Intersection) Members() []Type { return slices.Clone(t.members) }

// Prop is the attached proposition, possibly nil
func (t Intersection) Prop() Prop { return t.prop }

func (Intersection) isType() {}
func (t Intersection) String() string {
	if t.prop == nil {
		return "(∩ " + util.JoinString(t.members, " ") + ")"
	}
	if len(t.members) == 1 {
		return "(Refine " + t.members[0].String() + " " + t.prop.String() + ")"
	}
	return "(Refine (∩ " + util.JoinString(t.members, " ") + ") " + t.prop.String() + ")"
}
func (t Intersection) Hash() uint64 {
	var hash uint64 = 16777619
	for _, m := range t.members {
		hash = mix(hash, m.Hash())
	}
	return mix(hash*43, propHash(t.prop))
}

// SameProp reports whether two propositions are the same, nil being the trivial one
func SameProp(p, q Prop) bool {
	return propHash(p) == propHash(q)
}
