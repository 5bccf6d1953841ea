package types

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strings"

	"github.com/cottand/occur/internal/failure"
	"github.com/cottand/occur/util"
)

// Type is an immutable value of the type lattice.
//
// The set of implementations is closed (see the assertions below) and callers
// are expected to type-switch over it, after calling Arena.Resolve so that
// a Ref head is never inspected structurally.
type Type interface {
	fmt.Stringer
	Hash() uint64
	isType()
}

var (
	_ Type = Extreme{}
	_ Type = Base{}
	_ Type = Pair{}
	_ Type = Struct{}
	_ Type = Prefab{}
	_ Type = Tagged{}
	_ Type = Function{}
	_ Type = Union{}
	_ Type = Intersection{}
	_ Type = Ref{}
)

// Equal compares types structurally, through their hashes
func Equal(this, other Type) bool {
	return this.Hash() == other.Hash()
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func mix(hash, with uint64) uint64 {
	return hash*1099511628211 ^ with
}

// Extreme is Top (every value) or Bottom (no value)
type Extreme struct {
	bottom bool
}

var (
	Top    Type = Extreme{bottom: false}
	Bottom Type = Extreme{bottom: true}
)

func (Extreme) isType()          {}
func (t Extreme) IsBottom() bool { return t.bottom }
func (t Extreme) IsTop() bool    { return !t.bottom }
func (t Extreme) String() string {
	if t.bottom {
		return "Nothing"
	}
	return "Top"
}
func (t Extreme) Hash() uint64 {
	if t.bottom {
		return 16777619
	}
	return 1099511628211
}

func IsBottom(t Type) bool {
	e, ok := t.(Extreme)
	return ok && e.bottom
}

func IsTop(t Type) bool {
	e, ok := t.(Extreme)
	return ok && !e.bottom
}

// Base is an opaque primitive type. Two bases are either equal or disjoint.
type Base struct {
	Name string
}

var (
	Number = Base{Name: "Number"}
	String = Base{Name: "String"}
	Symbol = Base{Name: "Symbol"}
	Char   = Base{Name: "Char"}
	Null   = Base{Name: "Null"}
	Void   = Base{Name: "Void"}
	True   = Base{Name: "True"}
	False  = Base{Name: "False"}

	Boolean = NewUnion(True, False)
)

func (Base) isType()          {}
func (t Base) String() string { return t.Name }
func (t Base) Hash() uint64   { return mix(2166136261, hashString(t.Name)) }

// Pair is a two slot product, never holding Bottom (see NewPair)
type Pair struct {
	Car, Cdr Type
}

// NewPair returns Bottom if either component is Bottom
func NewPair(car, cdr Type) Type {
	if IsBottom(car) || IsBottom(cdr) {
		return Bottom
	}
	return Pair{Car: car, Cdr: cdr}
}

func (Pair) isType()          {}
func (t Pair) String() string { return "(Pairof " + t.Car.String() + " " + t.Cdr.String() + ")" }
func (t Pair) Hash() uint64 {
	return mix(mix(433, t.Car.Hash()), t.Cdr.Hash()*9973)
}

type Field struct {
	Type    Type
	Mutable bool
}

// Struct is a nominal product. Parent fields come first, and ancestry is
// declared in an Arena through DeclareStruct.
type Struct struct {
	Name   string
	Fields []Field
}

// NewStruct returns Bottom if any field is Bottom
func NewStruct(name string, fields ...Field) Type {
	for _, f := range fields {
		if IsBottom(f.Type) {
			return Bottom
		}
	}
	return Struct{Name: name, Fields: slices.Clone(fields)}
}

// Immutable builds fields which cannot be set after construction
func Immutable(ts ...Type) []Field {
	fields := make([]Field, len(ts))
	for i, t := range ts {
		fields[i] = Field{Type: t}
	}
	return fields
}

func (Struct) isType() {}
func (t Struct) String() string {
	var sb strings.Builder
	sb.WriteString("(Struct ")
	sb.WriteString(t.Name)
	for _, f := range t.Fields {
		sb.WriteByte(' ')
		if f.Mutable {
			sb.WriteString("#:mutable ")
		}
		sb.WriteString(f.Type.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
func (t Struct) Hash() uint64 {
	hash := mix(15487469, hashString(t.Name))
	for _, f := range t.Fields {
		hash = mix(hash, f.Type.Hash())
		if f.Mutable {
			hash = mix(hash, 32452843)
		}
	}
	return hash
}

// PrefabKey identifies a prefab structure type. Fields counts only the fields
// declared at this level, the parent's come first.
type PrefabKey struct {
	Name   string
	Fields int
	// Mutable holds indexes, relative to this level, of mutable fields
	Mutable []int
	Parent  *PrefabKey
}

// FieldCount is the total number of fields, including inherited ones
func (k PrefabKey) FieldCount() int {
	if k.Parent == nil {
		return k.Fields
	}
	return k.Parent.FieldCount() + k.Fields
}

// IsMutable reports whether absolute field index i is mutable
func (k PrefabKey) IsMutable(i int) bool {
	inherited := 0
	if k.Parent != nil {
		inherited = k.Parent.FieldCount()
	}
	if i < inherited {
		return k.Parent.IsMutable(i)
	}
	return slices.Contains(k.Mutable, i-inherited)
}

func (k PrefabKey) Equal(other PrefabKey) bool {
	if k.Name != other.Name || k.Fields != other.Fields || !slices.Equal(k.Mutable, other.Mutable) {
		return false
	}
	if k.Parent == nil || other.Parent == nil {
		return k.Parent == nil && other.Parent == nil
	}
	return k.Parent.Equal(*other.Parent)
}

// IsSubKey reports whether a prefab with key k may be used where
// a prefab with key other is expected, that is other is k or one of its ancestors
func (k PrefabKey) IsSubKey(other PrefabKey) bool {
	for current := &k; current != nil; current = current.Parent {
		if current.Equal(other) {
			return true
		}
	}
	return false
}

func (k PrefabKey) Hash() uint64 {
	hash := mix(104729, hashString(k.Name))
	hash = mix(hash, uint64(k.Fields))
	for _, m := range k.Mutable {
		hash = mix(hash, uint64(m)+7919)
	}
	if k.Parent != nil {
		hash = mix(hash, k.Parent.Hash())
	}
	return hash
}

func (k PrefabKey) String() string {
	var sb strings.Builder
	for current := &k; current != nil; current = current.Parent {
		if current != &k {
			sb.WriteByte(' ')
		}
		sb.WriteString(current.Name)
		fmt.Fprintf(&sb, " %d", current.Fields)
		if len(current.Mutable) > 0 {
			fmt.Fprintf(&sb, " #%v", current.Mutable)
		}
	}
	return sb.String()
}

type Prefab struct {
	Key    PrefabKey
	Fields []Type
}

// NewPrefab returns Bottom if any field is Bottom.
// The number of fields must match the key.
func NewPrefab(key PrefabKey, fields ...Type) Type {
	if len(fields) != key.FieldCount() {
		failure.Raise("prefab %s expects %d fields, got %d", key.Name, key.FieldCount(), len(fields))
	}
	if slices.ContainsFunc(fields, IsBottom) {
		return Bottom
	}
	return Prefab{Key: key, Fields: slices.Clone(fields)}
}

func (Prefab) isType() {}
func (t Prefab) String() string {
	if len(t.Fields) == 0 {
		return "(Prefab (" + t.Key.String() + "))"
	}
	return "(Prefab (" + t.Key.String() + ") " + util.JoinString(t.Fields, " ") + ")"
}
func (t Prefab) Hash() uint64 {
	hash := mix(10007, t.Key.Hash())
	for _, f := range t.Fields {
		hash = mix(hash, f.Hash())
	}
	return hash
}

type Tag uint8

const (
	_ Tag = iota
	TagSyntax
	TagPromise
)

func (t Tag) String() string {
	switch t {
	case TagSyntax:
		return "Syntaxof"
	case TagPromise:
		return "Promise"
	default:
		return "invalid"
	}
}

// Tagged is a single slot wrapper: syntax objects and delayed values
type Tagged struct {
	Tag   Tag
	Inner Type
}

// NewTagged returns Bottom when inner is Bottom
func NewTagged(tag Tag, inner Type) Type {
	if IsBottom(inner) {
		return Bottom
	}
	return Tagged{Tag: tag, Inner: inner}
}

func NewSyntax(inner Type) Type  { return NewTagged(TagSyntax, inner) }
func NewPromise(inner Type) Type { return NewTagged(TagPromise, inner) }

func (Tagged) isType()          {}
func (t Tagged) String() string { return "(" + t.Tag.String() + " " + t.Inner.String() + ")" }
func (t Tagged) Hash() uint64   { return mix(uint64(t.Tag)*53, t.Inner.Hash()) }

// Prop is a logical proposition attached to a type. It is opaque to this
// package: it is only compared, rendered and carried along.
type Prop interface {
	fmt.Stringer
}

func propHash(p Prop) uint64 {
	if p == nil {
		return 0
	}
	return hashString(p.String())
}

// Result describes one returned value of an Arrow. Latent is nil when
// calling the function teaches nothing beyond the returned type.
type Result struct {
	Type   Type
	Latent Prop
}

type Arrow struct {
	Dom     []Type
	Results []Result
}

func (a Arrow) String() string {
	var rng string
	switch len(a.Results) {
	case 1:
		rng = a.Results[0].Type.String()
	default:
		rs := make([]string, len(a.Results))
		for i, r := range a.Results {
			rs[i] = r.Type.String()
		}
		rng = "(Values " + strings.Join(rs, " ") + ")"
	}
	if len(a.Dom) == 0 {
		return "(-> " + rng + ")"
	}
	return "(-> " + util.JoinString(a.Dom, " ") + " " + rng + ")"
}

func (a Arrow) Hash() uint64 {
	var hash uint64 = 2166136261
	for _, d := range a.Dom {
		hash = mix(hash, d.Hash())
	}
	hash = mix(hash, uint64(len(a.Dom)))
	for _, r := range a.Results {
		hash = mix(hash, r.Type.Hash())
		hash = mix(hash, propHash(r.Latent))
	}
	return hash
}

// Function is a set of arrows, more than one for case-lambda style overloading
type Function struct {
	Arrows []Arrow
}

func NewFunction(arrows ...Arrow) Type {
	return Function{Arrows: slices.Clone(arrows)}
}

// Fn builds a single arrow function with one plain result
func Fn(dom []Type, rng Type) Type {
	return NewFunction(Arrow{Dom: dom, Results: []Result{{Type: rng}}})
}

// SingleResult returns the result type of a function with a single arrow
// returning a single value with no latent proposition
func (t Function) SingleResult() (Type, bool) {
	if len(t.Arrows) != 1 {
		return nil, false
	}
	results := t.Arrows[0].Results
	if len(results) != 1 || results[0].Latent != nil {
		return nil, false
	}
	return results[0].Type, true
}

// WithSingleResult replaces the result of a function for which SingleResult succeeds
func (t Function) WithSingleResult(rng Type) Function {
	arrow := t.Arrows[0]
	return Function{Arrows: []Arrow{{
		Dom:     arrow.Dom,
		Results: []Result{{Type: rng}},
	}}}
}

func (Function) isType() {}
func (t Function) String() string {
	if len(t.Arrows) == 1 {
		return t.Arrows[0].String()
	}
	return "(case-> " + util.JoinString(t.Arrows, " ") + ")"
}
func (t Function) Hash() uint64 {
	var hash uint64 = 104723
	for _, a := range t.Arrows {
		hash = mix(hash, a.Hash())
	}
	return hash
}

// Ref names a definition in an Arena. It is how recursive types are written.
type Ref struct {
	Name string
}

func (Ref) isType()          {}
func (t Ref) String() string { return t.Name }
func (t Ref) Hash() uint64   { return mix(1299709, hashString(t.Name)) }
