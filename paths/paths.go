// Package paths describes how a value was reached from a root:
// a variable or an opaque expression, followed by projections such as
// car, cdr, struct field accessors or promise forcing.
package paths

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strings"

	"github.com/cottand/occur/internal/failure"
	"github.com/cottand/occur/types"
	"github.com/cottand/occur/util"
)

// Elem is a single projection step. The set of implementations is closed.
type Elem interface {
	fmt.Stringer
	Hash() uint64
	isElem()
}

var (
	_ Elem = Car{}
	_ Elem = Cdr{}
	_ Elem = SyntaxUnwrap{}
	_ Elem = PromiseForce{}
	_ Elem = StructField{}
	_ Elem = PrefabField{}
	_ Elem = FunctionResult{}
)

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

type Car struct{}

func (Car) isElem()        {}
func (Car) String() string { return "car" }
func (Car) Hash() uint64   { return 3 }

type Cdr struct{}

func (Cdr) isElem()        {}
func (Cdr) String() string { return "cdr" }
func (Cdr) Hash() uint64   { return 5 }

type SyntaxUnwrap struct{}

func (SyntaxUnwrap) isElem()        {}
func (SyntaxUnwrap) String() string { return "syntax-e" }
func (SyntaxUnwrap) Hash() uint64   { return 7 }

type PromiseForce struct{}

func (PromiseForce) isElem()        {}
func (PromiseForce) String() string { return "force" }
func (PromiseForce) Hash() uint64   { return 11 }

// StructField accesses field Index of Struct, the struct type that declares the accessor
type StructField struct {
	Struct types.Struct
	Index  int
}

func (StructField) isElem() {}
func (e StructField) String() string {
	return fmt.Sprintf("%s-%d", e.Struct.Name, e.Index)
}
func (e StructField) Hash() uint64 {
	return (e.Struct.Hash()*31 ^ uint64(e.Index)) * 13
}

// StructFieldOf builds the accessor of field index of the struct t,
// which must be a types.Struct once resolved
func StructFieldOf(t types.Type, index int) StructField {
	s, ok := t.(types.Struct)
	if !ok {
		failure.Raise("accessor of field %d on non struct type %s", index, t)
	}
	return StructField{Struct: s, Index: index}
}

// PrefabField accesses field Index of prefabs whose key is a sub key of Key
type PrefabField struct {
	Key   types.PrefabKey
	Index int
}

func (PrefabField) isElem() {}
func (e PrefabField) String() string {
	return fmt.Sprintf("%s-%d", e.Key.Name, e.Index)
}
func (e PrefabField) Hash() uint64 {
	return (e.Key.Hash()*37 ^ uint64(e.Index)) * 17
}

// FunctionResult is the result of calling an accessor function.
// It is used to refine private fields that are only reachable through a getter.
type FunctionResult struct{}

func (FunctionResult) isElem()        {}
func (FunctionResult) String() string { return "result" }
func (FunctionResult) Hash() uint64   { return 19 }

// Path is a sequence of projections in syntactic order: the outermost
// projection comes first. (car (cdr x)) has path [car cdr].
type Path []Elem

// AccessOrder returns the path in the order projections are applied to the root,
// innermost first. Applying it twice yields the original path.
func (p Path) AccessOrder() Path {
	return slices.Collect(util.Reverse(p))
}

func (p Path) Hash() uint64 {
	var hash uint64 = 2166136261
	for _, e := range p {
		hash = hash*16777619 ^ e.Hash()
	}
	return hash
}

func (p Path) Equal(other Path) bool {
	return slices.EqualFunc(p, other, func(a, b Elem) bool { return a.Hash() == b.Hash() })
}

func (p Path) String() string {
	return "[" + util.JoinString(p, " ") + "]"
}

// Root is where an Object starts: a Var or an Opaque expression
type Root interface {
	fmt.Stringer
	Hash() uint64
	isRoot()
}

var (
	_ Root = Var{}
	_ Root = Opaque{}
)

type Var struct {
	Name string
}

func (Var) isRoot()          {}
func (r Var) String() string { return r.Name }
func (r Var) Hash() uint64   { return hashString(r.Name) * 23 }

// Opaque is an expression the checker does not track
type Opaque struct {
	Label string
}

func (Opaque) isRoot()          {}
func (r Opaque) String() string { return "<" + r.Label + ">" }
func (r Opaque) Hash() uint64   { return hashString(r.Label) * 29 }

// Object is a symbolic value: Path applied to Root.
// The zero Object has no root and denotes nothing.
type Object struct {
	Root Root
	Path Path
}

func VarObject(name string, path ...Elem) Object {
	return Object{Root: Var{Name: name}, Path: path}
}

func (o Object) IsZero() bool { return o.Root == nil }

// VarName returns the name of the root variable, if the root is a variable
func (o Object) VarName() (string, bool) {
	v, ok := o.Root.(Var)
	return v.Name, ok
}

// Then returns the object reached by applying outer, in syntactic order, to o
func (o Object) Then(outer Path) Object {
	path := make(Path, 0, len(outer)+len(o.Path))
	path = append(path, outer...)
	path = append(path, o.Path...)
	return Object{Root: o.Root, Path: path}
}

func (o Object) Hash() uint64 {
	if o.Root == nil {
		return 0
	}
	return o.Root.Hash()*31 ^ o.Path.Hash()
}

func (o Object) Equal(other Object) bool {
	if o.Root == nil || other.Root == nil {
		return o.Root == nil && other.Root == nil
	}
	return o.Root.Hash() == other.Root.Hash() && o.Path.Equal(other.Path)
}

// String renders the object as nested accessor applications
func (o Object) String() string {
	if o.Root == nil {
		return "<empty>"
	}
	var sb strings.Builder
	for _, e := range o.Path {
		sb.WriteString("(" + e.String() + " ")
	}
	sb.WriteString(o.Root.String())
	sb.WriteString(strings.Repeat(")", len(o.Path)))
	return sb.String()
}

// ObjectHasher lets Object be used as a key of immutable maps
type ObjectHasher struct{}

func (ObjectHasher) Hash(o Object) uint32 {
	h := o.Hash()
	return uint32(h ^ h>>32)
}

func (ObjectHasher) Equal(a, b Object) bool { return a.Equal(b) }
