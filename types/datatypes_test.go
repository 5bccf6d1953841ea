package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cottand/occur/internal/failure"
)

type prop string

func (p prop) String() string { return string(p) }

func TestNewUnion(t *testing.T) {
	pair := NewPair(Number, Null)
	testCases := []struct {
		name     string
		members  []Type
		expected string
	}{
		{name: "empty", expected: "Nothing"},
		{name: "single", members: []Type{Number}, expected: "Number"},
		{name: "bottom is dropped", members: []Type{Bottom, String}, expected: "String"},
		{name: "top absorbs", members: []Type{Number, Top}, expected: "Top"},
		{name: "duplicates", members: []Type{Number, Number, Number}, expected: "Number"},
		{name: "nested unions are flattened", members: []Type{NewUnion(Number, String), pair}, expected: NewUnion(Number, String, pair).String()},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, NewUnion(testCase.members...).String())
		})
	}
}

func TestUnionIsUnordered(t *testing.T) {
	a := NewUnion(Number, String, Symbol)
	b := NewUnion(Symbol, NewUnion(String, Number))
	assert.True(t, Equal(a, b), "%s != %s", a, b)
	assert.Len(t, a.(Union).Members(), 3)
}

func TestBooleanIsAUnion(t *testing.T) {
	u, ok := Boolean.(Union)
	require.True(t, ok)
	assert.ElementsMatch(t, []Type{True, False}, u.Members())
}

func TestNewIntersection(t *testing.T) {
	testCases := []struct {
		name     string
		members  []Type
		expected Type
	}{
		{name: "empty", expected: Top},
		{name: "bottom absorbs", members: []Type{Number, Bottom}, expected: Bottom},
		{name: "top is dropped", members: []Type{Top, Number}, expected: Number},
		{name: "duplicates", members: []Type{String, String}, expected: String},
		{name: "kept symbolic", members: []Type{Number, String}, expected: NewIntersection(String, Number)},
		{name: "flattened", members: []Type{NewIntersection(Number, String), Symbol}, expected: NewIntersection(Symbol, String, Number)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			actual := NewIntersection(testCase.members...)
			assert.True(t, Equal(testCase.expected, actual), "expected %s, got %s", testCase.expected, actual)
		})
	}
}

func TestRefine(t *testing.T) {
	assert.Equal(t, Number, Refine(Number, nil))
	assert.Equal(t, Bottom, Refine(Bottom, prop("p")))

	refined := Refine(Number, prop("p"))
	inter, ok := refined.(Intersection)
	require.True(t, ok)
	assert.Equal(t, prop("p"), inter.Prop())
	assert.Equal(t, "(Refine Number p)", refined.String())

	assert.True(t, Equal(refined, Refine(refined, prop("p"))))
	assert.False(t, Equal(refined, Refine(Number, prop("q"))))
	assert.False(t, Equal(refined, Number))

	// propositions are not flattened away
	nested := NewIntersection(refined, String)
	assert.Len(t, nested.(Intersection).Members(), 2)
}

func TestBottomAbsorbingConstructors(t *testing.T) {
	key := PrefabKey{Name: "pt", Fields: 2}
	testCases := []struct {
		name string
		t    Type
	}{
		{name: "pair car", t: NewPair(Bottom, Number)},
		{name: "pair cdr", t: NewPair(Number, Bottom)},
		{name: "struct", t: NewStruct("point", Immutable(Number, Bottom)...)},
		{name: "prefab", t: NewPrefab(key, Bottom, Number)},
		{name: "syntax", t: NewSyntax(Bottom)},
		{name: "promise", t: NewPromise(Bottom)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.True(t, IsBottom(testCase.t), "got %s", testCase.t)
		})
	}
}

func TestString(t *testing.T) {
	key := PrefabKey{Name: "pt", Fields: 2, Mutable: []int{1}}
	testCases := []struct {
		t        Type
		expected string
	}{
		{t: NewPair(Number, Null), expected: "(Pairof Number Null)"},
		{t: NewSyntax(Symbol), expected: "(Syntaxof Symbol)"},
		{t: NewPromise(Char), expected: "(Promise Char)"},
		{t: NewStruct("cell", Field{Type: Number, Mutable: true}), expected: "(Struct cell #:mutable Number)"},
		{t: NewPrefab(key, Number, String), expected: "(Prefab (pt 2 #[1]) Number String)"},
		{t: Fn([]Type{Number}, String), expected: "(-> Number String)"},
		{t: Fn(nil, Void), expected: "(-> Void)"},
		{t: NewFunction(
			Arrow{Dom: []Type{Number}, Results: []Result{{Type: Number}}},
			Arrow{Dom: []Type{String}, Results: []Result{{Type: String}, {Type: Null}}},
		), expected: "(case-> (-> Number Number) (-> String (Values String Null)))"},
		{t: Ref{Name: "List"}, expected: "List"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.expected, func(t *testing.T) {
			assert.Equal(t, testCase.expected, testCase.t.String())
		})
	}
}

func TestEqualDistinguishesMutability(t *testing.T) {
	immutable := NewStruct("cell", Field{Type: Number})
	mutable := NewStruct("cell", Field{Type: Number, Mutable: true})
	assert.False(t, Equal(immutable, mutable))
	assert.False(t, Equal(NewSyntax(Number), NewPromise(Number)))
	assert.False(t, Equal(NewPair(Number, String), NewPair(String, Number)))
}

func TestPrefabKeys(t *testing.T) {
	pt := PrefabKey{Name: "pt", Fields: 2}
	pt3 := PrefabKey{Name: "pt3", Fields: 1, Mutable: []int{0}, Parent: &pt}
	other := PrefabKey{Name: "pt", Fields: 3}

	assert.Equal(t, 3, pt3.FieldCount())
	assert.True(t, pt3.IsSubKey(pt))
	assert.True(t, pt3.IsSubKey(pt3))
	assert.False(t, pt.IsSubKey(pt3))
	assert.False(t, other.IsSubKey(pt))

	assert.False(t, pt3.IsMutable(0))
	assert.True(t, pt3.IsMutable(2))
	assert.Equal(t, "pt3 1 #[0] pt 2", pt3.String())
}

func TestNewPrefabChecksFieldCount(t *testing.T) {
	err := failure.Catch(func() {
		NewPrefab(PrefabKey{Name: "pt", Fields: 2}, Number)
	})
	assert.ErrorContains(t, err, "pt expects 2 fields, got 1")
}

func TestSingleResult(t *testing.T) {
	rng, ok := Fn([]Type{Number}, String).(Function).SingleResult()
	require.True(t, ok)
	assert.Equal(t, String, rng)

	latent := NewFunction(Arrow{Dom: []Type{Top}, Results: []Result{{Type: Boolean, Latent: prop("number?")}}})
	_, ok = latent.(Function).SingleResult()
	assert.False(t, ok)

	refined := Fn([]Type{Number}, NewUnion(Number, String)).(Function).WithSingleResult(Number)
	assert.True(t, Equal(Fn([]Type{Number}, Number), refined))
}
