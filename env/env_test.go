package env

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cottand/occur/internal/failure"
	"github.com/cottand/occur/paths"
	"github.com/cottand/occur/refine"
	"github.com/cottand/occur/subtype"
	"github.com/cottand/occur/types"
)

var numOrStr = types.NewUnion(types.Number, types.String)

func newTestEnv() Env {
	return New(refine.NewEngine(subtype.New(types.NewArena())))
}

func assertType(t *testing.T, expected, actual types.Type) {
	t.Helper()
	assert.True(t, types.Equal(expected, actual), "expected %s, got %s", expected, actual)
}

func lookup(t *testing.T, e Env, id string) types.Type {
	t.Helper()
	ty, err := e.LookupType(id)
	require.NoError(t, err)
	return ty
}

func TestApplyProposition(t *testing.T) {
	testCases := []struct {
		name     string
		t        types.Type
		prop     Proposition
		expected types.Type
	}{
		{
			name:     "positive",
			t:        numOrStr,
			prop:     Proposition{Object: paths.VarObject("x"), Type: types.Number, Positive: true},
			expected: types.Number,
		},
		{
			name:     "negative",
			t:        numOrStr,
			prop:     Proposition{Object: paths.VarObject("x"), Type: types.Number},
			expected: types.String,
		},
		{
			name:     "through a path",
			t:        types.NewPair(types.Null, types.NewPair(numOrStr, types.Null)),
			prop:     Proposition{Object: paths.VarObject("x", paths.Car{}, paths.Cdr{}), Type: types.String, Positive: true},
			expected: types.NewPair(types.Null, types.NewPair(types.String, types.Null)),
		},
		{
			name:     "about another identifier",
			t:        numOrStr,
			prop:     Proposition{Object: paths.VarObject("y"), Type: types.String, Positive: true},
			expected: numOrStr,
		},
		{
			name:     "about an opaque expression",
			t:        numOrStr,
			prop:     Proposition{Object: paths.Object{Root: paths.Opaque{Label: "x"}}, Type: types.String, Positive: true},
			expected: numOrStr,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			e := newTestEnv().Extend([]string{"x"}, []types.Type{testCase.t}, nil)
			applied := e.ApplyProposition(testCase.prop)

			assertType(t, testCase.expected, lookup(t, applied, "x"))
			assert.Equal(t, []Proposition{testCase.prop}, applied.Propositions())
			// the original environment is unchanged
			assertType(t, testCase.t, lookup(t, e, "x"))
			assert.Empty(t, e.Propositions())
		})
	}
}

func TestLookupUnbound(t *testing.T) {
	e := newTestEnv().Extend([]string{"x"}, []types.Type{types.Number}, nil)
	_, err := e.LookupType("y")
	assert.True(t, errors.Is(err, ErrUnbound))
	assert.ErrorContains(t, err, "lookup y")
	assert.False(t, e.Bound("y"))
	assert.True(t, e.Bound("x"))
}

func TestExtendShadows(t *testing.T) {
	outer := newTestEnv().Extend([]string{"x", "y"}, []types.Type{types.Number, types.String}, nil)
	inner := outer.Extend([]string{"x"}, []types.Type{types.Symbol}, nil)

	assertType(t, types.Symbol, lookup(t, inner, "x"))
	assertType(t, types.String, lookup(t, inner, "y"))
	assertType(t, types.Number, lookup(t, outer, "x"))
	assert.Len(t, inner.Bindings(), 2)
}

func TestExtendLengthMismatch(t *testing.T) {
	err := failure.Catch(func() {
		newTestEnv().Extend([]string{"x", "y"}, []types.Type{types.Number}, nil)
	})
	assert.ErrorContains(t, err, "2 identifiers but 1 types")

	err = failure.Catch(func() {
		newTestEnv().Extend([]string{"x"}, []types.Type{types.Number}, []paths.Object{})
	})
	assert.ErrorContains(t, err, "1 identifiers but 0 aliases")
}

func TestAliases(t *testing.T) {
	e := newTestEnv().
		Extend([]string{"p"}, []types.Type{types.NewPair(numOrStr, types.Null)}, nil).
		Extend([]string{"y"}, []types.Type{numOrStr}, []paths.Object{paths.VarObject("p", paths.Car{})})

	// a claim about the alias refines the object it names
	e = e.ApplyProposition(Proposition{Object: paths.VarObject("y"), Type: types.Number, Positive: true})
	assertType(t, types.NewPair(types.Number, types.Null), lookup(t, e, "p"))
	assertType(t, types.Number, lookup(t, e, "y"))

	// and a claim about the object is seen through the alias
	e = newTestEnv().
		Extend([]string{"p"}, []types.Type{types.NewPair(numOrStr, types.Null)}, nil).
		Extend([]string{"y"}, []types.Type{numOrStr}, []paths.Object{paths.VarObject("p", paths.Car{})})
	e = e.ApplyProposition(Proposition{Object: paths.VarObject("p", paths.Car{}), Type: types.Number})
	assertType(t, types.String, lookup(t, e, "y"))
}

func TestAliasOfAlias(t *testing.T) {
	e := newTestEnv().
		Extend([]string{"p"}, []types.Type{types.NewPair(types.Null, types.NewPair(numOrStr, types.Null))}, nil).
		Extend([]string{"q"}, []types.Type{types.NewPair(numOrStr, types.Null)}, []paths.Object{paths.VarObject("p", paths.Cdr{})}).
		Extend([]string{"z"}, []types.Type{numOrStr}, []paths.Object{paths.VarObject("q", paths.Car{})})

	e = e.ApplyProposition(Proposition{Object: paths.VarObject("z"), Type: types.String, Positive: true})
	assertType(t, types.NewPair(types.Null, types.NewPair(types.String, types.Null)), lookup(t, e, "p"))
	assertType(t, types.String, lookup(t, e, "z"))
	assertType(t, types.NewPair(types.String, types.Null), lookup(t, e, "q"))
}

func TestExtendShadowingAliasedBinding(t *testing.T) {
	outer := newTestEnv().
		Extend([]string{"x"}, []types.Type{types.NewPair(numOrStr, types.Null)}, nil).
		Extend([]string{"y"}, []types.Type{numOrStr}, []paths.Object{paths.VarObject("x", paths.Car{})})
	inner := outer.Extend([]string{"x"}, []types.Type{numOrStr}, []paths.Object{paths.VarObject("x", paths.Car{})})

	inner = inner.ApplyProposition(Proposition{Object: paths.VarObject("x"), Type: types.Number, Positive: true})
	assertType(t, types.Number, lookup(t, inner, "x"))
	assert.False(t, inner.Unreachable())

	// y named the car of the outer x, which the inner x does not refine
	inner = inner.ApplyProposition(Proposition{Object: paths.VarObject("y"), Type: types.String, Positive: true})
	assertType(t, types.String, lookup(t, inner, "y"))
	assertType(t, types.Number, lookup(t, inner, "x"))

	// the outer scope still sees the alias
	outer = outer.ApplyProposition(Proposition{Object: paths.VarObject("y"), Type: types.String, Positive: true})
	assertType(t, types.NewPair(types.String, types.Null), lookup(t, outer, "x"))
}

func TestExtendAliasesNameTheExtendedScope(t *testing.T) {
	e := newTestEnv().Extend([]string{"p"}, []types.Type{types.NewPair(numOrStr, types.Null)}, nil)
	// the outer p is shadowed by the p bound alongside q, so q names nothing
	e = e.Extend(
		[]string{"p", "q"},
		[]types.Type{types.Number, numOrStr},
		[]paths.Object{{}, paths.VarObject("p", paths.Car{})},
	)
	e = e.ApplyProposition(Proposition{Object: paths.VarObject("q"), Type: types.String, Positive: true})

	assertType(t, types.String, lookup(t, e, "q"))
	assertType(t, types.Number, lookup(t, e, "p"))
	assert.False(t, e.Unreachable())
}

func TestLookupObjectTypeOfAlias(t *testing.T) {
	e := newTestEnv().
		Extend([]string{"p"}, []types.Type{types.NewPair(types.NewPair(numOrStr, types.String), types.Null)}, nil).
		Extend([]string{"y"}, []types.Type{types.NewPair(types.Number, types.Top)}, []paths.Object{paths.VarObject("p", paths.Car{})})

	whole, err := e.LookupType("y")
	require.NoError(t, err)
	assertType(t, types.NewPair(types.Number, types.String), whole)
	assertType(t, whole, e.LookupObjectType(paths.VarObject("y")))
	assertType(t, types.Number, e.LookupObjectType(paths.VarObject("y", paths.Car{})))
	assertType(t, types.String, e.LookupObjectType(paths.VarObject("y", paths.Cdr{})))
}

func TestLookupObjectType(t *testing.T) {
	e := newTestEnv().Extend([]string{"p"}, []types.Type{types.NewPair(types.Number, types.NewSyntax(types.Symbol))}, nil)
	testCases := []struct {
		obj      paths.Object
		expected types.Type
	}{
		{obj: paths.VarObject("p", paths.Car{}), expected: types.Number},
		{obj: paths.VarObject("p", paths.SyntaxUnwrap{}, paths.Cdr{}), expected: types.Symbol},
		{obj: paths.VarObject("p", paths.Car{}, paths.Car{}), expected: types.Top},
		{obj: paths.VarObject("unbound", paths.Car{}), expected: types.Top},
		{obj: paths.Object{Root: paths.Opaque{Label: "call"}}, expected: types.Top},
	}

	for _, testCase := range testCases {
		t.Run(testCase.obj.String(), func(t *testing.T) {
			assertType(t, testCase.expected, e.LookupObjectType(testCase.obj))
		})
	}
}

func TestUnreachable(t *testing.T) {
	e := newTestEnv().Extend([]string{"x", "y"}, []types.Type{types.Number, numOrStr}, nil)
	assert.False(t, e.Unreachable())

	e = e.ApplyProposition(Proposition{Object: paths.VarObject("y"), Type: types.Symbol})
	assert.False(t, e.Unreachable())

	e = e.ApplyProposition(Proposition{Object: paths.VarObject("x"), Type: types.String, Positive: true})
	assert.True(t, e.Unreachable())
	assertType(t, types.Bottom, lookup(t, e, "x"))
}

func TestPropositionsAreRecordedOnce(t *testing.T) {
	prop := Proposition{Object: paths.VarObject("x"), Type: types.Number, Positive: true}
	e := newTestEnv().Extend([]string{"x"}, []types.Type{numOrStr}, nil)
	e = e.ApplyPropositions(prop, prop, Proposition{Object: paths.VarObject("x"), Type: types.Number})

	assert.Len(t, e.Propositions(), 2)
	assert.Equal(t, "x : Number", e.Propositions()[0].String())
	assert.Equal(t, "x !: Number", e.Propositions()[1].String())
	assertType(t, types.Bottom, lookup(t, e, "x"))
}

// carIsNumber claims that the car of whatever carries it is a number
type carIsNumber struct{}

func (carIsNumber) String() string { return "(car : Number)" }

func (carIsNumber) Instantiate(obj paths.Object) []Proposition {
	return []Proposition{{Object: obj.Then(paths.Path{paths.Car{}}), Type: types.Number, Positive: true}}
}

func TestExtendInstantiatesPropositions(t *testing.T) {
	refined := types.Refine(types.NewPair(numOrStr, types.Null), carIsNumber{})
	e := newTestEnv().Extend([]string{"z"}, []types.Type{refined}, nil)

	assertType(t, types.Number, e.LookupObjectType(paths.VarObject("z", paths.Car{})))
	require.Len(t, e.Propositions(), 1)
	assert.Equal(t, "(car z) : Number", e.Propositions()[0].String())
}
