package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cottand/occur/internal/failure"
)

func TestArenaResolve(t *testing.T) {
	arena := NewArena()
	list := arena.Define("List", NewUnion(Null, NewPair(Number, Ref{Name: "List"})))
	alias := arena.Define("Numbers", list)

	resolved := arena.Resolve(alias)
	u, ok := resolved.(Union)
	require.True(t, ok, "expected a union, got %s", resolved)
	// only the head is unfolded
	assert.Contains(t, u.Members(), NewPair(Number, list))

	assert.Equal(t, Number, arena.Resolve(Number))
}

func TestArenaViolations(t *testing.T) {
	testCases := []struct {
		name    string
		body    func(arena *Arena)
		message string
	}{
		{
			name: "cycle",
			body: func(arena *Arena) {
				arena.Define("A", Ref{Name: "B"})
				arena.Define("B", Ref{Name: "A"})
				arena.Resolve(Ref{Name: "A"})
			},
			message: "type alias cycle",
		},
		{
			name:    "undefined",
			body:    func(arena *Arena) { arena.Resolve(Ref{Name: "Missing"}) },
			message: "undefined type Missing",
		},
		{
			name: "redefinition",
			body: func(arena *Arena) {
				arena.Define("A", Number)
				arena.Define("A", String)
			},
			message: "already defined",
		},
		{
			name:    "undeclared parent",
			body:    func(arena *Arena) { arena.DeclareStruct("point3", "point") },
			message: "undeclared struct point",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := failure.Catch(func() { testCase.body(NewArena()) })
			assert.ErrorContains(t, err, testCase.message)
		})
	}
}

func TestStructAncestry(t *testing.T) {
	arena := NewArena()
	arena.DeclareStruct("point", "")
	arena.DeclareStruct("point3", "point")
	arena.DeclareStruct("colored", "point3")

	assert.True(t, arena.IsStructSubtype("colored", "point"))
	assert.True(t, arena.IsStructSubtype("point", "point"))
	assert.False(t, arena.IsStructSubtype("point", "point3"))
	assert.ElementsMatch(t, []string{"colored", "point3", "point"}, arena.Ancestors("colored").Slice())

	var empty *Arena
	assert.True(t, empty.IsStructSubtype("point", "point"))
	assert.False(t, empty.IsStructSubtype("point3", "point"))
}
