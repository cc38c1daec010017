package address

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbsolute(t *testing.T) {
	a, err := Parse("actor://main/user/parent/child")
	require.NoError(t, err)

	assert.True(t, a.IsAbsolute())
	assert.Equal(t, "main", a.System())
	assert.Equal(t, ScopeUser, a.Scope())
	assert.Equal(t, []string{"parent", "child"}, a.Segments())
	assert.Equal(t, "child", a.Name())
	assert.Equal(t, "actor://main/user/parent/child", a.String())
}

func TestParseCollapsesSeparators(t *testing.T) {
	a, err := Parse("actor://main//system///io//tcp/")
	require.NoError(t, err)

	assert.Equal(t, ScopeSystem, a.Scope())
	assert.Equal(t, []string{"io", "tcp"}, a.Segments())
	assert.Equal(t, "actor://main/system/io/tcp", a.String())
}

func TestParseUnknownScope(t *testing.T) {
	a, err := Parse("actor://main/elsewhere/a")
	require.NoError(t, err)
	assert.Equal(t, ScopeUnknown, a.Scope())
}

func TestParseRelative(t *testing.T) {
	a, err := Parse("A//B/")
	require.NoError(t, err)

	assert.False(t, a.IsAbsolute())
	assert.Equal(t, ScopeUnknown, a.Scope())
	assert.Equal(t, "", a.System())
	assert.Equal(t, "A/B", a.String())
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"only slashes":   "///",
		"missing scheme": "://main/user/a",
		"wrong scheme":   "http://main/user/a",
		"missing system": "actor:///user/a",
		"no system text": "actor://",
		"single segment": "actor://main",
		"no segments":    "actor://main/user",
		"trailing scope": "actor://main/user//",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			a, err := Parse(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			assert.True(t, a.IsZero(), "partial state leaked: %#v", a)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, input, perr.Input)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"actor://main/user/a",
		"actor://main/system/deadLetters",
		"actor://x/weird/a/b/c",
		"actor://main//user//a//",
		"a/b/c",
		"single",
	}

	for _, in := range inputs {
		a, err := Parse(in)
		require.NoError(t, err, in)

		b, err := Parse(a.String())
		require.NoError(t, err, in)
		assert.True(t, Matches(a, b), "%s -> %s", in, a.String())
	}
}

func TestMatches(t *testing.T) {
	a := New("main", ScopeUser, "a", "b")
	assert.True(t, Matches(a, MustParse("actor://main/user/a/b")))
	assert.False(t, Matches(a, New("other", ScopeUser, "a", "b")))
	assert.False(t, Matches(a, New("main", ScopeSystem, "a", "b")))
	assert.False(t, Matches(a, New("main", ScopeUser, "a")))
	assert.False(t, Matches(a, Relative("a", "b")))
}

func TestChildParentJoin(t *testing.T) {
	root := New("main", ScopeUser, "root")
	child := root.Child("kid")

	assert.Equal(t, "actor://main/user/root/kid", child.String())
	assert.True(t, Matches(root, child.Parent()))
	assert.True(t, root.Parent().IsZero())
	assert.Equal(t, "actor://main/user/root", root.String(), "Child must not mutate its receiver")

	joined := root.Join(Relative("x", "y"))
	assert.Equal(t, "actor://main/user/root/x/y", joined.String())
	assert.Equal(t, 3, joined.Depth())
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("worker-1"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("a/b"))
	assert.False(t, ValidName("with space"))
}
