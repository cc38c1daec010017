package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greet struct{ who string }

func TestAs(t *testing.T) {
	v, ok := As[greet](greet{who: "bob"})
	require.True(t, ok)
	assert.Equal(t, "bob", v.who)

	_, ok = As[int]("nope")
	assert.False(t, ok)

	assert.Equal(t, 7, AsOr[int]("nope", 7))
	assert.Equal(t, 3, AsOr[int](3, 7))
}

func TestMatch(t *testing.T) {
	var got []string
	cases := []Case{
		On(func(g greet) error {
			got = append(got, "greet:"+g.who)
			return nil
		}),
		On(func(s string) error {
			got = append(got, "string:"+s)
			return nil
		}),
	}

	handled, err := Match(greet{who: "ann"}, cases...)
	require.NoError(t, err)
	assert.True(t, handled)

	handled, err = Match("hi", cases...)
	require.NoError(t, err)
	assert.True(t, handled)

	handled, err = Match(42, cases...)
	require.NoError(t, err)
	assert.False(t, handled)

	handled, _ = Match(42, append(cases, Default(func(msg any) error {
		got = append(got, "default:"+TypeName(msg))
		return nil
	}))...)
	assert.True(t, handled)

	assert.Equal(t, []string{"greet:ann", "string:hi", "default:int"}, got)
}

func TestMatchPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	handled, err := Match(1, On(func(int) error { return boom }))
	assert.True(t, handled)
	assert.ErrorIs(t, err, boom)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "<nil>", TypeName(nil))
	assert.Equal(t, "core.greet", TypeName(greet{}))
	assert.Equal(t, "*core.Terminated", TypeName(&Terminated{}))
}
