package subcmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mavgcs/state"
)

func TestParse(t *testing.T) {
	t.Parallel()

	nop := func(context.Context, *state.Config, []string) error { return nil }
	mods := []Mod{{Name: "monitor", Main: nop}, {Name: "arm", Usage: "arm motors", Main: nop}}
	cases := []struct {
		input  string
		expect string
		err    string
	}{
		{"arm", "arm", ""},
		{"monitor", "monitor", ""},
		{"", "", "empty command"},
		{"fly", "", "unknown command='fly'"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()
			m, err := Parse(c.input, mods)
			if c.err != "" {
				require.EqualError(t, err, c.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, m.Name)
		})
	}
	assert.Equal(t, "  arm                arm motors\n  monitor            ", Help(mods))
}

func TestArgN(t *testing.T) {
	t.Parallel()

	s, err := ArgN([]string{"RTL_ALT", " 1500 "}, 1, "value")
	require.NoError(t, err)
	assert.Equal(t, "1500", s)
	_, err = ArgN([]string{"RTL_ALT"}, 1, "value")
	require.EqualError(t, err, "argument value=empty not valid")
}
