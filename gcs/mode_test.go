package gcs

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlightMode(t *testing.T) {
	t.Parallel()

	type Case struct {
		input  string
		expect FlightMode
		valid  bool
	}
	cases := []Case{
		{"STABILIZE", ModeStabilize, true},
		{"guided", ModeGuided, true},
		{" rtl ", ModeRTL, true},
		{"Alt_Hold", ModeAltHold, true},
		{"17", FlightMode(17), true},
		{"", 0, false},
		{"warp", 0, false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()
			m, err := ParseFlightMode(c.input)
			if !c.valid {
				require.Error(t, err)
				assert.True(t, errors.IsNotValid(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, m)
		})
	}
	assert.Equal(t, "UNKNOWN(17)", FlightMode(17).String())
	assert.False(t, FlightMode(17).Known())
	assert.True(t, ModeLoiter.Known())
}
