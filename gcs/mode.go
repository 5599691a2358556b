package gcs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// FlightMode is ArduCopter custom_mode.
type FlightMode uint32

const (
	ModeStabilize FlightMode = 0
	ModeAcro      FlightMode = 1
	ModeAltHold   FlightMode = 2
	ModeAuto      FlightMode = 3
	ModeGuided    FlightMode = 4
	ModeLoiter    FlightMode = 5
	ModeRTL       FlightMode = 6
)

var modeNames = map[FlightMode]string{
	ModeStabilize: "STABILIZE",
	ModeAcro:      "ACRO",
	ModeAltHold:   "ALT_HOLD",
	ModeAuto:      "AUTO",
	ModeGuided:    "GUIDED",
	ModeLoiter:    "LOITER",
	ModeRTL:       "RTL",
}

func (self FlightMode) Known() bool {
	_, ok := modeNames[self]
	return ok
}

func (self FlightMode) String() string {
	if s, ok := modeNames[self]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(self))
}

// ParseFlightMode accepts mode name in any case or number.
func ParseFlightMode(s string) (FlightMode, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == upper {
			return m, nil
		}
	}
	if n, err := strconv.ParseUint(upper, 10, 32); err == nil {
		return FlightMode(n), nil
	}
	return 0, errors.NotValidf("flight mode=%q", s)
}
