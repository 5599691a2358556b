package link

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	t.Parallel()

	type Case struct {
		name   string
		input  string
		expect gomavlib.EndpointConf
		check  func(error) bool
	}
	cases := []Case{
		{"tcpout", "tcpout:127.0.0.1:5760", gomavlib.EndpointTCPClient{Address: "127.0.0.1:5760"}, nil},
		{"tcpin", "tcpin::5760", gomavlib.EndpointTCPServer{Address: ":5760"}, nil},
		{"udpin", "udpin:0.0.0.0:14550", gomavlib.EndpointUDPServer{Address: "0.0.0.0:14550"}, nil},
		{"udpout", "udpout:10.0.0.2:14550", gomavlib.EndpointUDPClient{Address: "10.0.0.2:14550"}, nil},
		{"udpbcast", "udpbcast:192.168.1.255:14550", gomavlib.EndpointUDPBroadcast{BroadcastAddress: "192.168.1.255:14550"}, nil},
		{"serial", "serial:/dev/ttyUSB0:115200", gomavlib.EndpointSerial{Device: "/dev/ttyUSB0", Baud: 115200}, nil},
		{"serial-default-baud", "serial:/dev/ttyACM0", gomavlib.EndpointSerial{Device: "/dev/ttyACM0", Baud: DefaultBaud}, nil},
		{"empty", "", nil, errors.IsNotValid},
		{"no-rest", "tcpout:", nil, errors.IsNotValid},
		{"bad-baud", "serial:/dev/ttyS0:fast", nil, errors.IsNotValid},
		{"scheme", "http:localhost:80", nil, errors.IsNotSupported},
		{"no-port", "udpin:localhost", nil, func(err error) bool { return err != nil }},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			ep, err := ParseEndpoint(c.input)
			if c.check != nil {
				require.Error(t, err)
				assert.True(t, c.check(err), errors.ErrorStack(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, ep)
		})
	}
}

func TestOptionsIdentity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Header{255, 190}, Options{}.identity())
	assert.Equal(t, Header{250, 1}, Options{SystemID: 250, ComponentID: 1}.identity())
}
