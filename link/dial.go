package link

import (
	"net"
	"strconv"
	"strings"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/juju/errors"
)

const (
	DefaultSystemID    uint8 = 255
	DefaultComponentID uint8 = 190 // MAV_COMP_ID_MISSIONPLANNER
	DefaultBaud              = 57600
)

// ParseEndpoint understands addresses:
//
//	tcpout:host:port  tcpin:host:port
//	udpin:host:port   udpout:host:port  udpbcast:broadcast:port
//	serial:/dev/ttyUSB0:57600
func ParseEndpoint(address string) (gomavlib.EndpointConf, error) {
	parts := strings.SplitN(address, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, errors.NotValidf("link address=%q", address)
	}
	scheme, rest := parts[0], parts[1]
	switch scheme {
	case "tcpout", "tcpin", "udpin", "udpout", "udpbcast":
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return nil, errors.Annotatef(err, "link address=%q", address)
		}
	}
	switch scheme {
	case "tcpout":
		return gomavlib.EndpointTCPClient{Address: rest}, nil
	case "tcpin":
		return gomavlib.EndpointTCPServer{Address: rest}, nil
	case "udpin":
		return gomavlib.EndpointUDPServer{Address: rest}, nil
	case "udpout":
		return gomavlib.EndpointUDPClient{Address: rest}, nil
	case "udpbcast":
		return gomavlib.EndpointUDPBroadcast{BroadcastAddress: rest}, nil
	case "serial":
		device, baud := rest, DefaultBaud
		if i := strings.LastIndex(rest, ":"); i > 0 {
			b, err := strconv.Atoi(rest[i+1:])
			if err != nil || b <= 0 {
				return nil, errors.NotValidf("link address=%q baud", address)
			}
			device, baud = rest[:i], b
		}
		return gomavlib.EndpointSerial{Device: device, Baud: baud}, nil
	}
	return nil, errors.NotSupportedf("link address=%q scheme", address)
}

type Options struct {
	SystemID    uint8
	ComponentID uint8
}

func (self Options) identity() Header {
	h := Header{SystemID: self.SystemID, ComponentID: self.ComponentID}
	if h.SystemID == 0 {
		h.SystemID = DefaultSystemID
	}
	if h.ComponentID == 0 {
		h.ComponentID = DefaultComponentID
	}
	return h
}
