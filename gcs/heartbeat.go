package gcs

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
)

const DefaultHeartbeatInterval = 1 * time.Second

var gcsHeartbeat = link.Heartbeat{
	Type:         link.TypeGCS,
	Autopilot:    link.AutopilotInvalid,
	SystemStatus: link.StateActive,
}

// Heartbeat announces ground station every interval until ctx is done.
// Send error is returned, cancel returns ctx.Err().
func Heartbeat(ctx context.Context, log *log2.Log, conn link.Conn, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := conn.SendDefault(gcsHeartbeat); err != nil {
			return errors.Annotate(err, "heartbeat")
		}
		log.Debugf("heartbeat sent")
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
