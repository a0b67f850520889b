package relay

import (
	"time"

	"github.com/kb9vcn/dmr-relay/pkg/dashboard"
)

// dashboardEvent builds a live-update event for the dashboard hub. The
// dispatcher is the only writer of relay state, so every broadcast
// originates from this goroutine; Hub.Broadcast itself never blocks.
func dashboardEvent(kind string, data map[string]interface{}) dashboard.Event {
	return dashboard.Event{Type: kind, Timestamp: time.Now(), Data: data}
}
