package relay

import (
	"github.com/kb9vcn/dmr-relay/pkg/logger"
	"github.com/kb9vcn/dmr-relay/pkg/mqttpublish"
	"github.com/kb9vcn/dmr-relay/pkg/registry"
)

// sweep implements the housekeeper (spec.md §4.6): every node idle
// for idleTimeout or more is deleted, cascading through the slot-level
// talkgroup unsubscribe. Candidate node ids are collected first and
// deleted afterwards, per DESIGN.md's resolution of the "nested
// re-check" open question — Each forbids mutation mid-walk.
func (d *Dispatcher) sweep() {
	now := d.nowSec()
	var stale []uint32

	d.registry.Each(func(n *registry.Node) {
		if now-n.LastSeenSec >= int64(idleTimeout.Seconds()) {
			stale = append(stale, n.NodeID)
		}
	})

	for _, nodeid := range stale {
		d.log.Info("evicting idle node", logger.Uint32("nodeid", nodeid))
		d.registry.Delete(nodeid)
		if d.metrics != nil {
			d.metrics.HousekeepingEviction()
		}
		if d.mqtt != nil {
			d.mqtt.PublishNodeState(mqttpublish.NodeStateEvent{NodeID: nodeid, State: "disconnected"})
		}
		if d.hub != nil {
			d.hub.Broadcast(dashboardEvent("node_disconnected", map[string]interface{}{"node_id": nodeid}))
		}
	}
}
