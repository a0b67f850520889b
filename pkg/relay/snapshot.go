package relay

import (
	"github.com/kb9vcn/dmr-relay/pkg/dashboard"
	"github.com/kb9vcn/dmr-relay/pkg/registry"
	"github.com/kb9vcn/dmr-relay/pkg/talkgroup"
)

// snapshot is a dashboard-ready copy of relay state, built on the
// dispatcher goroutine and published through an atomic.Value so the
// dashboard's HTTP goroutine never reads the registry or talkgroup
// table directly (spec.md §5's single-writer rule; SPEC_FULL.md §5's
// "dispatcher pushes snapshots" note).
type snapshot struct {
	nodes      []dashboard.NodeView
	talkgroups []dashboard.TalkgroupView
}

func (d *Dispatcher) publishSnapshot() {
	var snap snapshot

	if d.metrics != nil {
		d.metrics.SetActiveNodes(d.registry.Count())
	}

	d.registry.Each(func(n *registry.Node) {
		addr := ""
		if n.Addr != nil {
			addr = n.Addr.String()
		}
		snap.nodes = append(snap.nodes, dashboard.NodeView{
			NodeID:        n.NodeID,
			DmrID:         n.DmrID,
			ESSID:         n.ESSID,
			Callsign:      d.lookupCallsign(n.DmrID),
			Address:       addr,
			Authenticated: n.Authenticated,
			LastSeenSec:   n.LastSeenSec,
			Slot1TG:       n.Slots[0].TG,
			Slot2TG:       n.Slots[1].TG,
		})
	})

	d.talkgroups.Each(func(g *talkgroup.Group) {
		snap.talkgroups = append(snap.talkgroups, dashboard.TalkgroupView{
			TG:              g.TG,
			Owned:           g.OwnerSlotID != 0,
			OwnerNodeID:     ownerNodeID(g),
			SubscriberCount: len(g.Subscribers()),
		})
	})

	d.snapshotValue.Store(snap)
}

func ownerNodeID(g *talkgroup.Group) uint32 {
	if g.OwnerSlotID == 0 {
		return 0
	}
	nodeid, _ := registry.SplitSlotID(g.OwnerSlotID)
	return nodeid
}

// NodeProvider returns the dashboard.NodeProvider callback for this
// dispatcher's latest published snapshot.
func (d *Dispatcher) NodeProvider() dashboard.NodeProvider {
	return func() []dashboard.NodeView {
		snap, _ := d.snapshotValue.Load().(snapshot)
		return snap.nodes
	}
}

// TalkgroupProvider returns the dashboard.TalkgroupProvider callback
// for this dispatcher's latest published snapshot.
func (d *Dispatcher) TalkgroupProvider() dashboard.TalkgroupProvider {
	return func() []dashboard.TalkgroupView {
		snap, _ := d.snapshotValue.Load().(snapshot)
		return snap.talkgroups
	}
}
