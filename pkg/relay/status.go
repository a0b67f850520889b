package relay

import (
	"fmt"
	"net"
	"strings"

	"github.com/kb9vcn/dmr-relay/pkg/registry"
	"github.com/kb9vcn/dmr-relay/pkg/talkgroup"
	"github.com/kb9vcn/dmr-relay/pkg/wire"
)

// handleStatus replies to a loopback "/STAT" query with a
// human-readable dump of the node registry and talkgroup table,
// truncated to wire.StatusMax bytes. No authentication is required;
// this path is intended for local use only (spec.md §4.4, §9 open
// question #2).
func (d *Dispatcher) handleStatus(data []byte, addr *net.UDPAddr) {
	var b strings.Builder

	fmt.Fprintf(&b, "nodes: %d\n", d.registry.Count())
	d.registry.Each(func(n *registry.Node) {
		callsign := d.lookupCallsign(n.DmrID)
		fmt.Fprintf(&b, "  nodeid=%d dmrid=%d essid=%d callsign=%q auth=%t slot1_tg=%d slot2_tg=%d last_seen=%d\n",
			n.NodeID, n.DmrID, n.ESSID, callsign, n.Authenticated, n.Slots[0].TG, n.Slots[1].TG, n.LastSeenSec)
	})

	b.WriteString("talkgroups:\n")
	d.talkgroups.Each(func(g *talkgroup.Group) {
		subs := g.Subscribers()
		if g.OwnerSlotID == 0 && len(subs) == 0 {
			return
		}
		fmt.Fprintf(&b, "  tg=%d owner_slotid=%d subscribers=%d\n", g.TG, g.OwnerSlotID, len(subs))
	})

	out := b.String()
	if len(out) > wire.StatusMax {
		out = out[:wire.StatusMax]
	}
	d.send([]byte(out), addr)
}

func (d *Dispatcher) lookupCallsign(dmrid uint32) string {
	if d.directory == nil {
		return ""
	}
	u, ok := d.directory.Lookup(dmrid)
	if !ok {
		return ""
	}
	return u.Callsign
}
