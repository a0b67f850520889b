package relay

import (
	"net"
	"time"

	"github.com/kb9vcn/dmr-relay/pkg/logger"
	"github.com/kb9vcn/dmr-relay/pkg/metrics"
	"github.com/kb9vcn/dmr-relay/pkg/mqttpublish"
	"github.com/kb9vcn/dmr-relay/pkg/parrot"
	"github.com/kb9vcn/dmr-relay/pkg/registry"
	"github.com/kb9vcn/dmr-relay/pkg/talkgroup"
	"github.com/kb9vcn/dmr-relay/pkg/wire"
)

// parkingTG is the reserved talkgroup that, on start-of-stream,
// unsubscribes the sender's slot without creating or joining anything
// (spec.md §4.4 step 3).
const parkingTG = 4000

// handleVoice implements the full DMRD handling algorithm of
// spec.md §4.4: unauthenticated/unlocked senders are rejected, then
// the frame is routed to the parking unsubscribe, the parrot loop, a
// private call, or a talkgroup (with its scanner mirror), in that
// order.
func (d *Dispatcher) handleVoice(data []byte, addr *net.UDPAddr) {
	frame, ok := wire.ParseDMRD(data)
	if !ok {
		return
	}

	nodeid := frame.NodeID()
	slotid := registry.SlotID(nodeid, frame.Slot())

	slot, ok := d.registry.FindSlot(slotid, true)
	if !ok {
		return
	}
	node, ok := d.registry.Find(nodeid)
	if !ok || !node.Authenticated || !addrEqual(node.Addr, addr) {
		d.log.Debug("DMRD rejected", logger.Uint32("nodeid", nodeid), logger.String("addr", addr.String()))
		return
	}

	node.LastSeenSec = d.nowSec()
	node.Addr = addr

	radioID := frame.RadioID()
	if radioID >= registry.LowDMRID && radioID < registry.HighDMRID {
		d.registry.RecordRadioHeard(radioID, slotid)
	}

	tg := frame.TG()

	if tg == parkingTG && frame.IsStartOfStream() {
		d.talkgroups.Unsubscribe(slot)
		return
	}

	if frame.IsPrivateCall() {
		if tg == radioID {
			d.handleParrot(slot, frame, node)
			return
		}
		d.handlePrivateCall(slot, frame, tg)
		return
	}

	d.handleTalkgroupCall(slot, frame, tg, slotid)
}

// handlePrivateCall routes a radio-to-radio private call to whichever
// slot the destination radio was last heard transmitting on.
func (d *Dispatcher) handlePrivateCall(slot *registry.Slot, frame wire.DMRDFrame, destRadioID uint32) {
	d.talkgroups.Unsubscribe(slot)

	destSlotID, ok := d.registry.RadioSlotOf(destRadioID)
	if !ok {
		d.log.Debug("private call to unheard radio", logger.Uint32("radioid", destRadioID))
		return
	}
	d.relayTo(frame, destSlotID, metrics.KindPrivate)
}

// handleTalkgroupCall subscribes the sender if needed, then applies
// ownership/fan-out rules (unless the frame targets the scanner TG
// directly) and always mirrors the frame into the scanner group.
// Talkgroups are created lazily on first keyup; only a TG number
// outside [talkgroup.MinTG, talkgroup.MaxTG) is rejected.
func (d *Dispatcher) handleTalkgroupCall(slot *registry.Slot, frame wire.DMRDFrame, tg uint32, slotid uint32) {
	g, ok := d.talkgroups.Find(tg, true)
	if !ok {
		d.log.Info("keyup on out-of-range talkgroup", logger.Uint32("tg", tg))
		d.talkgroups.Unsubscribe(slot)
		return
	}

	if slot.TG != tg {
		d.talkgroups.Subscribe(slot, tg)
	}

	if tg != talkgroup.Scanner {
		d.applyOwnership(g, slot, frame, slotid)
		d.mirrorToScanner(slot, frame, slotid)
	}
}

// applyOwnership implements spec.md §4.4's talkgroup ownership rules:
// timeout, take, release, and fan-out while owned.
func (d *Dispatcher) applyOwnership(g *talkgroup.Group, slot *registry.Slot, frame wire.DMRDFrame, slotid uint32) {
	now := d.nowTick()

	if g.OwnerSlotID != 0 && now-g.LastPacketTick >= int64(ownerTimeout / time.Millisecond) {
		d.log.Debug("talkgroup owner timed out", logger.Uint32("tg", g.TG))
		d.releaseOwnership(g)
	}

	if frame.IsStartOfStream() && g.OwnerSlotID == 0 {
		g.OwnerSlotID = slotid
		g.LastPacketTick = now
		d.ownerChanged(g, slot.NodeID, true)
	}

	if frame.IsEndOfStream() && g.OwnerSlotID == slotid {
		d.releaseOwnership(g)
	}

	if g.OwnerSlotID == slotid {
		g.LastPacketTick = now
		for _, sub := range g.Subscribers() {
			if sub == slotid {
				continue
			}
			d.relayTo(frame, sub, metrics.KindTalkgroup)
		}
	}
}

func (d *Dispatcher) releaseOwnership(g *talkgroup.Group) {
	if g.OwnerSlotID == 0 {
		return
	}
	g.OwnerSlotID = 0
	d.ownerChanged(g, 0, false)
}

func (d *Dispatcher) ownerChanged(g *talkgroup.Group, ownerNode uint32, owned bool) {
	if d.metrics != nil {
		d.metrics.TalkgroupOwnerChanged()
	}
	if d.mqtt != nil {
		d.mqtt.PublishTalkgroupOwner(mqttpublish.TalkgroupOwnerEvent{
			TG:        g.TG,
			OwnerNode: ownerNode,
			Owned:     owned,
		})
	}
	if d.hub != nil {
		d.hub.Broadcast(dashboardEvent("talkgroup_owner", map[string]interface{}{
			"tg": g.TG, "owner_node_id": ownerNode, "owned": owned,
		}))
	}
}

// mirrorToScanner applies the scanner's own ownership/timeout logic
// and, while this slot owns the scanner, fans out to every scanner
// subscriber with no sender exclusion (spec.md §4.4 "Scanner mirror").
func (d *Dispatcher) mirrorToScanner(slot *registry.Slot, frame wire.DMRDFrame, slotid uint32) {
	g, ok := d.talkgroups.Find(talkgroup.Scanner, true)
	if !ok {
		return
	}
	now := d.nowTick()

	if g.OwnerSlotID != 0 && now-g.LastPacketTick >= int64(ownerTimeout / time.Millisecond) {
		d.releaseOwnership(g)
	}

	switch {
	case g.OwnerSlotID == slotid && frame.IsEndOfStream():
		d.releaseOwnership(g)
	case g.OwnerSlotID == 0 && !frame.IsEndOfStream():
		g.OwnerSlotID = slotid
		g.LastPacketTick = now
		d.ownerChanged(g, slot.NodeID, true)
	}

	if g.OwnerSlotID == slotid {
		g.LastPacketTick = now
		for _, sub := range g.Subscribers() {
			d.relayTo(frame, sub, metrics.KindScanner)
		}
	}
}

// relayTo resends frame to the node owning destSlotID, rewriting the
// slot bit in byte 15 to address that node's destination slot.
func (d *Dispatcher) relayTo(frame wire.DMRDFrame, destSlotID uint32, kind string) {
	destSlot, ok := d.registry.FindSlot(destSlotID, false)
	if !ok {
		return
	}
	destNode, ok := d.registry.Find(destSlot.NodeID)
	if !ok || destNode.Addr == nil {
		return
	}

	out := frame.Clone()
	out.SetSlot(destSlot.Index)
	d.send(out.Bytes(), destNode.Addr)

	if d.metrics != nil {
		d.metrics.FrameRelayed(kind)
	}
}

// handleParrot implements spec.md §4.5/§4.4-step-4: a private call
// from a radio to itself is captured rather than relayed, then handed
// to an asynchronous playback task on end-of-stream.
func (d *Dispatcher) handleParrot(slot *registry.Slot, frame wire.DMRDFrame, node *registry.Node) {
	slotid := slot.SlotID

	if frame.IsStartOfStream() {
		d.talkgroups.Unsubscribe(slot)
		if _, exists := d.captures[slotid]; !exists {
			d.captures[slotid] = parrot.NewCapture(d.nowSec())
			if d.metrics != nil {
				d.metrics.ParrotCaptureStarted()
			}
		}
	}

	capture, capturing := d.captures[slotid]
	if !capturing {
		return
	}

	if frame.IsEndOfStream() || capture.Within(d.nowSec()) {
		capture.Append(frame.Bytes())
	}

	if !frame.IsEndOfStream() {
		return
	}

	delete(d.captures, slotid)
	destAddr := node.Addr
	frames := capture.Frames()

	d.log.Info("parrot playback starting", logger.Uint32("nodeid", node.NodeID), logger.Int("frames", len(frames)))
	if d.mqtt != nil {
		d.mqtt.PublishParrot(mqttpublish.ParrotEvent{NodeID: node.NodeID, State: "playing", Frames: len(frames)})
	}

	go parrot.Play(d.shutdownCtx(), frames, func(f []byte) {
		d.send(f, destAddr)
	})
}
