// Package registry implements the node/slot data model (C2): mapping
// a node identifier to its authentication state, last-known address,
// and two slot records. It deliberately avoids the source's raw
// pointer-aliased records in favor of an index-based arena addressed
// by node id and slot id, per the reimplementation note on cyclic
// structures.
//
// The registry is not safe for concurrent mutation: per the
// single-writer model, only the dispatcher goroutine ever calls its
// mutating methods.
package registry

import "net"

// DMR ID bounds. A dmrid outside [LowDMRID, HighDMRID) is rejected.
const (
	LowDMRID  = 1_000_000
	HighDMRID = 8_000_000

	essidDivisor = 0xFF_FFFF
)

// Slot is one of a node's two time-division channels.
type Slot struct {
	SlotID uint32
	NodeID uint32 // back-reference: the owning node's login id
	Index  int    // 0 or 1

	TG uint32 // currently subscribed talkgroup, 0 = unsubscribed
}

// Node is a logged-in (or logging-in) hotspot.
type Node struct {
	NodeID uint32
	DmrID  uint32
	ESSID  uint32

	Addr          *net.UDPAddr
	Salt          [4]byte
	Authenticated bool
	LastSeenSec   int64

	Slots [2]Slot
}

// DecomposeNodeID splits a login id into its DMR ID and ESSID parts.
func DecomposeNodeID(nodeid uint32) (dmrid, essid uint32) {
	if nodeid > essidDivisor {
		return nodeid / 100, nodeid % 100
	}
	return nodeid, 0
}

// SlotID encodes a node id and a slot index (0 or 1) into the slot
// identifier used as the talkgroup subscriber list's addressing key:
// bit 31 set iff the slot index is 1.
func SlotID(nodeid uint32, index int) uint32 {
	if index == 1 {
		return nodeid | 0x8000_0000
	}
	return nodeid &^ 0x8000_0000
}

// SplitSlotID recovers the node id and slot index from a slot id.
func SplitSlotID(slotid uint32) (nodeid uint32, index int) {
	if slotid&0x8000_0000 != 0 {
		return slotid &^ 0x8000_0000, 1
	}
	return slotid, 0
}

// Registry holds every currently known node, indexed by login id, and
// the last slot on which each DMR radio id was heard transmitting.
type Registry struct {
	nodes         map[uint32]*Node
	radioSlotOf   map[uint32]uint32 // dmrid (radio) -> last-heard slotid
	unsubscribeFn func(slot *Slot)  // wired by the dispatcher to pkg/talkgroup.Unsubscribe
}

// New creates an empty registry. unsubscribe is called once per slot
// when a node is deleted, letting the caller wire in the talkgroup
// table without this package importing it.
func New(unsubscribe func(slot *Slot)) *Registry {
	return &Registry{
		nodes:         make(map[uint32]*Node),
		radioSlotOf:   make(map[uint32]uint32),
		unsubscribeFn: unsubscribe,
	}
}

// FindOrCreate resolves a node by its login id. With create=false, a
// miss returns (nil, false). A dmrid outside [LowDMRID, HighDMRID) is
// always rejected regardless of create.
func (r *Registry) FindOrCreate(nodeid uint32, create bool) (*Node, bool) {
	dmrid, essid := DecomposeNodeID(nodeid)
	if dmrid < LowDMRID || dmrid >= HighDMRID {
		return nil, false
	}
	if n, ok := r.nodes[nodeid]; ok {
		return n, true
	}
	if !create {
		return nil, false
	}
	n := &Node{NodeID: nodeid, DmrID: dmrid, ESSID: essid}
	n.Slots[0] = Slot{SlotID: SlotID(nodeid, 0), NodeID: nodeid, Index: 0}
	n.Slots[1] = Slot{SlotID: SlotID(nodeid, 1), NodeID: nodeid, Index: 1}
	r.nodes[nodeid] = n
	return n, true
}

// Find returns an existing node without creating one.
func (r *Registry) Find(nodeid uint32) (*Node, bool) {
	n, ok := r.nodes[nodeid]
	return n, ok
}

// FindSlot resolves a slot id to its owning node's slot record,
// optionally creating the node (and therefore both its slots) if
// absent.
func (r *Registry) FindSlot(slotid uint32, create bool) (*Slot, bool) {
	nodeid, index := SplitSlotID(slotid)
	n, ok := r.FindOrCreate(nodeid, create)
	if !ok {
		return nil, false
	}
	return &n.Slots[index], true
}

// Delete unsubscribes both of the node's slots from their talkgroups
// and removes the node from the registry.
func (r *Registry) Delete(nodeid uint32) {
	n, ok := r.nodes[nodeid]
	if !ok {
		return
	}
	if r.unsubscribeFn != nil {
		r.unsubscribeFn(&n.Slots[0])
		r.unsubscribeFn(&n.Slots[1])
	}
	delete(r.nodes, nodeid)
}

// RecordRadioHeard records the most recent slot id on which a radio
// (identified by its DMR id, from the DMRD radioid field) was heard
// transmitting. Deliberately keyed by dmrid rather than nodeid/essid,
// per the source's radio_slot_of behavior, retained for wire
// compatibility: two ESSIDs of one dmrid share a single entry.
func (r *Registry) RecordRadioHeard(dmrid, slotid uint32) {
	r.radioSlotOf[dmrid] = slotid
}

// RadioSlotOf returns the most recently observed slot id for a radio,
// used to route private calls to their destination.
func (r *Registry) RadioSlotOf(dmrid uint32) (uint32, bool) {
	slotid, ok := r.radioSlotOf[dmrid]
	return slotid, ok
}

// Each calls fn for every node currently registered. fn must not
// mutate the registry (delete nodes) while iterating; callers that
// need to evict nodes should collect candidate ids first via Each and
// call Delete afterwards (see pkg/relay's housekeeping sweep).
func (r *Registry) Each(fn func(n *Node)) {
	for _, n := range r.nodes {
		fn(n)
	}
}

// Count returns the number of currently registered nodes.
func (r *Registry) Count() int { return len(r.nodes) }
