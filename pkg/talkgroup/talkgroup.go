// Package talkgroup implements the talkgroup table (C3): ownership,
// last-activity tracking, and an intrusive-style doubly-linked
// subscriber list addressed by slot id rather than by pointer, per
// the reimplementation note on cyclic structures.
package talkgroup

import "github.com/kb9vcn/dmr-relay/pkg/registry"

// Well-known talkgroups pre-created at startup.
const (
	Scanner  = 777
	MaxTG    = 10_000
	MinTG    = 1
	tacStart = 100
	tacEnd   = 109
)

type member struct {
	prev, next uint32 // 0 = none; real slot ids are always non-zero
}

// Group is one talkgroup's ownership and subscriber state.
type Group struct {
	TG             uint32
	OwnerSlotID    uint32
	LastPacketTick int64

	head    uint32
	members map[uint32]*member
}

// Table maps talkgroup numbers to Groups.
type Table struct {
	groups map[uint32]*Group
}

// New creates a table with TG 777 (scanner) and TGs 100-109
// pre-created, as required at startup.
func New() *Table {
	t := &Table{groups: make(map[uint32]*Group)}
	t.Find(Scanner, true)
	for tg := uint32(tacStart); tg <= tacEnd; tg++ {
		t.Find(tg, true)
	}
	return t
}

// Find resolves a talkgroup number to its Group. Numbers outside
// [MinTG, MaxTG) never resolve, regardless of create. Otherwise a
// group is created lazily only when create is true.
func (t *Table) Find(tg uint32, create bool) (*Group, bool) {
	if tg < MinTG || tg >= MaxTG {
		return nil, false
	}
	if g, ok := t.groups[tg]; ok {
		return g, true
	}
	if !create {
		return nil, false
	}
	g := &Group{TG: tg, members: make(map[uint32]*member)}
	t.groups[tg] = g
	return g, true
}

// Subscribe moves slot to the head of tg's subscriber list, creating
// tg if it does not exist yet. If slot is already subscribed to a
// different group, it is spliced out of that group's list first.
// Subscribing a slot that is already on tg is a no-op (idempotent).
func (t *Table) Subscribe(slot *registry.Slot, tg uint32) {
	g, ok := t.Find(tg, true)
	if !ok {
		return
	}
	if slot.TG == g.TG {
		return
	}
	if slot.TG != 0 {
		if old, ok := t.groups[slot.TG]; ok {
			t.unsubscribeFrom(old, slot)
		}
	}
	m := &member{next: g.head}
	if g.head != 0 {
		g.members[g.head].prev = slot.SlotID
	}
	g.members[slot.SlotID] = m
	g.head = slot.SlotID
	slot.TG = g.TG
}

// Unsubscribe splices slot out of its current group's subscriber
// list, if any, clearing ownership if slot was the owner, and zeroes
// slot.TG. Unsubscribing an already-unsubscribed slot is a no-op.
func (t *Table) Unsubscribe(slot *registry.Slot) {
	if slot.TG == 0 {
		return
	}
	g, ok := t.groups[slot.TG]
	if !ok {
		slot.TG = 0
		return
	}
	t.unsubscribeFrom(g, slot)
	slot.TG = 0
}

func (t *Table) unsubscribeFrom(g *Group, slot *registry.Slot) {
	m, ok := g.members[slot.SlotID]
	if !ok {
		return
	}
	if m.prev != 0 {
		g.members[m.prev].next = m.next
	} else {
		g.head = m.next
	}
	if m.next != 0 {
		g.members[m.next].prev = m.prev
	}
	delete(g.members, slot.SlotID)
	if g.OwnerSlotID == slot.SlotID {
		g.OwnerSlotID = 0
	}
}

// Subscribers returns every subscribed slot id, head first, in list
// order.
func (g *Group) Subscribers() []uint32 {
	out := make([]uint32, 0, len(g.members))
	for id := g.head; id != 0; {
		out = append(out, id)
		id = g.members[id].next
	}
	return out
}

// Head returns the slot id currently at the head of the subscriber
// list, or 0 if empty.
func (g *Group) Head() uint32 { return g.head }

// Each calls fn for every currently known talkgroup, including the
// pre-created ones.
func (t *Table) Each(fn func(g *Group)) {
	for _, g := range t.groups {
		fn(g)
	}
}
