package relay

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"net"
	"time"

	"github.com/kb9vcn/dmr-relay/pkg/logger"
	"github.com/kb9vcn/dmr-relay/pkg/mqttpublish"
	"github.com/kb9vcn/dmr-relay/pkg/wire"
)

// handleLogin implements the RPTL leg of the login/authentication
// state machine (spec.md §4.4): absent and challenged nodes, and
// authenticated nodes re-logging in from their own address, all fall
// back to the challenged state with a freshly generated salt.
// Authenticated nodes logging in from a different address are dropped.
func (d *Dispatcher) handleLogin(data []byte, addr *net.UDPAddr) {
	nodeid := wire.LoginNodeID(data)
	node, ok := d.registry.FindOrCreate(nodeid, true)
	if !ok {
		d.log.Info("RPTL with out-of-range dmrid", logger.Uint32("nodeid", nodeid))
		return
	}
	if node.Authenticated && node.Addr != nil && !addrEqual(node.Addr, addr) {
		d.log.Warn("RPTL for authenticated node from a different address",
			logger.Uint32("nodeid", nodeid), logger.String("addr", addr.String()))
		return
	}

	node.Salt = generateSalt()
	node.Addr = addr
	node.Authenticated = false
	node.LastSeenSec = d.nowSec()

	d.log.Info("RPTL accepted", logger.Uint32("nodeid", nodeid), logger.String("addr", addr.String()))
	d.send(wire.BuildAckSalt(node.Salt), addr)
}

// handleChallenge implements the RPTK leg: the digest at offset +8
// must equal SHA256(salt‖password) for the node to move to the
// authenticated state.
func (d *Dispatcher) handleChallenge(data []byte, addr *net.UDPAddr) {
	nodeid := wire.ChallengeNodeID(data)
	node, ok := d.registry.Find(nodeid)
	if !ok {
		d.log.Debug("RPTK from unknown node", logger.Uint32("nodeid", nodeid))
		return
	}
	if node.Addr == nil || !addrEqual(node.Addr, addr) {
		d.log.Warn("RPTK from unlocked address", logger.Uint32("nodeid", nodeid), logger.String("addr", addr.String()))
		d.send(wire.BuildNak(nodeid), addr)
		return
	}

	digest := wire.ChallengeDigest(data)
	expected := challengeDigest(node.Salt, d.password)

	if !bytes.Equal(digest, expected) {
		d.log.Warn("RPTK failed authentication", logger.Uint32("nodeid", nodeid))
		d.send(wire.BuildNak(nodeid), addr)
		return
	}

	node.Authenticated = true
	node.LastSeenSec = d.nowSec()
	d.log.Info("node authenticated", logger.Uint32("nodeid", nodeid))
	d.send(wire.BuildAckNodeID(nodeid), addr)

	if d.metrics != nil {
		d.metrics.NodeAuthenticated()
	}
	d.publishNodeState(nodeid, "connected")
}

// handleConfig implements the RPTC leg: an authenticated node
// reporting its callsign/location description. The description is not
// retained (the relay has no field for it — callsigns come from the
// radioid directory, not this free-form text), only logged.
func (d *Dispatcher) handleConfig(data []byte, addr *net.UDPAddr) {
	nodeid := wire.ConfigNodeID(data)
	node, ok := d.registry.Find(nodeid)
	if !ok || !node.Authenticated || !addrEqual(node.Addr, addr) {
		d.log.Debug("RPTC rejected", logger.Uint32("nodeid", nodeid))
		return
	}
	node.LastSeenSec = d.nowSec()
	d.log.Info("RPTC received", logger.Uint32("nodeid", nodeid), logger.Int("description_len", len(wire.ConfigDescription(data))))
	d.send(wire.BuildAckNodeID(nodeid), addr)
}

// handlePing implements the RPTPING leg, including the NAK reply
// required for an unknown or address-mismatched node.
func (d *Dispatcher) handlePing(data []byte, addr *net.UDPAddr) {
	nodeid := wire.PingNodeID(data)
	node, ok := d.registry.Find(nodeid)
	if !ok || !node.Authenticated || !addrEqual(node.Addr, addr) {
		d.log.Debug("RPTPING rejected", logger.Uint32("nodeid", nodeid))
		d.send(wire.BuildNak(nodeid), addr)
		return
	}
	node.LastSeenSec = d.nowSec()
	d.send(wire.BuildPong(nodeid), addr)
}

// handleLogout implements the RPTCL leg: a node logging out from its
// own locked address is removed, cascading through the slot-level
// talkgroup unsubscribe.
func (d *Dispatcher) handleLogout(data []byte, addr *net.UDPAddr) {
	nodeid := wire.LogoutNodeID(data)
	node, ok := d.registry.Find(nodeid)
	if !ok {
		return
	}
	if !addrEqual(node.Addr, addr) {
		d.log.Warn("RPTCL from wrong address", logger.Uint32("nodeid", nodeid), logger.String("addr", addr.String()))
		return
	}
	d.log.Info("node logged out", logger.Uint32("nodeid", nodeid))
	d.registry.Delete(nodeid)
	d.publishNodeState(nodeid, "disconnected")
}

// challengeDigest computes SHA256(salt‖password) using the salt's raw
// stored byte order, matching whatever order the RPTACK reply carried
// it in — see DESIGN.md's resolution of the salt-byte-order open
// question.
func challengeDigest(salt [wire.SaltSize]byte, password string) []byte {
	h := sha256.New()
	h.Write(salt[:])
	h.Write([]byte(password))
	return h.Sum(nil)
}

func generateSalt() [wire.SaltSize]byte {
	var salt [wire.SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		binary.BigEndian.PutUint32(salt[:], uint32(time.Now().UnixNano()))
	}
	return salt
}

func (d *Dispatcher) publishNodeState(nodeid uint32, state string) {
	if d.hub != nil {
		d.hub.Broadcast(dashboardEvent("node_"+state, map[string]interface{}{"node_id": nodeid}))
	}
	if d.mqtt == nil {
		return
	}
	callsign := ""
	if d.directory != nil {
		if node, ok := d.registry.Find(nodeid); ok {
			if u, found := d.directory.Lookup(node.DmrID); found {
				callsign = u.Callsign
			}
		}
	}
	d.mqtt.PublishNodeState(mqttpublish.NodeStateEvent{
		NodeID:    nodeid,
		Callsign:  callsign,
		State:     state,
		Timestamp: time.Now(),
	})
}
