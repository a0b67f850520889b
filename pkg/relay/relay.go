// Package relay implements the packet dispatcher (C4): a single
// goroutine that owns the UDP socket, the node registry, and the
// talkgroup table, and drives the login state machine, the DMRD
// handling algorithm, and the housekeeping sweep. Every mutation of
// the node registry or talkgroup table happens on this one goroutine;
// everything else (metrics, MQTT, the dashboard, the callsign
// directory) only reads.
package relay

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/kb9vcn/dmr-relay/pkg/dashboard"
	"github.com/kb9vcn/dmr-relay/pkg/logger"
	"github.com/kb9vcn/dmr-relay/pkg/metrics"
	"github.com/kb9vcn/dmr-relay/pkg/mqttpublish"
	"github.com/kb9vcn/dmr-relay/pkg/parrot"
	"github.com/kb9vcn/dmr-relay/pkg/radioid"
	"github.com/kb9vcn/dmr-relay/pkg/registry"
	"github.com/kb9vcn/dmr-relay/pkg/talkgroup"
	"github.com/kb9vcn/dmr-relay/pkg/wire"
)

// ownerTimeout is how long a talkgroup (or the scanner) may go without
// a packet before its owner is considered timed out.
const ownerTimeout = 1500 * time.Millisecond

// idleTimeout is how long a node may go without a packet before the
// housekeeping sweep evicts it.
const idleTimeout = 60 * time.Second

// snapshotInterval bounds how stale the dashboard's view of C2/C3 may
// be; it is independent of housekeepingInterval.
const snapshotInterval = 2 * time.Second

// Dispatcher is the C4 packet dispatcher. It is not safe for
// concurrent use: Run must be the only goroutine that calls its
// mutating methods.
type Dispatcher struct {
	conn                 *net.UDPConn
	password             string
	housekeepingInterval time.Duration

	registry   *registry.Registry
	talkgroups *talkgroup.Table
	captures   map[uint32]*parrot.Capture

	log       *logger.Logger
	metrics   *metrics.Collector
	mqtt      *mqttpublish.Publisher
	hub       *dashboard.Hub
	directory *radioid.Directory

	tickMs       int64
	lastSweep    time.Time
	lastSnapshot time.Time

	snapshotValue atomic.Value

	ctx context.Context
}

// New creates a dispatcher bound to conn. password is the shared
// RPTK challenge-response secret; housekeepingInterval is how often
// the idle sweep runs (spec default: 1 minute).
func New(conn *net.UDPConn, password string, housekeepingInterval time.Duration, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{
		conn:                 conn,
		password:             password,
		housekeepingInterval: housekeepingInterval,
		talkgroups:           talkgroup.New(),
		captures:             make(map[uint32]*parrot.Capture),
		log:                  log.WithComponent("relay"),
	}
	d.registry = registry.New(d.talkgroups.Unsubscribe)
	return d
}

// SetMetrics wires an optional Prometheus collector. Every call site
// in this package checks for nil, so wiring is entirely optional.
func (d *Dispatcher) SetMetrics(c *metrics.Collector) { d.metrics = c }

// SetMQTT wires an optional event publisher.
func (d *Dispatcher) SetMQTT(p *mqttpublish.Publisher) { d.mqtt = p }

// SetDashboard wires an optional live-event broadcast hub.
func (d *Dispatcher) SetDashboard(h *dashboard.Hub) { d.hub = h }

// SetDirectory wires an optional callsign directory used to annotate
// the status dump, the dashboard snapshot and MQTT node-state events.
func (d *Dispatcher) SetDirectory(r *radioid.Directory) { d.directory = r }

// Run blocks on the UDP socket with a 1 s read timeout, classifying
// and dispatching each datagram, folding the housekeeping sweep into
// the same loop, until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.ctx = ctx
	go d.runClock(ctx)

	buf := make([]byte, 4096)
	d.lastSweep = time.Now()
	d.publishSnapshot()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := d.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			d.log.Warn("failed to set read deadline", logger.Error(err))
		}

		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				d.maybeSweep()
				d.maybeSnapshot()
				continue
			}
			d.log.Error("udp receive failed", logger.Error(err))
			time.Sleep(100 * time.Millisecond)
			continue
		}

		d.maybeSweep()
		d.dispatch(buf[:n], addr)
		d.maybeSnapshot()
	}
}

func (d *Dispatcher) dispatch(data []byte, addr *net.UDPAddr) {
	switch wire.Classify(data) {
	case wire.Login:
		d.handleLogin(data, addr)
	case wire.Challenge:
		d.handleChallenge(data, addr)
	case wire.NodeConfig:
		d.handleConfig(data, addr)
	case wire.Ping:
		d.handlePing(data, addr)
	case wire.Logout:
		d.handleLogout(data, addr)
	case wire.Voice:
		d.handleVoice(data, addr)
	case wire.Status:
		d.handleStatus(data, addr)
	default:
		d.log.Debug("dropping unrecognised datagram", logger.Int("size", len(data)))
	}
}

func (d *Dispatcher) send(b []byte, addr *net.UDPAddr) {
	if addr == nil {
		return
	}
	if _, err := d.conn.WriteToUDP(b, addr); err != nil {
		d.log.Debug("udp send failed", logger.String("addr", addr.String()), logger.Error(err))
	}
}

// runClock advances the millisecond tick used for talkgroup ownership
// timeouts every 50 ms, per spec.md §5. Node-level timestamps use
// wall-clock seconds directly (see nowSec) rather than this tick, so
// the dashboard and status dump can report real Unix time.
func (d *Dispatcher) runClock(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			atomic.StoreInt64(&d.tickMs, time.Since(start).Milliseconds())
		}
	}
}

func (d *Dispatcher) nowTick() int64 { return atomic.LoadInt64(&d.tickMs) }

func (d *Dispatcher) nowSec() int64 { return time.Now().Unix() }

func (d *Dispatcher) maybeSweep() {
	if time.Since(d.lastSweep) < d.housekeepingInterval {
		return
	}
	d.lastSweep = time.Now()
	d.sweep()
}

func (d *Dispatcher) maybeSnapshot() {
	if time.Since(d.lastSnapshot) < snapshotInterval {
		return
	}
	d.lastSnapshot = time.Now()
	d.publishSnapshot()
}

// shutdownCtx returns the context parrot playback tasks select on to
// cut short an in-progress replay if the process is shutting down.
// Playback is otherwise never cancelled by application logic.
func (d *Dispatcher) shutdownCtx() context.Context {
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

func addrEqual(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
