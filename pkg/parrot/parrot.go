// Package parrot implements the self-echo test loop (C5): capturing a
// private-call-to-self stream into a bounded in-memory buffer and
// re-emitting it to the sender after a fixed delay at fixed pacing.
package parrot

import (
	"context"
	"time"
)

// CaptureWindow bounds how much real time of a single parrot capture
// is retained; frames arriving after this bound are dropped but
// playback still starts normally once the stream ends.
const CaptureWindow = 6 * time.Second

// PlaybackDelay is the pause between the end of a capture and the
// first replayed frame. Variable (not const) so tests can shrink it.
var PlaybackDelay = 1 * time.Second

// FramePacing is the interval between replayed frames. Variable (not
// const) so tests can shrink it.
var FramePacing = 20 * time.Millisecond

// Capture accumulates the frames of one in-progress parrot recording.
// It is owned exclusively by the dispatcher until handed off to Play,
// at which point the dispatcher must drop its own reference.
type Capture struct {
	startSec int64
	seq      uint32
	frames   [][]byte
}

// NewCapture starts a new capture at the given second-resolution
// timestamp.
func NewCapture(startSec int64) *Capture {
	return &Capture{startSec: startSec}
}

// Within reports whether nowSec is still inside this capture's 6
// second window.
func (c *Capture) Within(nowSec int64) bool {
	return nowSec-c.startSec < int64(CaptureWindow/time.Second)
}

// Append records one 55-byte frame. The caller is responsible for
// checking Within before calling; Append itself does not enforce the
// window so that the terminating end-of-stream frame can always be
// appended regardless of the bound (matching the "frames after that
// bound are dropped but playback still starts" edge case).
func (c *Capture) Append(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	c.frames = append(c.frames, cp)
	c.seq++
}

// Len returns the number of captured frames.
func (c *Capture) Len() int { return len(c.frames) }

// Frames returns the captured frames in recording order, for handing
// off to Play. The caller that detaches a Capture owns the returned
// slice exclusively from that point on.
func (c *Capture) Frames() [][]byte { return c.frames }

// Play replays the capture's frames to send, one every FramePacing
// after an initial PlaybackDelay, then returns. It is meant to be run
// on its own goroutine (one per completed capture); it touches
// nothing but the frames it was given and the send function.
//
// ctx only bounds an abrupt process shutdown; normal playback runs to
// completion and is never cancelled mid-stream by application logic.
func Play(ctx context.Context, frames [][]byte, send func(frame []byte)) {
	if !sleep(ctx, PlaybackDelay) {
		return
	}
	for _, f := range frames {
		send(f)
		if !sleep(ctx, FramePacing) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
