// Package wire parses and emits the fixed-layout MMDVM home-brew
// repeater frames: login, challenge, config, ping, logout, voice and
// status datagrams. All multibyte integers on the wire are big-endian.
package wire

import "encoding/binary"

// Kind identifies a recognised datagram by its size and ASCII tag.
type Kind int

const (
	Unknown Kind = iota
	Login          // RPTL
	Challenge      // RPTK
	NodeConfig     // RPTC
	Ping           // RPTPING
	Logout         // RPTCL
	Voice          // DMRD
	Status         // /STAT
)

// Exact or minimum sizes for each recognised frame.
const (
	LoginSize     = 8
	ChallengeSize = 40
	ConfigSize    = 302
	PingSize      = 11
	LogoutSize    = 9
	VoiceSize     = 55
	StatusMinSize = 5

	SaltSize   = 4
	DigestSize = 32
)

// Reply sizes.
const (
	AckSize   = 10 // "RPTACK" + 4
	NakSize   = 10 // "MSTNAK" + 4
	PongSize  = 11 // "MSTPONG" + 4
	StatusMax = 500
)

// Classify identifies a received datagram by its length and leading
// ASCII tag. Ambiguous prefixes (RPTC vs RPTCL) are resolved by
// requiring an exact size match for the candidate tag.
func Classify(b []byte) Kind {
	switch {
	case len(b) == LoginSize && hasTag(b, "RPTL"):
		return Login
	case len(b) == ChallengeSize && hasTag(b, "RPTK"):
		return Challenge
	case len(b) == ConfigSize && hasTag(b, "RPTC"):
		return NodeConfig
	case len(b) == PingSize && hasTag(b, "RPTPING"):
		return Ping
	case len(b) == LogoutSize && hasTag(b, "RPTCL"):
		return Logout
	case len(b) == VoiceSize && hasTag(b, "DMRD"):
		return Voice
	case len(b) >= StatusMinSize && hasTag(b, "/STAT"):
		return Status
	default:
		return Unknown
	}
}

func hasTag(b []byte, tag string) bool {
	if len(b) < len(tag) {
		return false
	}
	return string(b[:len(tag)]) == tag
}

// Uint24 reads a 3-byte big-endian unsigned integer at offset off.
func Uint24(b []byte, off int) uint32 {
	return uint32(b[off])<<16 | uint32(b[off+1])<<8 | uint32(b[off+2])
}

// PutUint24 writes a 3-byte big-endian unsigned integer at offset off.
// The top byte of v is discarded.
func PutUint24(b []byte, off int, v uint32) {
	b[off] = byte(v >> 16)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v)
}

// Uint32 reads a 4-byte big-endian unsigned integer at offset off.
func Uint32(b []byte, off int) uint32 {
	return binary.BigEndian.Uint32(b[off : off+4])
}

// PutUint32 writes a 4-byte big-endian unsigned integer at offset off.
func PutUint32(b []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(b[off:off+4], v)
}
