package wire

// NodeIDOf extracts the 4-byte big-endian node id that immediately
// follows the ASCII tag in RPTL/RPTK/RPTC/RPTPING/RPTCL frames.
func NodeIDOf(b []byte, tagLen int) uint32 {
	return Uint32(b, tagLen)
}

// LoginNodeID returns the node id carried by an 8-byte RPTL frame.
func LoginNodeID(b []byte) uint32 { return NodeIDOf(b, 4) }

// ChallengeNodeID returns the node id carried by a 40-byte RPTK frame.
func ChallengeNodeID(b []byte) uint32 { return NodeIDOf(b, 4) }

// ChallengeDigest returns the 32-byte SHA-256 digest carried by a
// 40-byte RPTK frame.
func ChallengeDigest(b []byte) []byte { return b[8:40] }

// ConfigNodeID returns the node id carried by a 302-byte RPTC frame.
func ConfigNodeID(b []byte) uint32 { return NodeIDOf(b, 4) }

// ConfigDescription returns the free-form description bytes following
// the node id in a 302-byte RPTC frame.
func ConfigDescription(b []byte) []byte { return b[8:] }

// PingNodeID returns the node id carried by an 11-byte RPTPING frame.
func PingNodeID(b []byte) uint32 { return NodeIDOf(b, 7) }

// LogoutNodeID returns the node id carried by a 9-byte RPTCL frame.
func LogoutNodeID(b []byte) uint32 { return NodeIDOf(b, 5) }

// BuildAckSalt builds the 10-byte "RPTACK" + salt reply sent in
// response to RPTL.
func BuildAckSalt(salt [SaltSize]byte) []byte {
	out := make([]byte, AckSize)
	copy(out, "RPTACK")
	copy(out[6:], salt[:])
	return out
}

// BuildAckNodeID builds the 10-byte "RPTACK" + nodeid reply sent in
// response to a successful RPTK or RPTC.
func BuildAckNodeID(nodeid uint32) []byte {
	out := make([]byte, AckSize)
	copy(out, "RPTACK")
	PutUint32(out, 6, nodeid)
	return out
}

// BuildNak builds the 10-byte "MSTNAK" + nodeid reply sent on
// authentication failure or a rejected ping.
func BuildNak(nodeid uint32) []byte {
	out := make([]byte, NakSize)
	copy(out, "MSTNAK")
	PutUint32(out, 6, nodeid)
	return out
}

// BuildPong builds the 11-byte "MSTPONG" + nodeid reply sent in
// response to an authenticated RPTPING.
func BuildPong(nodeid uint32) []byte {
	out := make([]byte, PongSize)
	copy(out, "MSTPONG")
	PutUint32(out, 7, nodeid)
	return out
}
