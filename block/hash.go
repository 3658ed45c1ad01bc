package block

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// HashHexLen is the number of hex nibbles in a block hash.
const HashHexLen = sha256.Size * 2

// HashData builds the canonical byte encoding of the hashable fields.
// Layout (big endian): u32 len(prev) | prev | u32 len(payload) | payload |
// u128 timestamp | u32 difficulty | i64 nonce.
func HashData(prevHash string, payload []byte, timestamp uint64, difficulty uint32, nonce int64) []byte {
	buf := make([]byte, 0, 4+len(prevHash)+4+len(payload)+16+4+8)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(prevHash)))
	buf = append(buf, prevHash...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	// timestamp is a u128 on the wire; the high half is always zero for uint64 millis
	buf = binary.BigEndian.AppendUint64(buf, 0)
	buf = binary.BigEndian.AppendUint64(buf, timestamp)
	buf = binary.BigEndian.AppendUint32(buf, difficulty)
	buf = binary.BigEndian.AppendUint64(buf, uint64(nonce))
	return buf
}

// HashHex returns the hex SHA-256 of the canonical encoding.
func HashHex(prevHash string, payload []byte, timestamp uint64, difficulty uint32, nonce int64) string {
	sum := sha256.Sum256(HashData(prevHash, payload, timestamp, difficulty, nonce))
	return hex.EncodeToString(sum[:])
}

// LeadingZeroNibbles counts leading '0' characters of a hex hash.
func LeadingZeroNibbles(hash string) int {
	n := 0
	for n < len(hash) && hash[n] == '0' {
		n++
	}
	return n
}

// MeetsDifficulty reports whether hash has at least difficulty leading zero nibbles.
func MeetsDifficulty(hash string, difficulty uint32) bool {
	if int(difficulty) > len(hash) {
		return false
	}
	return LeadingZeroNibbles(hash) >= int(difficulty)
}

// IsHashHex reports whether s looks like a block hash key.
func IsHashHex(s string) bool {
	if len(s) != HashHexLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
