package store

// Database key layout. Block records are keyed by their own hex hash, so the
// only non-hash key is the mutable tip pointer.
const (
	KeyTip = "tip"
)

func blockKey(hash string) []byte {
	return []byte(hash)
}
