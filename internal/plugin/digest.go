package plugin

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is the cache fingerprint of a plugin module.
type Digest [32]byte

// Fingerprint hashes the plugin name and its raw bytes. The zero separator
// keeps ("ab", "c...") and ("a", "bc...") apart.
func Fingerprint(name string, raw []byte) Digest {
	h := sha256.New()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(raw)
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, enough for log lines.
func (d Digest) Short() string {
	return d.String()[:12]
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}
