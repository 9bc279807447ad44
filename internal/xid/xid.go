// Package xid generates the prefixed ids every store row carries
// ("item-...", "trf-...", "closing-...").
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns "<prefix>-<unix nanos>-<8 random bytes hex>". The random tail
// carries the uniqueness; the timestamp keeps ids roughly sortable in logs.
// If crypto/rand is unavailable the timestamp alone is used.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
