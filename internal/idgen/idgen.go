// Package idgen generates time-sortable identifiers for journal entries,
// orders, alerts and backup objects.
package idgen

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a lower-case ULID stamped with the current time.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a lower-case ULID stamped with t. IDs generated within the
// same millisecond stay lexicographically increasing.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// Monotonic entropy overflowed within one millisecond; fall back to a
		// fresh random suffix.
		id = ulid.MustNew(ulid.Timestamp(t.UTC()), cryptorand.Reader)
	}
	return strings.ToLower(id.String())
}

// Prefixed returns prefix-ULID, e.g. "alert-01h...".
func Prefixed(prefix string) string {
	return prefix + "-" + New()
}
