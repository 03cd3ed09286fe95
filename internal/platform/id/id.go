package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator creates opaque identifiers.
type Generator interface {
	New() string
}

// ULID produces lexically sortable ids so session history lists in start order.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULID) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
