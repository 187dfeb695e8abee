// Package id issues the identifiers for mapping and audit rows.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	// The PRNG is seeded from crypto/rand so ids are not guessable across
	// restarts; ulid.Monotonic keeps ids minted within the same millisecond
	// in generation order.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a fresh ULID string.
//
// ULIDs are time-ordered, so mappings and audit events sort by id in
// creation order and the ledger needs no separate sequence column.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), entropy)
	if err != nil {
		// ulid.New only fails on entropy exhaustion or clock regression.
		panic(err)
	}
	return id.String()
}
