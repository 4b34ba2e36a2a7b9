package id

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	// Seed the ULID entropy source from crypto/rand. Monotonic entropy keeps
	// ids generated within the same millisecond lexicographically increasing,
	// which keeps btree indexes append-mostly.
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string. ULIDs sort by creation time, so account, trade,
// and batch listings ordered by id come out in insertion order.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	u, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		panic(err)
	}
	return u.String()
}

// Parse validates an id and returns its embedded creation time.
func Parse(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ulid.Time(u.Time()).UTC(), nil
}

// Valid reports whether s is a well-formed id.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
