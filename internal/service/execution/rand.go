package execution

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
)

// lockedRand makes a *rand.Rand safe for concurrent requests.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand returns a shuffle source. A zero seed draws one from the clock.
func NewRand(seed uint64) domain.IntN {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN implements domain.IntN.
func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}
