package recommend

import (
	"math/rand"
	"sync"
	"time"
)

// Source yields uniform values in [0, 1). Implementations must be safe for
// concurrent use since one engine serves all requests.
type Source interface {
	Float64() float64
}

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource returns a mutex-guarded source. Tests pass a fixed seed to get
// reproducible perturbations.
func NewSource(seed int64) Source {
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func NewTimeSource() Source {
	return NewSource(time.Now().UnixNano())
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}
