package stream

import "sync"

// Process-wide ceiling on concurrent sky frame subscribers. Per-IP
// limits come from Config.MaxConcurrentPerIP.
const defaultMaxTotalStreams = 1000

// streamLimiter caps concurrent sky frame subscriptions per client IP
// and across the whole process. A subscription holds its slot from
// acquire until release, for the life of the SSE connection.
type streamLimiter struct {
	mu          sync.Mutex
	connections map[string]int
	total       int
	maxPerIP    int
	maxTotal    int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	return &streamLimiter{
		connections: make(map[string]int),
		maxPerIP:    maxPerIP,
		maxTotal:    defaultMaxTotalStreams,
	}
}

// acquire claims a subscription slot for ip. It reports false when the
// per-IP or the global cap is full, in which case no slot is held and
// release must not be called.
func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total >= l.maxTotal || l.connections[ip] >= l.maxPerIP {
		return false
	}
	l.connections[ip]++
	l.total++
	return true
}

// release returns a slot claimed by acquire.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connections[ip]--
	l.total--
	if l.connections[ip] <= 0 {
		delete(l.connections, ip)
	}
}

// count reports the live subscriptions for ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connections[ip]
}
