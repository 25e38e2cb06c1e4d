// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package doctor

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor is the token bucket of one client IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter rate limits connections per client IP. Buckets idle longer
// than idleAge are evicted by a background sweeper.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idleAge  time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func newIPLimiter(limit float64, burst int, idleAge, sweepEvery time.Duration) *ipLimiter {
	l := &ipLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(limit),
		burst:    burst,
		idleAge:  idleAge,
		stop:     make(chan struct{}),
	}
	go l.sweep(sweepEvery)
	return l
}

// Allow reports whether a new connection from addr may proceed. The port
// of addr is ignored.
func (l *ipLimiter) Allow(addr net.Addr) bool {
	ip := hostOf(addr)

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Len returns the number of tracked client IPs.
func (l *ipLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Stop ends the sweeper. Safe to call more than once.
func (l *ipLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *ipLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if now.Sub(v.lastSeen) > l.idleAge {
					delete(l.visitors, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
