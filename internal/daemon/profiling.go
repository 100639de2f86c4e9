package daemon

import (
	"sync"
	"time"
)

// Profiler records named wall-time sections for one request. It is attached
// when the client sets "profile": true and returned in the response.
type Profiler struct {
	mu       sync.Mutex
	start    time.Time
	sections []profSection
}

type profSection struct {
	Name   string  `json:"name"`
	Millis float64 `json:"ms"`
}

// NewProfiler starts a request profile.
func NewProfiler() *Profiler {
	return &Profiler{start: time.Now()}
}

// Section starts a named section; the returned func stops it.
func (p *Profiler) Section(name string) func() {
	if p == nil {
		return func() {}
	}
	begin := time.Now()
	return func() {
		p.mu.Lock()
		p.sections = append(p.sections, profSection{
			Name:   name,
			Millis: float64(time.Since(begin).Microseconds()) / 1000,
		})
		p.mu.Unlock()
	}
}

// Report renders the recorded sections plus the total elapsed time.
func (p *Profiler) Report() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"total_ms": float64(time.Since(p.start).Microseconds()) / 1000,
		"sections": p.sections,
	}
}
