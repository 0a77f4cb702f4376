package handlers

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// EndpointUsage counts requests to one endpoint. Profiled endpoints also
// accumulate the time spent computing their results.
type EndpointUsage struct {
	name      string
	profiled  bool
	requests  atomic.Int64
	totalTime atomic.Int64 // milliseconds
}

func (e *EndpointUsage) record(elapsed time.Duration) {
	e.requests.Add(1)
	if e.profiled {
		e.totalTime.Add(elapsed.Milliseconds())
	}
}

// Usage tracks monitored endpoints and the peak number of concurrent
// requests.
type Usage struct {
	mu        sync.RWMutex
	endpoints []*EndpointUsage

	inFlight atomic.Int64
	peak     atomic.Int64
}

func NewUsage() *Usage {
	return &Usage{}
}

// Track registers an endpoint. Endpoints are reported in registration order.
func (u *Usage) Track(name string, profiled bool) *EndpointUsage {
	e := &EndpointUsage{name: name, profiled: profiled}
	u.mu.Lock()
	u.endpoints = append(u.endpoints, e)
	u.mu.Unlock()
	return e
}

// Middleware maintains the concurrency peak reported as maxParallelism.
func (u *Usage) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := u.inFlight.Add(1)
		defer u.inFlight.Add(-1)
		for {
			peak := u.peak.Load()
			if n <= peak || u.peak.CompareAndSwap(peak, n) {
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}

type UsageResponse struct {
	MaxParallelism int64           `json:"maxParallelism"`
	Endpoints      []UsageEndpoint `json:"endpoints"`
}

type UsageEndpoint struct {
	Name       string          `json:"name"`
	Descriptor UsageDescriptor `json:"descriptor"`
}

type UsageDescriptor struct {
	TotalRequests int64  `json:"totalRequests"`
	TotalTime     *int64 `json:"totalTime,omitempty"`
	TotalTimeUnit string `json:"totalTimeUnit,omitempty"`
}

func (u *Usage) Report() UsageResponse {
	u.mu.RLock()
	defer u.mu.RUnlock()

	resp := UsageResponse{
		MaxParallelism: u.peak.Load(),
		Endpoints:      make([]UsageEndpoint, 0, len(u.endpoints)),
	}
	for _, e := range u.endpoints {
		d := UsageDescriptor{TotalRequests: e.requests.Load()}
		if e.profiled {
			total := e.totalTime.Load()
			d.TotalTime = &total
			d.TotalTimeUnit = TimeUnitMilliseconds
		}
		resp.Endpoints = append(resp.Endpoints, UsageEndpoint{Name: e.name, Descriptor: d})
	}
	return resp
}
