package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"
)

const refreshTimeout = 2 * time.Minute

// RefreshListener is told about every successful background refresh
type RefreshListener interface {
	OnRefresh(ctx context.Context, data *domain.GroupedWaitingData)
}

// AutoRefresher refreshes the snapshot periodically and on demand.
// An interval of zero disables the periodic refresh but keeps Trigger working.
type AutoRefresher struct {
	usecase   WaitingUsecase
	listeners []RefreshListener

	mu       sync.RWMutex
	interval time.Duration

	trigger  chan struct{}
	reset    chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	started  bool
}

func NewAutoRefresher(usecase WaitingUsecase, interval time.Duration, listeners ...RefreshListener) *AutoRefresher {
	return &AutoRefresher{
		usecase:   usecase,
		listeners: listeners,
		interval:  interval,
		trigger:   make(chan struct{}, 1),
		reset:     make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}
}

// Start runs one refresh immediately, then loops until Stop
func (r *AutoRefresher) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	log.Printf("[AutoRefresh] Starting (interval: %v)", r.Interval())
	go r.loop()
}

// Stop ends the loop. Calling it more than once is a no-op.
func (r *AutoRefresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

// Trigger requests an immediate refresh. Requests made while one is pending are coalesced.
func (r *AutoRefresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *AutoRefresher) Interval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interval
}

// SetInterval changes the period; zero disables periodic refresh
func (r *AutoRefresher) SetInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.mu.Lock()
	r.interval = d
	r.mu.Unlock()
	select {
	case r.reset <- struct{}{}:
	default:
	}
}

func (r *AutoRefresher) loop() {
	r.run()
	for {
		var tick <-chan time.Time
		var timer *time.Timer
		if iv := r.Interval(); iv > 0 {
			timer = time.NewTimer(iv)
			tick = timer.C
		}

		select {
		case <-tick:
			r.run()
		case <-r.trigger:
			r.run()
		case <-r.reset:
		case <-r.stopChan:
			if timer != nil {
				timer.Stop()
			}
			log.Println("[AutoRefresh] Stopped")
			return
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (r *AutoRefresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	_, _ = r.RefreshNow(ctx)
}

// RefreshNow refreshes synchronously and notifies listeners on success
func (r *AutoRefresher) RefreshNow(ctx context.Context) (*domain.GroupedWaitingData, error) {
	start := time.Now()
	data, err := r.usecase.Refresh(ctx)
	if err != nil {
		log.Printf("[AutoRefresh] Refresh failed: %v", err)
		return nil, err
	}
	log.Printf("[AutoRefresh] Refreshed %d items from %d people in %v", data.TotalItems, data.TotalPeopleWaiting, time.Since(start))

	for _, l := range r.listeners {
		l.OnRefresh(ctx, data)
	}
	return data, nil
}
