package sched

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/helpers"
)

// Scheduler runs event handling on a fixed number of workers while keeping
// all events sharing a key (group/user) in arrival order: at most one worker
// handles a given key at a time, with follow-up events for that key chained
// behind it. Events for different keys proceed fully in parallel.
type Scheduler struct {
	maxConcurrency int

	do func(context.Context, *event.Event) error

	feeder chan *consumerTask
	out    chan struct{}

	lk     sync.Mutex
	active map[string][]*consumerTask

	ident string

	// metrics
	itemsAdded     prometheus.Counter
	itemsProcessed prometheus.Counter
	itemsActive    prometheus.Counter
	workersActive  prometheus.Gauge

	log *slog.Logger
}

func NewScheduler(maxC int, ident string, do func(context.Context, *event.Event) error) *Scheduler {
	if maxC < 1 {
		maxC = 1
	}
	s := &Scheduler{
		maxConcurrency: maxC,

		do: do,

		feeder: make(chan *consumerTask),
		active: make(map[string][]*consumerTask),
		out:    make(chan struct{}),

		ident: ident,

		itemsAdded:     workItemsAdded.WithLabelValues(ident),
		itemsProcessed: workItemsProcessed.WithLabelValues(ident),
		itemsActive:    workItemsActive.WithLabelValues(ident),
		workersActive:  workersActive.WithLabelValues(ident),

		log: slog.Default().With("system", "sched"),
	}

	for i := 0; i < maxC; i++ {
		go s.worker()
	}

	s.workersActive.Set(float64(maxC))

	return s
}

// Shutdown stops all workers after they finish their current task. Pending
// chained work for active keys is dropped.
func (s *Scheduler) Shutdown() {
	s.log.Info("shutting down scheduler", "ident", s.ident)

	for i := 0; i < s.maxConcurrency; i++ {
		s.feeder <- &consumerTask{
			control: "stop",
		}
	}

	close(s.feeder)

	for i := 0; i < s.maxConcurrency; i++ {
		<-s.out
	}

	s.log.Info("scheduler shutdown complete")
}

type consumerTask struct {
	key     string
	bucket  string
	evt     *event.Event
	control string
}

// AddWork enqueues one event under the given serialization key. If a worker
// already owns the key's bucket, the event is chained behind it; otherwise it
// is handed to the next free worker. Keys are bucketed by a compact hash;
// a bucket collision only over-serializes, never reorders.
func (s *Scheduler) AddWork(ctx context.Context, key string, evt *event.Event) error {
	s.itemsAdded.Inc()
	t := &consumerTask{
		key:    key,
		bucket: helpers.HashOfString(key),
		evt:    evt,
	}
	s.lk.Lock()

	a, ok := s.active[t.bucket]
	if ok {
		s.active[t.bucket] = append(a, t)
		s.lk.Unlock()
		return nil
	}

	s.active[t.bucket] = []*consumerTask{}
	s.lk.Unlock()

	select {
	case s.feeder <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) worker() {
	for work := range s.feeder {
		for work != nil {
			if work.control == "stop" {
				s.out <- struct{}{}
				return
			}

			s.itemsActive.Inc()
			if err := s.do(context.TODO(), work.evt); err != nil {
				s.log.Error("event handler failed", "key", work.key, "err", err)
			}
			s.itemsProcessed.Inc()

			s.lk.Lock()
			rem, ok := s.active[work.bucket]
			if !ok {
				s.log.Error("should always have an 'active' entry if a worker is processing a job")
			}

			if len(rem) == 0 {
				delete(s.active, work.bucket)
				work = nil
			} else {
				work = rem[0]
				s.active[work.bucket] = rem[1:]
			}
			s.lk.Unlock()
		}
	}
}
