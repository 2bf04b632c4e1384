package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"

	"github.com/warden-mod/warden/chatmod/event"
	"github.com/warden-mod/warden/chatmod/sched"
)

// streamFrame is one message on the gateway event stream: a monotonic
// sequence number plus the event payload.
type streamFrame struct {
	Seq   int64        `json:"seq"`
	Event *event.Event `json:"event"`
}

// RunConsumer subscribes to the gateway event stream and feeds events into
// the scheduler, reconnecting with backoff on stream failure. Events sharing
// a (group, user) key are serialized by the scheduler; everything else runs
// in parallel across the worker pool.
func (s *Server) RunConsumer(ctx context.Context) error {

	scheduler := sched.NewScheduler(s.workers, s.streamHost, func(ctx context.Context, evt *event.Event) error {
		return s.engine.ProcessEvent(ctx, evt)
	})
	defer scheduler.Shutdown()

	backoff := time.Second
	for {
		err := s.consumeStream(ctx, scheduler)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("event stream disconnected, reconnecting", "err", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

func (s *Server) consumeStream(ctx context.Context, scheduler *sched.Scheduler) error {
	cur, err := s.ReadLastCursor(ctx)
	if err != nil {
		return err
	}

	u, err := url.Parse(s.streamHost)
	if err != nil {
		return fmt.Errorf("invalid gateway stream URI: %w", err)
	}
	u.Path = "events/subscribe"
	if cur != 0 {
		u.RawQuery = fmt.Sprintf("cursor=%d", cur)
	}

	s.logger.Info("subscribing to gateway event stream", "upstream", s.streamHost, "cursor", cur)
	con, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{
		"User-Agent": []string{fmt.Sprintf("warden/%s", versioninfo.Short())},
	})
	if err != nil {
		return fmt.Errorf("subscribing to event stream failed (dialing): %w", err)
	}
	defer con.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, raw, err := con.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading from event stream: %w", err)
		}

		var frame streamFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.logger.Error("malformed stream frame, skipping", "err", err)
			continue
		}
		if frame.Event == nil {
			s.logger.Warn("stream frame without event payload, skipping", "seq", frame.Seq)
			continue
		}
		if err := frame.Event.Validate(); err != nil {
			s.logger.Error("invalid event on stream, skipping", "seq", frame.Seq, "err", err)
			continue
		}

		atomic.StoreInt64(&s.lastSeq, frame.Seq)

		if err := scheduler.AddWork(ctx, frame.Event.Key(), frame.Event); err != nil {
			return fmt.Errorf("enqueueing event: %w", err)
		}
	}
}
