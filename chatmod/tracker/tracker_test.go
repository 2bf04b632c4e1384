package tracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warden-mod/warden/chatmod/event"
)

func TestTrackerBasics(t *testing.T) {
	assert := assert.New(t)

	tr := New(DefaultConfig())
	now := time.Now()

	assert.Equal(0, tr.Rate("g1", "u1", event.KindMessage, now))

	for i := 0; i < 5; i++ {
		tr.Record("g1", "u1", event.KindMessage, now.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(5, tr.Rate("g1", "u1", event.KindMessage, now.Add(5*time.Second)))

	// other keys are isolated
	assert.Equal(0, tr.Rate("g1", "u2", event.KindMessage, now))
	assert.Equal(0, tr.Rate("g2", "u1", event.KindMessage, now))
}

func TestTrackerLazyPrune(t *testing.T) {
	assert := assert.New(t)

	tr := New(DefaultConfig())
	now := time.Now()

	tr.Record("g1", "u1", event.KindMessage, now)
	tr.Record("g1", "u1", event.KindMessage, now.Add(30*time.Second))

	// first entry falls outside the 60s lookback
	assert.Equal(1, tr.Rate("g1", "u1", event.KindMessage, now.Add(70*time.Second)))
	assert.Equal(0, tr.Rate("g1", "u1", event.KindMessage, now.Add(5*time.Minute)))
}

func TestTrackerRaidWindow(t *testing.T) {
	assert := assert.New(t)

	tr := New(DefaultConfig())
	now := time.Now()

	for i := 0; i < 15; i++ {
		tr.Record("g1", fmt.Sprintf("user%d", i), event.KindJoin, now.Add(time.Duration(i)*time.Second))
	}
	at := now.Add(20 * time.Second)
	assert.Equal(15, tr.JoinRate("g1", at))
	assert.True(tr.RaidActive("g1", at))
	assert.False(tr.RaidActive("g2", at))

	// group join rate shows up in a brand-new user's snapshot
	snap := tr.Snapshot("g1", "newcomer", at)
	assert.Equal(0, snap.MessageRate)
	assert.Equal(15, snap.GroupJoinRate)

	// joins age out of the raid window
	assert.Equal(0, tr.JoinRate("g1", now.Add(10*time.Minute)))
}

func TestTrackerWindowCap(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	cfg.WindowCap = 10
	tr := New(cfg)
	now := time.Now()

	for i := 0; i < 100; i++ {
		tr.Record("g1", "u1", event.KindMessage, now)
	}
	assert.Equal(10, tr.Rate("g1", "u1", event.KindMessage, now))
}

func TestTrackerConcurrent(t *testing.T) {
	assert := assert.New(t)

	tr := New(DefaultConfig())
	now := time.Now()

	// writers on two keys, readers interleaved; run with -race
	var wg sync.WaitGroup
	fnInc := func(group, user string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			tr.Record(group, user, event.KindMessage, now)
			time.Sleep(time.Nanosecond)
		}
	}
	fnRead := func(group, user string, times int) {
		for i := 0; i < times; i++ {
			tr.Rate(group, user, event.KindMessage, now)
			time.Sleep(time.Nanosecond)
		}
	}
	wg.Add(4)
	go fnInc("g1", "u1", 10)
	go fnInc("g1", "u1", 10)
	go fnRead("g1", "u1", 10)
	go fnInc("g2", "u2", 6)
	go fnInc("g2", "u2", 6)
	go fnRead("g2", "u2", 6)
	wg.Wait()

	assert.Equal(20, tr.Rate("g1", "u1", event.KindMessage, now))
	assert.Equal(12, tr.Rate("g2", "u2", event.KindMessage, now))
}
