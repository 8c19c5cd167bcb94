package engagement

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSession_RecordAction(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)

	session.RecordAction(ActionDemoComplete, "", sessionStart.Add(time.Minute))
	session.RecordAction(ActionCalculator, "", sessionStart.Add(2*time.Minute))

	assert.Equal(t, []string{ActionDemoComplete, ActionCalculator}, session.Actions)
	assert.Equal(t, sessionStart.Add(2*time.Minute), session.LastSeen)
}

func TestSession_EggDeduplication(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)

	session.RecordAction(ActionEggViewed, "egg-logo", sessionStart)
	session.RecordAction(ActionEggViewed, "egg-logo", sessionStart)
	session.RecordAction(ActionEggViewed, "egg-footer", sessionStart)
	// Пасхалка без идентификатора в множество не попадает
	session.RecordAction(ActionEggViewed, "", sessionStart)

	assert.Equal(t, 2, session.EggsCount())
	assert.Len(t, session.Actions, 4, "журнал действий хранит все события")
}

func TestSession_MarkSentIsOneShot(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)

	assert.True(t, session.MarkSent("eggs_3_viewed"))
	assert.False(t, session.MarkSent("eggs_3_viewed"))
	assert.True(t, session.MarkSent("demo_completed"))
}

func TestSession_NoteScore(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)

	session.NoteScore(30)
	session.NoteScore(10)
	assert.Equal(t, 30, session.MaxScore)

	session.NoteScore(55)
	assert.Equal(t, 55, session.MaxScore)
}

func TestSession_DurationMinutes(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)

	assert.Equal(t, 0, session.DurationMinutes(sessionStart))
	assert.Equal(t, 7, session.DurationMinutes(sessionStart.Add(7*time.Minute+30*time.Second)))
	// Часы назад не ходят
	assert.Equal(t, 0, session.DurationMinutes(sessionStart.Add(-time.Minute)))
}

func TestSession_Snapshot(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)
	session.RecordAction(ActionEggViewed, "egg-logo", sessionStart)
	session.NoteScore(42)

	snap := session.Snapshot(sessionStart.Add(3 * time.Minute))

	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Equal(t, "visitor-1", snap.VisitorID)
	assert.Equal(t, 3, snap.DurationMinutes)
	assert.Equal(t, 1, snap.EggsViewed)
	assert.Equal(t, 42, snap.MaxScore)

	// Срез не делит журнал с живой сессией
	snap.Actions[0] = "mutated"
	assert.Equal(t, ActionEggViewed, session.Actions[0])
}

func TestRegistry_DoReusesSession(t *testing.T) {
	registry := NewRegistry(time.Hour)

	var first, second *Session
	registry.Do("sess-1", "visitor-1", func(s *Session) { first = s })
	registry.Do("sess-1", "visitor-1", func(s *Session) { second = s })

	assert.Same(t, first, second)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_Sweep(t *testing.T) {
	current := sessionStart
	registry := NewRegistry(time.Hour).WithClock(func() time.Time { return current })

	registry.Do("stale", "visitor-1", func(*Session) {})

	current = current.Add(2 * time.Hour)
	registry.Do("fresh", "visitor-2", func(s *Session) {
		s.RecordAction(ActionCalculator, "", current)
	})

	removed := registry.Sweep()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_SweepKeepsActiveSessions(t *testing.T) {
	current := sessionStart
	registry := NewRegistry(time.Hour).WithClock(func() time.Time { return current })

	registry.Do("sess-1", "visitor-1", func(*Session) {})
	current = current.Add(30 * time.Minute)

	assert.Equal(t, 0, registry.Sweep())
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_DefaultTTL(t *testing.T) {
	registry := NewRegistry(0)
	require.NotNil(t, registry)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistry_ConcurrentDo(t *testing.T) {
	registry := NewRegistry(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			registry.Do("sess-1", "visitor-1", func(s *Session) {
				s.RecordAction(ActionEggViewed, fmt.Sprintf("egg-%d", i), time.Now())
			})
		}(i)
	}
	wg.Wait()

	registry.Do("sess-1", "visitor-1", func(s *Session) {
		assert.Equal(t, 20, s.EggsCount())
		assert.Len(t, s.Actions, 20)
	})
}
