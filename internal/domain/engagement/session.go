// Package engagement содержит сессионную модель вовлечённости посетителя.
// Всё состояние здесь эфемерно: сессия живёт от загрузки страницы до
// ухода и намеренно не персистится - перезагрузка честно сбрасывает
// one-shot пороги.
package engagement

import (
	"sync"
	"time"
)

// Известные действия, которые лендинг репортит напрямую (мимо шины).
const (
	ActionEggViewed     = "easter_egg_viewed"
	ActionDemoComplete  = "demo_completed"
	ActionCalculator    = "calculator_used"
	ActionReferralShare = "referral_shared"
)

// Session - агрегат одной страничной сессии.
type Session struct {
	// ID - идентификатор сессии, сгенерированный лендингом.
	ID string

	// VisitorID - посетитель, которому принадлежит сессия.
	VisitorID string

	// Start - момент создания сессии.
	Start time.Time

	// Actions - упорядоченный журнал действий.
	Actions []string

	// ViewedEggs - дедуплицированное множество увиденных пасхалок.
	ViewedEggs map[string]struct{}

	// SentEvents - one-shot пороги, уже отправленные в этой сессии.
	// Каждый порог срабатывает не более одного раза.
	SentEvents map[string]struct{}

	// MaxScore - максимум счёта, достигнутый за сессию.
	MaxScore int

	// LastSeen - момент последнего действия (для вытеснения по TTL).
	LastSeen time.Time
}

// NewSession создаёт сессию с пустыми счётчиками.
func NewSession(id, visitorID string, now time.Time) *Session {
	return &Session{
		ID:         id,
		VisitorID:  visitorID,
		Start:      now,
		Actions:    make([]string, 0, 8),
		ViewedEggs: make(map[string]struct{}),
		SentEvents: make(map[string]struct{}),
		LastSeen:   now,
	}
}

// RecordAction дописывает действие в журнал. Пасхалки дедуплицируются
// по идентификатору: повторный просмотр той же пасхалки не меняет счёт.
func (s *Session) RecordAction(action string, eggID string, now time.Time) {
	s.Actions = append(s.Actions, action)
	s.LastSeen = now

	if action == ActionEggViewed && eggID != "" {
		s.ViewedEggs[eggID] = struct{}{}
	}
}

// EggsCount возвращает число уникальных увиденных пасхалок.
func (s *Session) EggsCount() int {
	return len(s.ViewedEggs)
}

// DurationMinutes возвращает длительность сессии в целых минутах.
func (s *Session) DurationMinutes(now time.Time) int {
	minutes := int(now.Sub(s.Start).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}

// MarkSent отмечает порог отправленным. Возвращает false, если порог
// уже был отправлен в этой сессии.
func (s *Session) MarkSent(threshold string) bool {
	if _, sent := s.SentEvents[threshold]; sent {
		return false
	}
	s.SentEvents[threshold] = struct{}{}
	return true
}

// NoteScore запоминает максимум счёта.
func (s *Session) NoteScore(score int) {
	if score > s.MaxScore {
		s.MaxScore = score
	}
}

// Snapshot - сериализуемый срез сессии для ответа API.
type Snapshot struct {
	SessionID       string   `json:"session_id"`
	VisitorID       string   `json:"visitor_id"`
	StartedAt       string   `json:"started_at"`
	DurationMinutes int      `json:"duration_minutes"`
	Actions         []string `json:"actions"`
	EggsViewed      int      `json:"eggs_viewed"`
	MaxScore        int      `json:"max_score"`
}

// Snapshot собирает срез сессии.
func (s *Session) Snapshot(now time.Time) Snapshot {
	actions := make([]string, len(s.Actions))
	copy(actions, s.Actions)
	return Snapshot{
		SessionID:       s.ID,
		VisitorID:       s.VisitorID,
		StartedAt:       s.Start.UTC().Format(time.RFC3339),
		DurationMinutes: s.DurationMinutes(now),
		Actions:         actions,
		EggsViewed:      s.EggsCount(),
		MaxScore:        s.MaxScore,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Registry держит живые сессии в памяти процесса. Никакой персистентности:
// рестарт сервиса эквивалентен перезагрузке страницы для всех сессий.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry создаёт реестр с TTL вытеснением.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени (для тестов).
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Sweep удаляет сессии, молчащие дольше TTL. Возвращает число удалённых.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, session := range r.sessions {
		if session.LastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len возвращает число живых сессий.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Do выполняет fn под локом реестра для конкретной сессии, создавая её
// при необходимости. Сериализует конкурентные Track по одной сессии.
func (r *Registry) Do(sessionID, visitorID string, fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		session = NewSession(sessionID, visitorID, r.now())
		r.sessions[sessionID] = session
	}
	fn(session)
}
