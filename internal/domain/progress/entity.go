// Package progress содержит доменную модель прогресса посетителя лендинга Remedia.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package progress

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE STEPS
// ══════════════════════════════════════════════════════════════════════════════

// Step определяет именованную веху прогресса. Вехи монотонны:
// однажды выставленный флаг не сбрасывается (кроме явного reset).
type Step string

const (
	// StepDemo - посетитель досмотрел чат-демо.
	StepDemo Step = "demo"
	// StepCalculator - посетитель воспользовался калькулятором бюджета.
	StepCalculator Step = "calculator"
	// StepCalculatorCredit - посетитель применил кредитный сценарий калькулятора.
	StepCalculatorCredit Step = "calculatorCredit"
	// StepFeedback - посетитель оставил обратную связь.
	StepFeedback Step = "feedback"
	// StepWaitlist - посетитель записался в лист ожидания.
	StepWaitlist Step = "waitlist"
)

// AllSteps возвращает все известные вехи в фиксированном порядке.
func AllSteps() []Step {
	return []Step{StepDemo, StepCalculator, StepCalculatorCredit, StepFeedback, StepWaitlist}
}

// ParseStep разбирает строку из API в Step.
func ParseStep(s string) (Step, error) {
	step := Step(strings.TrimSpace(s))
	for _, known := range AllSteps() {
		if step == known {
			return step, nil
		}
	}
	return "", shared.ErrInvalidMilestone
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS RECORD
// ══════════════════════════════════════════════════════════════════════════════

// CurrentSchemaVersion - текущая версия схемы персистентной записи.
// См. migrate.go для цепочки миграций.
const CurrentSchemaVersion = 2

// Record - каноническая запись прогресса, одна на посетителя.
// Запись создаётся анонимной при первом обращении и становится
// идентифицированной ровно один раз - при ClaimRegistration.
type Record struct {
	// SchemaVersion - версия схемы записи.
	SchemaVersion int `json:"schema_version"`

	// VisitorID - стабильный идентификатор посетителя (UUID).
	// Неизменен после генерации.
	VisitorID string `json:"visitor_id"`

	// Флаги вех. Монотонные: true никогда не откатывается.
	Demo             bool `json:"demo"`
	Calculator       bool `json:"calculator"`
	CalculatorCredit bool `json:"calculator_credit"`
	Feedback         bool `json:"feedback"`
	Waitlist         bool `json:"waitlist"`

	// RewardsClaimed - пройден ли флоу награды за регистрацию.
	RewardsClaimed bool `json:"rewards_claimed"`

	// Идентификация. IsLoggedIn и Email выставляются атомарно
	// при регистрации: полу-идентифицированное состояние недопустимо.
	IsLoggedIn bool   `json:"is_logged_in"`
	Email      string `json:"email,omitempty"`

	// ReferralCount - счётчик действий "поделиться". Никогда не убывает.
	ReferralCount int `json:"referral_count"`

	// ReferralCode - стабильный код, детерминированно выводимый из email.
	ReferralCode string `json:"referral_code,omitempty"`

	// Временные метки.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord создаёт свежую анонимную запись прогресса.
func NewRecord(visitorID string) *Record {
	now := time.Now().UTC()
	return &Record{
		SchemaVersion: CurrentSchemaVersion,
		VisitorID:     visitorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone возвращает глубокую копию записи. Команды мутируют копию и
// сохраняют её целиком, чтобы неуспешная операция не оставила след.
func (r *Record) Clone() *Record {
	clone := *r
	return &clone
}

// Validate проверяет инварианты записи.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.VisitorID) == "" {
		return shared.ErrInvalidVisitorID
	}
	if r.ReferralCount < 0 {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidState, "referral count cannot be negative")
	}
	if r.IsLoggedIn && r.Email == "" {
		return shared.NewDomainError("progress", "Validate", shared.ErrInvalidState, "logged-in record without email")
	}
	if r.SchemaVersion != CurrentSchemaVersion {
		return shared.ErrUnknownVersion
	}
	return nil
}

// MilestoneDone сообщает, выставлен ли флаг вехи.
func (r *Record) MilestoneDone(step Step) bool {
	switch step {
	case StepDemo:
		return r.Demo
	case StepCalculator:
		return r.Calculator
	case StepCalculatorCredit:
		return r.CalculatorCredit
	case StepFeedback:
		return r.Feedback
	case StepWaitlist:
		return r.Waitlist
	default:
		return false
	}
}

// CompleteMilestone идемпотентно выставляет флаг вехи.
// Возвращает changed=false, если флаг уже стоял: процент не меняется,
// но аналитика всё равно может захотеть увидеть повторное событие.
func (r *Record) CompleteMilestone(step Step) (changed bool, err error) {
	if _, err := ParseStep(string(step)); err != nil {
		return false, err
	}
	if r.MilestoneDone(step) {
		return false, nil
	}

	switch step {
	case StepDemo:
		r.Demo = true
	case StepCalculator:
		r.Calculator = true
	case StepCalculatorCredit:
		r.CalculatorCredit = true
	case StepFeedback:
		r.Feedback = true
	case StepWaitlist:
		r.Waitlist = true
	}
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

// RegisterReferral увеличивает счётчик рефералов. Счётчик монотонный.
// Возвращает новое значение.
func (r *Record) RegisterReferral() int {
	r.ReferralCount++
	r.UpdatedAt = time.Now().UTC()
	return r.ReferralCount
}

// ClaimRewards отмечает награду за регистрацию полученной.
// Доступно только идентифицированному посетителю и только один раз.
func (r *Record) ClaimRewards() error {
	if !r.IsLoggedIn || r.RewardsClaimed {
		return shared.ErrRewardsNotEligible
	}
	r.RewardsClaimed = true
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyRegistration выполняет переход "аноним -> идентифицированный".
// Форма должна быть уже провалидирована; метод лишь применяет переход
// целиком: IsLoggedIn, Email, Waitlist и ReferralCode выставляются вместе.
func (r *Record) ApplyRegistration(email shared.Email) {
	r.IsLoggedIn = true
	r.Email = email.String()
	r.Waitlist = true
	r.ReferralCode = DeriveReferralCode(email)
	r.UpdatedAt = time.Now().UTC()
}

// DeriveReferralCode детерминированно выводит реферальный код из email.
// Один и тот же email всегда даёт один и тот же код.
func DeriveReferralCode(email shared.Email) string {
	sum := sha256.Sum256([]byte(email.Normalize().String()))
	return strings.ToUpper(hex.EncodeToString(sum[:4]))
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION PERCENTAGE
// ══════════════════════════════════════════════════════════════════════════════

// Weights - веса вех в процентах. Точные значения - конфигурация,
// а не инвариант модели: UI решает, сколько "стоит" каждая веха.
type Weights struct {
	Demo             int
	Calculator       int
	CalculatorCredit int
	Feedback         int
	Waitlist         int

	// PerReferral - бонус за каждый реферал поверх базовой суммы.
	PerReferral int
}

// DefaultWeights возвращает номинальные веса: по 20 пунктов за веху,
// рефералы добивают отображаемый процент вплоть до 200.
func DefaultWeights() Weights {
	return Weights{
		Demo:             20,
		Calculator:       20,
		CalculatorCredit: 20,
		Feedback:         20,
		Waitlist:         20,
		PerReferral:      20,
	}
}

// CompletionPercent - чистая функция от записи и весов. Не мутирует
// аргументы и детерминирована, поэтому её можно звать на каждый рендер.
func CompletionPercent(r *Record, w Weights) shared.Percent {
	total := 0
	if r.Demo {
		total += w.Demo
	}
	if r.Calculator {
		total += w.Calculator
	}
	if r.CalculatorCredit {
		total += w.CalculatorCredit
	}
	if r.Feedback {
		total += w.Feedback
	}
	if r.Waitlist {
		total += w.Waitlist
	}
	total += r.ReferralCount * w.PerReferral

	return shared.Percent(total).Clamp()
}
