package engagement

import (
	"fmt"
	"time"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT SCORE
// Счёт 0-100 - чисто аддитивная свёртка прогресса и сессионных счётчиков.
// Формула и пороги - конфигурация; дефолты повторяют то, что лендинг
// показывал исторически.
// ══════════════════════════════════════════════════════════════════════════════

// Level - дискретный уровень вовлечённости.
type Level string

const (
	LevelNewcomer     Level = "newcomer"
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
	LevelExpert       Level = "expert"
)

// LevelFor отображает счёт на уровень по фиксированным границам.
func LevelFor(score int) Level {
	switch {
	case score >= 80:
		return LevelExpert
	case score >= 60:
		return LevelAdvanced
	case score >= 40:
		return LevelIntermediate
	case score >= 20:
		return LevelBeginner
	default:
		return LevelNewcomer
	}
}

// ScoreConfig - веса формулы счёта.
type ScoreConfig struct {
	// CompletionFactor - множитель процента завершённости (0..100).
	CompletionFactor float64

	// PerEgg и EggCap - очки за пасхалку и их потолок.
	PerEgg int
	EggCap int

	// Бонусы за вехи.
	DemoBonus       int
	CalculatorBonus int
	CreditBonus     int

	// PerReferral и ReferralCap - очки за реферал и их потолок.
	PerReferral int
	ReferralCap int

	// MinutesCap - максимум очков за длительность сессии
	// (минута = очко до потолка).
	MinutesCap int
}

// DefaultScoreConfig возвращает исторические веса лендинга.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		CompletionFactor: 0.3,
		PerEgg:           2,
		EggCap:           20,
		DemoBonus:        15,
		CalculatorBonus:  15,
		CreditBonus:      10,
		PerReferral:      5,
		ReferralCap:      10,
		MinutesCap:       10,
	}
}

// Inputs - всё, что нужно формуле помимо сессии: срез записи прогресса.
type Inputs struct {
	CompletionPercent shared.Percent
	DemoDone          bool
	CalculatorDone    bool
	CreditUsed        bool
	ReferralCount     int
}

// Score вычисляет счёт сессии. Чистая функция: не мутирует ни сессию,
// ни входы, результат всегда в [0, 100].
func Score(cfg ScoreConfig, session *Session, in Inputs, now time.Time) int {
	total := int(cfg.CompletionFactor * float64(in.CompletionPercent.CapFull().Int()))

	total += capInt(cfg.PerEgg*session.EggsCount(), cfg.EggCap)
	if in.DemoDone {
		total += cfg.DemoBonus
	}
	if in.CalculatorDone {
		total += cfg.CalculatorBonus
	}
	if in.CreditUsed {
		total += cfg.CreditBonus
	}
	total += capInt(cfg.PerReferral*in.ReferralCount, cfg.ReferralCap)
	total += capInt(session.DurationMinutes(now), cfg.MinutesCap)

	return capInt(total, 100)
}

func capInt(v, limit int) int {
	if v > limit {
		return limit
	}
	if v < 0 {
		return 0
	}
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// ONE-SHOT THRESHOLDS
// ══════════════════════════════════════════════════════════════════════════════

// Фиксированные имена порогов. Имя - ключ дедупликации в сессии.
const (
	ThresholdDemoCompleted = "demo_completed"
	ThresholdFirstReferral = "first_referral"
)

// EggThresholds - пороги по числу уникальных пасхалок.
var EggThresholds = []int{3, 7, 9, 10}

// EggThresholdName возвращает имя порога пасхалок, например "eggs_3_viewed".
func EggThresholdName(count int) string {
	return fmt.Sprintf("eggs_%d_viewed", count)
}

// CrossedThresholds возвращает пороги, впервые пересечённые в этом
// вызове, и помечает их отправленными в сессии. Порог, однажды
// попавший в SentEvents, больше не вернётся до конца сессии.
func CrossedThresholds(session *Session, in Inputs) []string {
	var crossed []string

	eggs := session.EggsCount()
	for _, boundary := range EggThresholds {
		if eggs >= boundary {
			name := EggThresholdName(boundary)
			if session.MarkSent(name) {
				crossed = append(crossed, name)
			}
		}
	}

	if in.DemoDone && session.MarkSent(ThresholdDemoCompleted) {
		crossed = append(crossed, ThresholdDemoCompleted)
	}
	if in.ReferralCount >= 1 && session.MarkSent(ThresholdFirstReferral) {
		crossed = append(crossed, ThresholdFirstReferral)
	}

	return crossed
}
