package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score int
		level Level
	}{
		{0, LevelNewcomer},
		{19, LevelNewcomer},
		{20, LevelBeginner},
		{39, LevelBeginner},
		{40, LevelIntermediate},
		{59, LevelIntermediate},
		{60, LevelAdvanced},
		{79, LevelAdvanced},
		{80, LevelExpert},
		{100, LevelExpert},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, LevelFor(tt.score), "score %d", tt.score)
	}
}

func TestScore_EmptySession(t *testing.T) {
	cfg := DefaultScoreConfig()
	session := NewSession("sess-1", "visitor-1", sessionStart)

	score := Score(cfg, session, Inputs{}, sessionStart)
	assert.Equal(t, 0, score)
}

func TestScore_Formula(t *testing.T) {
	cfg := DefaultScoreConfig()
	session := NewSession("sess-1", "visitor-1", sessionStart)
	session.RecordAction(ActionEggViewed, "egg-1", sessionStart)
	session.RecordAction(ActionEggViewed, "egg-2", sessionStart)

	in := Inputs{
		CompletionPercent: shared.Percent(40),
		DemoDone:          true,
		ReferralCount:     1,
	}

	// 0.3*40 + 2*2 яйца + 15 демо + 5 реферал + 4 минуты = 40
	score := Score(cfg, session, in, sessionStart.Add(4*time.Minute))
	assert.Equal(t, 40, score)
}

func TestScore_CapsApply(t *testing.T) {
	cfg := DefaultScoreConfig()
	session := NewSession("sess-1", "visitor-1", sessionStart)
	for i := 0; i < 30; i++ {
		session.RecordAction(ActionEggViewed, EggThresholdName(i), sessionStart)
	}

	in := Inputs{
		CompletionPercent: shared.Percent(200), // свёртка режет до 100
		DemoDone:          true,
		CalculatorDone:    true,
		CreditUsed:        true,
		ReferralCount:     50,
	}

	score := Score(cfg, session, in, sessionStart.Add(5*time.Hour))
	assert.Equal(t, 100, score, "итог никогда не выходит за 100")
}

func TestScore_EggCap(t *testing.T) {
	cfg := DefaultScoreConfig()
	session := NewSession("sess-1", "visitor-1", sessionStart)
	for i := 0; i < 15; i++ {
		session.RecordAction(ActionEggViewed, EggThresholdName(i), sessionStart)
	}

	// 15 яиц * 2 = 30, но потолок 20
	score := Score(cfg, session, Inputs{}, sessionStart)
	assert.Equal(t, cfg.EggCap, score)
}

func TestEggThresholdName(t *testing.T) {
	assert.Equal(t, "eggs_3_viewed", EggThresholdName(3))
	assert.Equal(t, "eggs_10_viewed", EggThresholdName(10))
}

func TestCrossedThresholds_Eggs(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)
	for i := 0; i < 3; i++ {
		session.RecordAction(ActionEggViewed, EggThresholdName(i), sessionStart)
	}

	crossed := CrossedThresholds(session, Inputs{})
	assert.Equal(t, []string{"eggs_3_viewed"}, crossed)

	// Повторный вызов порог не возвращает
	assert.Empty(t, CrossedThresholds(session, Inputs{}))
}

func TestCrossedThresholds_MultipleAtOnce(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)
	for i := 0; i < 10; i++ {
		session.RecordAction(ActionEggViewed, EggThresholdName(i), sessionStart)
	}

	crossed := CrossedThresholds(session, Inputs{DemoDone: true, ReferralCount: 2})

	assert.Equal(t, []string{
		"eggs_3_viewed",
		"eggs_7_viewed",
		"eggs_9_viewed",
		"eggs_10_viewed",
		ThresholdDemoCompleted,
		ThresholdFirstReferral,
	}, crossed)
}

func TestCrossedThresholds_DemoAndReferralOneShot(t *testing.T) {
	session := NewSession("sess-1", "visitor-1", sessionStart)

	crossed := CrossedThresholds(session, Inputs{DemoDone: true})
	assert.Equal(t, []string{ThresholdDemoCompleted}, crossed)

	// Демо остаётся завершённым, но порог уже отправлен
	assert.Empty(t, CrossedThresholds(session, Inputs{DemoDone: true}))

	crossed = CrossedThresholds(session, Inputs{DemoDone: true, ReferralCount: 1})
	assert.Equal(t, []string{ThresholdFirstReferral}, crossed)
}
