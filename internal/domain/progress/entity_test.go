package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

const testVisitorID = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

func TestParseStep(t *testing.T) {
	for _, step := range AllSteps() {
		parsed, err := ParseStep(string(step))
		require.NoError(t, err)
		assert.Equal(t, step, parsed)
	}

	parsed, err := ParseStep("  demo  ")
	require.NoError(t, err)
	assert.Equal(t, StepDemo, parsed)

	_, err = ParseStep("teleport")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = ParseStep("")
	assert.Error(t, err)
}

func TestRecord_CompleteMilestone(t *testing.T) {
	record := NewRecord(testVisitorID)

	changed, err := record.CompleteMilestone(StepDemo)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, record.Demo)

	// Повторное завершение той же вехи идемпотентно
	changed, err = record.CompleteMilestone(StepDemo)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, record.Demo)

	_, err = record.CompleteMilestone(Step("unknown"))
	assert.ErrorIs(t, err, shared.ErrInvalidMilestone)
}

func TestRecord_CompleteMilestone_AllSteps(t *testing.T) {
	record := NewRecord(testVisitorID)

	for _, step := range AllSteps() {
		changed, err := record.CompleteMilestone(step)
		require.NoError(t, err)
		assert.True(t, changed, "step %s", step)
		assert.True(t, record.MilestoneDone(step), "step %s", step)
	}
}

func TestRecord_RegisterReferral(t *testing.T) {
	record := NewRecord(testVisitorID)

	assert.Equal(t, 1, record.RegisterReferral())
	assert.Equal(t, 2, record.RegisterReferral())
	assert.Equal(t, 3, record.RegisterReferral())
	assert.Equal(t, 3, record.ReferralCount)
}

func TestRecord_ClaimRewards(t *testing.T) {
	record := NewRecord(testVisitorID)

	// Аноним награду не получает
	err := record.ClaimRewards()
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	record.ApplyRegistration(shared.Email("user@example.com"))
	require.NoError(t, record.ClaimRewards())
	assert.True(t, record.RewardsClaimed)

	// Второй раз награда недоступна
	err = record.ClaimRewards()
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRecord_ApplyRegistration(t *testing.T) {
	record := NewRecord(testVisitorID)
	record.ApplyRegistration(shared.Email("User@Example.com").Normalize())

	assert.True(t, record.IsLoggedIn)
	assert.Equal(t, "user@example.com", record.Email)
	assert.True(t, record.Waitlist, "waitlist milestone is granted with registration")
	assert.Len(t, record.ReferralCode, 8)
	assert.True(t, shared.ReferralCode(record.ReferralCode).IsValid())
}

func TestDeriveReferralCode(t *testing.T) {
	code := DeriveReferralCode(shared.Email("user@example.com"))

	assert.Len(t, code, 8)
	assert.Equal(t, code, DeriveReferralCode(shared.Email("user@example.com")))
	// Регистр и пробелы не влияют на код
	assert.Equal(t, code, DeriveReferralCode(shared.Email("  USER@example.COM ")))
	assert.NotEqual(t, code, DeriveReferralCode(shared.Email("other@example.com")))
}

func TestRecord_Validate(t *testing.T) {
	record := NewRecord(testVisitorID)
	require.NoError(t, record.Validate())

	empty := NewRecord("  ")
	assert.ErrorIs(t, empty.Validate(), shared.ErrInvalidVisitorID)

	negative := NewRecord(testVisitorID)
	negative.ReferralCount = -1
	assert.ErrorIs(t, negative.Validate(), shared.ErrInvalidState)

	half := NewRecord(testVisitorID)
	half.IsLoggedIn = true
	assert.ErrorIs(t, half.Validate(), shared.ErrInvalidState)

	stale := NewRecord(testVisitorID)
	stale.SchemaVersion = 1
	assert.ErrorIs(t, stale.Validate(), shared.ErrUnknownVersion)
}

func TestRecord_Clone(t *testing.T) {
	record := NewRecord(testVisitorID)
	record.Demo = true

	clone := record.Clone()
	clone.Calculator = true
	clone.ReferralCount = 5

	assert.False(t, record.Calculator)
	assert.Equal(t, 0, record.ReferralCount)
	assert.True(t, clone.Demo)
}

func TestCompletionPercent(t *testing.T) {
	weights := DefaultWeights()

	record := NewRecord(testVisitorID)
	assert.Equal(t, 0, CompletionPercent(record, weights).Int())

	record.Demo = true
	assert.Equal(t, 20, CompletionPercent(record, weights).Int())

	record.Calculator = true
	record.CalculatorCredit = true
	record.Feedback = true
	record.Waitlist = true
	assert.Equal(t, 100, CompletionPercent(record, weights).Int())

	// Рефералы добивают процент поверх 100
	record.ReferralCount = 2
	assert.Equal(t, 140, CompletionPercent(record, weights).Int())

	// Потолок отображаемого процента - 200
	record.ReferralCount = 50
	assert.Equal(t, 200, CompletionPercent(record, weights).Int())
}

func TestCompletionPercent_DoesNotMutate(t *testing.T) {
	weights := DefaultWeights()
	record := NewRecord(testVisitorID)
	record.Demo = true

	before := *record
	_ = CompletionPercent(record, weights)
	assert.Equal(t, before, *record)
}

func TestCompletionPercent_ErrorTaxonomy(t *testing.T) {
	// Санити-проверка: ошибка неизвестной вехи различима от "не найдено"
	_, err := ParseStep("bogus")
	assert.False(t, errors.Is(err, shared.ErrNotFound))
	assert.True(t, shared.IsValidation(err))
}
