package progress

import (
	"encoding/json"
	"time"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA MIGRATION
// Персистентные записи прошлых версий поднимаются до текущей схемы
// явной цепочкой v0 -> v1 -> v2. Каждый шаг тотален и чист: отсутствующие
// поля заполняются дефолтами, запись не выбрасывается. Единственный
// невосстановимый случай - невалидный JSON.
// ══════════════════════════════════════════════════════════════════════════════

// rawRecord - промежуточное представление записи между шагами миграции.
type rawRecord map[string]interface{}

// migrateStep поднимает запись ровно на одну версию.
type migrateStep func(rawRecord) rawRecord

// Цепочка применяется слева направо: migrations[0] это v0 -> v1.
var migrations = []migrateStep{
	migrateV0toV1,
	migrateV1toV2,
}

// Migrate разбирает сырые байты персистентной записи и поднимает её
// до текущей схемы. Возвращает ErrProgressCorrupt только для
// нечитаемого JSON; любая другая деградация лечится дефолтами.
func Migrate(data []byte) (*Record, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, shared.WrapError("progress", "Migrate", shared.ErrCorruptRecord, "unparseable record", err)
	}
	if raw == nil {
		return nil, shared.ErrProgressCorrupt
	}

	version := schemaVersion(raw)
	if version > CurrentSchemaVersion {
		// Запись из будущего: читать поля небезопасно.
		return nil, shared.NewDomainError("progress", "Migrate", shared.ErrUnknownVersion, "record version is newer than this build")
	}

	for v := version; v < CurrentSchemaVersion; v++ {
		raw = migrations[v](raw)
	}

	return decodeCurrent(raw)
}

// schemaVersion извлекает версию записи. Записи без поля версии - это v0
// (исторический формат браузерного localStorage с camelCase-ключами).
func schemaVersion(raw rawRecord) int {
	if v, ok := raw["schema_version"].(float64); ok && v >= 0 {
		return int(v)
	}
	return 0
}

// migrateV0toV1 переводит исторический camelCase-формат в snake_case.
func migrateV0toV1(raw rawRecord) rawRecord {
	out := rawRecord{
		"schema_version": float64(1),
		"visitor_id":     firstString(raw, "visitor_id", "userId", "user_id"),
		"demo":           boolOr(raw, "demo", false),
		"calculator":     boolOr(raw, "calculator", false),
		"calculator_credit": boolOr(raw, "calculator_credit", false) ||
			boolOr(raw, "calculatorCredit", false),
		"feedback":       boolOr(raw, "feedback", false),
		"waitlist":       boolOr(raw, "waitlist", false),
		"is_logged_in":   boolOr(raw, "is_logged_in", false) || boolOr(raw, "isLoggedIn", false),
		"email":          firstString(raw, "email", "userEmail", "user_email"),
		"referral_count": numberOr(raw, "referral_count", numberOr(raw, "referralCount", 0)),
		"referral_code":  firstString(raw, "referral_code", "referralCode"),
		"rewards_claimed": boolOr(raw, "rewards_claimed", false) ||
			boolOr(raw, "rewardsClaimed", false),
	}
	return out
}

// migrateV1toV2 добавляет появившиеся в v2 поля: награды и временные метки.
func migrateV1toV2(raw rawRecord) rawRecord {
	out := make(rawRecord, len(raw)+3)
	for k, v := range raw {
		out[k] = v
	}
	out["schema_version"] = float64(2)
	if _, ok := out["rewards_claimed"]; !ok {
		out["rewards_claimed"] = false
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = now
	}
	if _, ok := out["updated_at"]; !ok {
		out["updated_at"] = now
	}
	return out
}

// decodeCurrent собирает Record из карты текущей версии и чинит
// мелкие несогласованности, не заслуживающие отказа.
func decodeCurrent(raw rawRecord) (*Record, error) {
	// JSON не различает целые и дробные числа; дробное значение в целом
	// поле усекается, а не роняет всю запись.
	for _, key := range []string{"schema_version", "referral_count"} {
		if n, ok := raw[key].(float64); ok {
			raw[key] = float64(int64(n))
		}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, shared.WrapError("progress", "Migrate", shared.ErrCorruptRecord, "re-encode failed", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, shared.WrapError("progress", "Migrate", shared.ErrCorruptRecord, "decode failed", err)
	}

	record.SchemaVersion = CurrentSchemaVersion
	if record.ReferralCount < 0 {
		record.ReferralCount = 0
	}
	// Полу-идентифицированное состояние недопустимо: без email
	// запись остаётся анонимной.
	if record.IsLoggedIn && record.Email == "" {
		record.IsLoggedIn = false
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	return &record, nil
}

// ─────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────

func firstString(raw rawRecord, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func boolOr(raw rawRecord, key string, fallback bool) bool {
	if b, ok := raw[key].(bool); ok {
		return b
	}
	return fallback
}

func numberOr(raw rawRecord, key string, fallback float64) float64 {
	if n, ok := raw[key].(float64); ok {
		return n
	}
	return fallback
}
