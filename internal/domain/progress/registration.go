package progress

import (
	"regexp"
	"strings"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION FORM
// Форма листа ожидания - единственная точка перехода от анонимного
// посетителя к идентифицированному. Валидация целиком предшествует
// любой мутации: невалидная форма не меняет запись прогресса вообще.
// ══════════════════════════════════════════════════════════════════════════════

// NotifyMethod определяет канал, по которому посетитель хочет получать
// уведомления о запуске продукта.
type NotifyMethod string

const (
	NotifyEmail    NotifyMethod = "email"
	NotifyTelegram NotifyMethod = "telegram"
	NotifyWhatsApp NotifyMethod = "whatsapp"
)

// IsValid проверяет, что канал известен.
func (m NotifyMethod) IsValid() bool {
	switch m {
	case NotifyEmail, NotifyTelegram, NotifyWhatsApp:
		return true
	default:
		return false
	}
}

// RegistrationForm - данные формы листа ожидания, как их присылает лендинг.
type RegistrationForm struct {
	Email          string `json:"email"`
	Disease        string `json:"disease"`
	Problem        string `json:"problem"`
	NotifyMethod   string `json:"notify_method"`
	ContactDetails string `json:"contact_details"`
	AgreeTerms     bool   `json:"agree_terms"`
}

// Форматы контактов по каналам.
var (
	telegramHandleRegex = regexp.MustCompile(`^@[A-Za-z0-9_]{5,32}$`)
	phoneRegex          = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,18}$`)
)

// Validate проверяет форму и возвращает таксономию ошибок по полям.
// Возврат nil означает, что форму можно применять. Никакие поля не
// нормализуются на месте: используйте NormalizedEmail после валидации.
func (f RegistrationForm) Validate() error {
	errs := shared.ValidationErrors{}

	email := shared.Email(f.Email).Normalize()
	if strings.TrimSpace(f.Email) == "" {
		errs.Add("email", "email is required")
	} else if !email.IsValid() {
		errs.Add("email", "invalid email format")
	}

	if strings.TrimSpace(f.Disease) == "" {
		errs.Add("disease", "disease is required")
	}
	if strings.TrimSpace(f.Problem) == "" {
		errs.Add("problem", "problem is required")
	}

	method := NotifyMethod(strings.ToLower(strings.TrimSpace(f.NotifyMethod)))
	if !method.IsValid() {
		errs.Add("notify_method", "unknown notification method")
	} else if err := validateContact(method, f.ContactDetails); err != "" {
		errs.Add("contact_details", err)
	}

	if !f.AgreeTerms {
		errs.Add("agree_terms", "consent is required")
	}

	return errs.OrNil()
}

// validateContact проверяет формат контакта для выбранного канала.
// Пустой результат означает успех.
func validateContact(method NotifyMethod, contact string) string {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return "contact details are required"
	}

	switch method {
	case NotifyEmail:
		if !shared.Email(contact).Normalize().IsValid() {
			return "contact must be a valid email address"
		}
	case NotifyTelegram:
		if !telegramHandleRegex.MatchString(contact) {
			return "contact must be a telegram handle like @username"
		}
	case NotifyWhatsApp:
		if !phoneRegex.MatchString(contact) {
			return "contact must be a phone number"
		}
	}
	return ""
}

// NormalizedEmail возвращает нормализованный email формы.
// Зовите только после успешной Validate.
func (f RegistrationForm) NormalizedEmail() shared.Email {
	return shared.Email(f.Email).Normalize()
}

// Method возвращает нормализованный канал уведомлений.
func (f RegistrationForm) Method() NotifyMethod {
	return NotifyMethod(strings.ToLower(strings.TrimSpace(f.NotifyMethod)))
}
