// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// VisitorID represents a stable anonymous-or-identified visitor identifier
// (UUID format). It is generated once per visitor and never regenerated.
type VisitorID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the visitor ID is a valid UUID.
func (v VisitorID) IsValid() bool {
	return uuidRegex.MatchString(string(v))
}

// String returns the string representation.
func (v VisitorID) String() string {
	return string(v)
}

// IsEmpty checks if the ID is empty.
func (v VisitorID) IsEmpty() bool {
	return v == ""
}

// NewVisitorID creates a new VisitorID with validation.
func NewVisitorID(id string) (VisitorID, error) {
	vid := VisitorID(strings.ToLower(strings.TrimSpace(id)))
	if !vid.IsValid() {
		return "", ErrInvalidVisitorID
	}
	return vid, nil
}

// SessionID represents an ephemeral page-session identifier. Unlike
// VisitorID it carries no format guarantee beyond being non-empty; the
// landing page generates it per load.
type SessionID string

// IsValid checks that the session ID is usable.
func (s SessionID) IsValid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String returns the string representation.
func (s SessionID) String() string {
	return string(s)
}

// ═══════════════════════════════════════════════════════════════════════════
// Email Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Email represents a validated email address.
type Email string

// Pragmatic email format check, same strictness the landing form applies.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValid checks if the email has a plausible format.
func (e Email) IsValid() bool {
	return emailRegex.MatchString(string(e))
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// Normalize returns a trimmed, lowercased version of the email.
func (e Email) Normalize() Email {
	return Email(strings.ToLower(strings.TrimSpace(string(e))))
}

// NewEmail creates a new Email with validation.
func NewEmail(value string) (Email, error) {
	email := Email(value).Normalize()
	if !email.IsValid() {
		return "", NewDomainError("shared", "NewEmail", ErrInvalidFormat, "invalid email format")
	}
	return email, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percent Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percent represents a completion percentage. The displayed value may exceed
// 100 because referral bonuses stack on top of the milestone weights; the
// hard ceiling is MaxDisplayPercent.
type Percent int

const (
	// MinPercent is the floor for any percentage value.
	MinPercent Percent = 0

	// FullPercent is the nominal "everything completed" value.
	FullPercent Percent = 100

	// MaxDisplayPercent is the ceiling the referral bonus can push the
	// displayed total to.
	MaxDisplayPercent Percent = 200
)

// Int returns the underlying int value.
func (p Percent) Int() int {
	return int(p)
}

// Clamp bounds the value to [MinPercent, MaxDisplayPercent].
func (p Percent) Clamp() Percent {
	if p < MinPercent {
		return MinPercent
	}
	if p > MaxDisplayPercent {
		return MaxDisplayPercent
	}
	return p
}

// CapFull bounds the value to [MinPercent, FullPercent]. The engagement
// scorer consumes this capped form.
func (p Percent) CapFull() Percent {
	if p < MinPercent {
		return MinPercent
	}
	if p > FullPercent {
		return FullPercent
	}
	return p
}

// IsComplete reports whether the nominal full completion has been reached.
func (p Percent) IsComplete() bool {
	return p >= FullPercent
}

// ═══════════════════════════════════════════════════════════════════════════
// Referral Code Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ReferralCode is a stable, deterministically derived identifier a visitor
// shares to attribute new signups to them.
type ReferralCode string

var referralCodeRegex = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// IsValid checks the code format.
func (r ReferralCode) IsValid() bool {
	return referralCodeRegex.MatchString(string(r))
}

// String returns the string representation.
func (r ReferralCode) String() string {
	return string(r)
}

// IsEmpty checks if the code is empty.
func (r ReferralCode) IsEmpty() bool {
	return r == ""
}
