package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles for the landing experiments.
// Supports gradual rollout with consistent per-visitor bucketing, so
// a visitor keeps seeing the same variant across reloads.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	visitorOverrides map[string]map[string]bool // visitorID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Visitors are assigned based on hash of their ID
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// === Engagement Features ===
	FeatureEngagementEasterEggs = "engagement.easter_eggs" // Hidden eggs on the landing
	FeatureEngagementThresholds = "engagement.thresholds"  // One-shot threshold goals
	FeatureEngagementScoring    = "engagement.scoring"     // Live score display

	// === Referral Features ===
	FeatureReferralProgram = "referral.program" // Referral codes and bonuses
	FeatureReferralBonus   = "referral.bonus"   // Over-100% completion bonus

	// === Notification Features ===
	FeatureNotifyMilestones    = "notify.milestones"    // Milestone pings to the team channel
	FeatureNotifyRegistrations = "notify.registrations" // Registration pings
	FeatureNotifyDailyDigest   = "notify.daily_digest"  // Nightly operations summary

	// === Analytics Features ===
	FeatureAnalyticsGoals = "analytics.goals" // Metrika goal reporting
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		visitorOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureEngagementEasterEggs] = &Feature{
		Name:           FeatureEngagementEasterEggs,
		Description:    "Hidden easter eggs on the landing",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEngagementThresholds] = &Feature{
		Name:           FeatureEngagementThresholds,
		Description:    "One-shot engagement threshold goals",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEngagementScoring] = &Feature{
		Name:           FeatureEngagementScoring,
		Description:    "Show the live engagement score to the visitor",
		Enabled:        false, // Internal metric, not shown by default
		RolloutPercent: 0,
	}

	ff.features[FeatureReferralProgram] = &Feature{
		Name:           FeatureReferralProgram,
		Description:    "Referral codes and share prompts",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureReferralBonus] = &Feature{
		Name:           FeatureReferralBonus,
		Description:    "Completion bonus above 100% for referrals",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	ff.features[FeatureNotifyMilestones] = &Feature{
		Name:           FeatureNotifyMilestones,
		Description:    "Milestone notifications to the team channel",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyRegistrations] = &Feature{
		Name:           FeatureNotifyRegistrations,
		Description:    "Registration notifications to the team channel",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyDailyDigest] = &Feature{
		Name:           FeatureNotifyDailyDigest,
		Description:    "Nightly operations summary",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAnalyticsGoals] = &Feature{
		Name:           FeatureAnalyticsGoals,
		Description:    "Metrika goal reporting",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_REFERRAL_BONUS=true
// Example: FEATURE_ENGAGEMENT_SCORING=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "referral.bonus" -> "FEATURE_REFERRAL_BONUS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given visitor.
// An empty visitorID evaluates global state only.
func (ff *FeatureFlags) IsEnabled(featureName, visitorID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check visitor overrides first
	if visitorID != "" {
		if overrides, ok := ff.visitorOverrides[visitorID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && visitorID != "" {
		return ff.isInRollout(visitorID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a visitor is in the rollout percentage.
// Uses consistent hashing so visitors stay in their bucket.
func (ff *FeatureFlags) isInRollout(visitorID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(visitorID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetVisitorOverride sets a feature override for a specific visitor.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetVisitorOverride(visitorID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.visitorOverrides[visitorID]; !ok {
		ff.visitorOverrides[visitorID] = make(map[string]bool)
	}
	ff.visitorOverrides[visitorID][featureName] = enabled
}

// ClearVisitorOverrides removes all overrides for a visitor.
func (ff *FeatureFlags) ClearVisitorOverrides(visitorID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.visitorOverrides, visitorID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// NotificationsEnabled checks if any team channel notifications are enabled.
func (ff *FeatureFlags) NotificationsEnabled() bool {
	return ff.IsEnabled(FeatureNotifyMilestones, "") ||
		ff.IsEnabled(FeatureNotifyRegistrations, "") ||
		ff.IsEnabled(FeatureNotifyDailyDigest, "")
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
