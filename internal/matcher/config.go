// Package matcher decides which existing account an uploaded statement
// belongs to, or proposes creating a new one.
//
// The decision is a pure function over the statement's extracted
// metadata and the user's accounts. Scoring combines three weighted
// signals: an exact last-four match, institution name similarity, and
// account type agreement. A best score below the confidence threshold
// flips the decision to "create new account" with a synthesized name.
package matcher

import (
	"fmt"
)

// Config holds the scoring weights and decision threshold for account
// matching.
type Config struct {
	// LastFourWeight is awarded when the statement's last-four digits
	// exactly match an account's. The strongest single signal.
	LastFourWeight float64 `json:"last_four_weight" mapstructure:"last_four_weight"`

	// InstitutionWeight scales the institution name similarity score.
	InstitutionWeight float64 `json:"institution_weight" mapstructure:"institution_weight"`

	// TypeWeight is awarded when the account types agree.
	TypeWeight float64 `json:"type_weight" mapstructure:"type_weight"`

	// MinConfidence is the decision threshold: a best score below it
	// means no existing account is a believable match.
	MinConfidence float64 `json:"min_confidence" mapstructure:"min_confidence"`

	// InstitutionSimilarityFloor is the minimum name similarity that
	// earns any institution credit at all.
	InstitutionSimilarityFloor float64 `json:"institution_similarity_floor" mapstructure:"institution_similarity_floor"`
}

// DefaultConfig returns the standard matching configuration.
func DefaultConfig() *Config {
	return &Config{
		LastFourWeight:             0.5,
		InstitutionWeight:          0.3,
		TypeWeight:                 0.2,
		MinConfidence:              0.6,
		InstitutionSimilarityFloor: 0.5,
	}
}

// StrictConfig returns a configuration that only accepts near-certain
// matches, pushing everything else to account creation.
func StrictConfig() *Config {
	return &Config{
		LastFourWeight:             0.5,
		InstitutionWeight:          0.3,
		TypeWeight:                 0.2,
		MinConfidence:              0.8,
		InstitutionSimilarityFloor: 0.7,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.LastFourWeight < 0 || c.LastFourWeight > 1 {
		return fmt.Errorf("last four weight must be within [0,1]: %f", c.LastFourWeight)
	}

	if c.InstitutionWeight < 0 || c.InstitutionWeight > 1 {
		return fmt.Errorf("institution weight must be within [0,1]: %f", c.InstitutionWeight)
	}

	if c.TypeWeight < 0 || c.TypeWeight > 1 {
		return fmt.Errorf("type weight must be within [0,1]: %f", c.TypeWeight)
	}

	total := c.LastFourWeight + c.InstitutionWeight + c.TypeWeight
	if total < 0.9 || total > 1.1 {
		return fmt.Errorf("weights should sum to approximately 1.0, got %f", total)
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("minimum confidence must be within [0,1]: %f", c.MinConfidence)
	}

	if c.InstitutionSimilarityFloor < 0 || c.InstitutionSimilarityFloor > 1 {
		return fmt.Errorf("institution similarity floor must be within [0,1]: %f", c.InstitutionSimilarityFloor)
	}

	return nil
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{LastFour: %.2f, Institution: %.2f, Type: %.2f, MinConfidence: %.2f}",
		c.LastFourWeight, c.InstitutionWeight, c.TypeWeight, c.MinConfidence)
}
