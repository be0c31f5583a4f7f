package matcher

import (
	"fmt"
	"strings"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/internal/textmatch"
	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// Engine scores statement metadata against a user's accounts.
type Engine struct {
	config *Config
	logger logger.Logger
}

// NewEngine creates a matching engine with the given configuration.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matcher", nil, err)
	}

	return &Engine{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
	}, nil
}

// candidateScore is one account's score against the metadata.
type candidateScore struct {
	account *models.Account
	score   float64
	reasons []string
}

// Match picks the best account for the statement, or proposes creating
// a new one when nothing scores above the confidence threshold. Pure
// decision function; never mutates the accounts.
func (e *Engine) Match(metadata *models.StatementMetadata, accounts []*models.Account) *models.AccountMatch {
	if metadata == nil {
		metadata = &models.StatementMetadata{}
	}

	if len(accounts) == 0 {
		name := SynthesizeAccountName(metadata)
		return &models.AccountMatch{
			Confidence:           0,
			Reasoning:            "no existing accounts to match against",
			ShouldCreateNew:      true,
			SuggestedAccountName: name,
		}
	}

	best := e.scoreAll(metadata, accounts)

	if best.score < e.config.MinConfidence {
		name := SynthesizeAccountName(metadata)
		reasoning := fmt.Sprintf("best candidate %q scored %.2f, below threshold %.2f",
			best.account.Name, best.score, e.config.MinConfidence)
		e.logger.WithFields(logger.Fields{
			"best_score": best.score,
			"threshold":  e.config.MinConfidence,
		}).Info("No account match above threshold, proposing new account")

		return &models.AccountMatch{
			Confidence:           best.score,
			Reasoning:            reasoning,
			ShouldCreateNew:      true,
			SuggestedAccountName: name,
		}
	}

	e.logger.WithFields(logger.Fields{
		"account_id": best.account.ID,
		"score":      best.score,
	}).Info("Matched statement to existing account")

	return &models.AccountMatch{
		SuggestedAccountID: best.account.ID,
		Confidence:         best.score,
		Reasoning:          strings.Join(best.reasons, "; "),
		ShouldCreateNew:    false,
	}
}

// scoreAll scores every account and returns the winner. Ties are broken
// by most-recently-synced account.
func (e *Engine) scoreAll(metadata *models.StatementMetadata, accounts []*models.Account) candidateScore {
	var best candidateScore

	for _, account := range accounts {
		candidate := e.score(metadata, account)

		if best.account == nil || candidate.score > best.score {
			best = candidate
			continue
		}

		if candidate.score == best.score && moreRecentlySynced(candidate.account, best.account) {
			best = candidate
		}
	}

	return best
}

func (e *Engine) score(metadata *models.StatementMetadata, account *models.Account) candidateScore {
	score := 0.0
	var reasons []string

	if metadata.LastFour != "" && account.LastFour != "" && metadata.LastFour == account.LastFour {
		score += e.config.LastFourWeight
		reasons = append(reasons, fmt.Sprintf("account number ending %s matches", metadata.LastFour))
	}

	if similarity := institutionSimilarity(metadata.Institution, account.Institution); similarity >= e.config.InstitutionSimilarityFloor {
		score += e.config.InstitutionWeight * similarity
		reasons = append(reasons, fmt.Sprintf("institution %q resembles %q (%.0f%%)",
			metadata.Institution, account.Institution, similarity*100))
	}

	if metadata.AccountType != "" && metadata.AccountType != models.AccountTypeOther &&
		metadata.AccountType == account.Type {
		score += e.config.TypeWeight
		reasons = append(reasons, fmt.Sprintf("account type %s matches", metadata.AccountType))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "no matching signals")
	}

	return candidateScore{account: account, score: score, reasons: reasons}
}

// institutionSimilarity compares institution names, giving full credit
// to containment ("Chase" inside "JPMorgan Chase Bank") and scaling by
// edit distance otherwise.
func institutionSimilarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	return textmatch.Similarity(a, b)
}

func moreRecentlySynced(a, b *models.Account) bool {
	if a.LastSyncedAt == nil {
		return false
	}
	if b.LastSyncedAt == nil {
		return true
	}
	return a.LastSyncedAt.After(*b.LastSyncedAt)
}

// SynthesizeAccountName builds a display name for a proposed account
// from the statement's institution and account type.
func SynthesizeAccountName(metadata *models.StatementMetadata) string {
	institution := strings.TrimSpace(metadata.Institution)
	accountType := prettyAccountType(metadata.AccountType)

	switch {
	case institution != "" && accountType != "":
		return institution + " " + accountType
	case institution != "":
		return institution + " Account"
	case accountType != "":
		return "Imported " + accountType
	default:
		return "Imported Account"
	}
}

func prettyAccountType(t models.AccountType) string {
	switch t {
	case models.AccountTypeChecking:
		return "Checking"
	case models.AccountTypeSavings:
		return "Savings"
	case models.AccountTypeCreditCard:
		return "Credit Card"
	case models.AccountTypeInvestment:
		return "Investment"
	case models.AccountTypeLoan:
		return "Loan"
	default:
		return ""
	}
}
