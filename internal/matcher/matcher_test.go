package matcher

import (
	"testing"
	"time"

	"github.com/cathal-killeen/fins/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

func testAccounts() []*models.Account {
	syncedRecently := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	syncedLongAgo := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	return []*models.Account{
		{
			ID:           "acc-chase-checking",
			UserID:       "user-1",
			Name:         "Chase Checking",
			Type:         models.AccountTypeChecking,
			Institution:  "Chase Bank",
			LastFour:     "1234",
			LastSyncedAt: &syncedLongAgo,
		},
		{
			ID:           "acc-chase-card",
			UserID:       "user-1",
			Name:         "Chase Sapphire",
			Type:         models.AccountTypeCreditCard,
			Institution:  "Chase Bank",
			LastFour:     "9876",
			LastSyncedAt: &syncedRecently,
		},
		{
			ID:          "acc-ally-savings",
			UserID:      "user-1",
			Name:        "Ally Savings",
			Type:        models.AccountTypeSavings,
			Institution: "Ally Bank",
			LastFour:    "5555",
		},
	}
}

func TestMatchExactLastFour(t *testing.T) {
	e := newTestEngine(t)

	metadata := &models.StatementMetadata{
		Institution: "Chase Bank",
		AccountType: models.AccountTypeChecking,
		LastFour:    "1234",
	}

	match := e.Match(metadata, testAccounts())

	if match.ShouldCreateNew {
		t.Fatal("expected an existing-account match")
	}
	if match.SuggestedAccountID != "acc-chase-checking" {
		t.Errorf("expected acc-chase-checking, got %s", match.SuggestedAccountID)
	}
	if match.Confidence < 0.99 {
		t.Errorf("expected full confidence for all-signal match, got %.2f", match.Confidence)
	}
	if match.Reasoning == "" {
		t.Error("expected reasoning to be populated")
	}
}

func TestMatchLastFourAndType(t *testing.T) {
	e := newTestEngine(t)

	// Last-four plus type agreement clears the threshold even when the
	// statement names the institution differently.
	metadata := &models.StatementMetadata{
		Institution: "ALLY FINCL",
		AccountType: models.AccountTypeSavings,
		LastFour:    "5555",
	}

	match := e.Match(metadata, testAccounts())

	if match.ShouldCreateNew {
		t.Fatalf("expected last-four+type to clear the threshold, got create-new with %.2f", match.Confidence)
	}
	if match.SuggestedAccountID != "acc-ally-savings" {
		t.Errorf("expected acc-ally-savings, got %s", match.SuggestedAccountID)
	}
	if match.Confidence < 0.6 {
		t.Errorf("expected confidence at or above threshold, got %.2f", match.Confidence)
	}
}

func TestMatchInstitutionAndTypeAloneInsufficient(t *testing.T) {
	e := newTestEngine(t)

	// Without the last-four signal the best possible score is 0.5,
	// which stays below the 0.6 threshold.
	metadata := &models.StatementMetadata{
		Institution: "Ally Bank",
		AccountType: models.AccountTypeSavings,
	}

	match := e.Match(metadata, testAccounts())

	if !match.ShouldCreateNew {
		t.Fatalf("expected create-new without a last-four match, got account %s", match.SuggestedAccountID)
	}
	if match.Confidence < 0.49 || match.Confidence > 0.51 {
		t.Errorf("expected confidence near 0.5, got %.2f", match.Confidence)
	}
}

func TestMatchBelowThresholdProposesNewAccount(t *testing.T) {
	e := newTestEngine(t)

	metadata := &models.StatementMetadata{
		Institution: "Fidelity Investments",
		AccountType: models.AccountTypeInvestment,
		LastFour:    "0000",
	}

	match := e.Match(metadata, testAccounts())

	if !match.ShouldCreateNew {
		t.Fatalf("expected create-new for unknown institution, got account %s", match.SuggestedAccountID)
	}
	if match.SuggestedAccountName != "Fidelity Investments Investment" {
		t.Errorf("unexpected synthesized name: %q", match.SuggestedAccountName)
	}
	if match.Confidence >= 0.6 {
		t.Errorf("expected confidence below threshold, got %.2f", match.Confidence)
	}
}

func TestMatchNoAccounts(t *testing.T) {
	e := newTestEngine(t)

	metadata := &models.StatementMetadata{
		Institution: "Chase Bank",
		AccountType: models.AccountTypeChecking,
	}

	match := e.Match(metadata, nil)

	if !match.ShouldCreateNew {
		t.Fatal("expected create-new when the user has no accounts")
	}
	if match.Confidence != 0 {
		t.Errorf("expected zero confidence, got %.2f", match.Confidence)
	}
	if match.SuggestedAccountName != "Chase Bank Checking" {
		t.Errorf("unexpected synthesized name: %q", match.SuggestedAccountName)
	}
}

func TestMatchTieBrokenByMostRecentSync(t *testing.T) {
	e := newTestEngine(t)

	// Institution-only metadata scores both Chase accounts identically.
	metadata := &models.StatementMetadata{
		Institution: "Chase Bank",
	}

	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	accounts := []*models.Account{
		{ID: "acc-old", Institution: "Chase Bank", Type: models.AccountTypeChecking, LastSyncedAt: &old},
		{ID: "acc-recent", Institution: "Chase Bank", Type: models.AccountTypeCreditCard, LastSyncedAt: &recent},
	}

	best := e.scoreAll(metadata, accounts)
	if best.account.ID != "acc-recent" {
		t.Errorf("expected tie broken by most recent sync, got %s", best.account.ID)
	}
}

func TestMatchConfidenceMonotonic(t *testing.T) {
	e := newTestEngine(t)

	account := &models.Account{
		ID:          "acc-1",
		Institution: "First National Bank",
		Type:        models.AccountTypeChecking,
		LastFour:    "1234",
	}

	weak := e.score(&models.StatementMetadata{
		Institution: "Totally Different CU",
	}, account)

	withInstitution := e.score(&models.StatementMetadata{
		Institution: "First National Bank",
	}, account)

	withLastFour := e.score(&models.StatementMetadata{
		Institution: "First National Bank",
		LastFour:    "1234",
	}, account)

	allSignals := e.score(&models.StatementMetadata{
		Institution: "First National Bank",
		AccountType: models.AccountTypeChecking,
		LastFour:    "1234",
	}, account)

	if withInstitution.score < weak.score {
		t.Errorf("adding institution similarity decreased score: %.2f < %.2f",
			withInstitution.score, weak.score)
	}
	if withLastFour.score < withInstitution.score {
		t.Errorf("adding last-four match decreased score: %.2f < %.2f",
			withLastFour.score, withInstitution.score)
	}
	if allSignals.score < withLastFour.score {
		t.Errorf("adding type match decreased score: %.2f < %.2f",
			allSignals.score, withLastFour.score)
	}
}

func TestInstitutionSimilarity(t *testing.T) {
	if got := institutionSimilarity("Chase", "JPMorgan Chase Bank"); got != 1 {
		t.Errorf("expected containment to score 1, got %.2f", got)
	}
	if got := institutionSimilarity("", "Chase Bank"); got != 0 {
		t.Errorf("expected empty institution to score 0, got %.2f", got)
	}
	if got := institutionSimilarity("chase bank", "Chase Bank"); got != 1 {
		t.Errorf("expected case-insensitive equality to score 1, got %.2f", got)
	}
}

func TestSynthesizeAccountName(t *testing.T) {
	tests := []struct {
		name     string
		metadata models.StatementMetadata
		expected string
	}{
		{"both", models.StatementMetadata{Institution: "Ally Bank", AccountType: models.AccountTypeSavings}, "Ally Bank Savings"},
		{"institution only", models.StatementMetadata{Institution: "Ally Bank", AccountType: models.AccountTypeOther}, "Ally Bank Account"},
		{"type only", models.StatementMetadata{AccountType: models.AccountTypeCreditCard}, "Imported Credit Card"},
		{"neither", models.StatementMetadata{}, "Imported Account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SynthesizeAccountName(&tt.metadata); got != tt.expected {
				t.Errorf("SynthesizeAccountName = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConfigValidation(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
	if err := StrictConfig().Validate(); err != nil {
		t.Errorf("expected strict config to validate, got %v", err)
	}

	unbalanced := &Config{LastFourWeight: 0.1, InstitutionWeight: 0.1, TypeWeight: 0.1, MinConfidence: 0.6}
	if err := unbalanced.Validate(); err == nil {
		t.Error("expected error for weights not summing to 1")
	}

	badThreshold := DefaultConfig()
	badThreshold.MinConfidence = 1.5
	if err := badThreshold.Validate(); err == nil {
		t.Error("expected error for threshold above 1")
	}
}
