// Package recurring finds subscription-like charge series in an
// account's recent transactions: same merchant, near-identical amount,
// repeating on a weekly, monthly, or yearly cadence.
package recurring

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// Config holds the detection window and grouping tolerances.
type Config struct {
	// WindowDays bounds how far back detection looks from the most
	// recent transaction.
	WindowDays int `json:"window_days" mapstructure:"window_days"`

	// AmountTolerance is the relative amount spread allowed inside one
	// group, e.g. 0.05 keeps charges within 5% of the group seed.
	AmountTolerance float64 `json:"amount_tolerance" mapstructure:"amount_tolerance"`

	// MinOccurrences is how many member charges a series needs before
	// it counts as recurring.
	MinOccurrences int `json:"min_occurrences" mapstructure:"min_occurrences"`

	// IntervalTolerance is the relative deviation allowed between
	// observed gaps and the canonical period length.
	IntervalTolerance float64 `json:"interval_tolerance" mapstructure:"interval_tolerance"`
}

// DefaultConfig returns the standard detection configuration.
func DefaultConfig() *Config {
	return &Config{
		WindowDays:        180,
		AmountTolerance:   0.05,
		MinOccurrences:    3,
		IntervalTolerance: 0.20,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.WindowDays <= 0 {
		return fmt.Errorf("window days must be positive: %d", c.WindowDays)
	}
	if c.AmountTolerance < 0 || c.AmountTolerance >= 1 {
		return fmt.Errorf("amount tolerance must be within [0,1): %f", c.AmountTolerance)
	}
	if c.MinOccurrences < 2 {
		return fmt.Errorf("min occurrences must be at least 2: %d", c.MinOccurrences)
	}
	if c.IntervalTolerance <= 0 || c.IntervalTolerance >= 1 {
		return fmt.Errorf("interval tolerance must be within (0,1): %f", c.IntervalTolerance)
	}
	return nil
}

// Recognized cadences. Monthly covers the 28 to 31 day span of real
// calendar months before the tolerance is applied.
const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

type cadence struct {
	name    string
	minDays float64
	maxDays float64
}

var cadences = []cadence{
	{PeriodWeekly, 7, 7},
	{PeriodMonthly, 28, 31},
	{PeriodYearly, 365, 365},
}

// Detector scans transactions for recurring charge series.
type Detector struct {
	config *Config
	logger logger.Logger
}

// NewDetector creates a recurring charge detector.
func NewDetector(config *Config) (*Detector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "recurring", nil, err)
	}

	return &Detector{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("recurring"),
	}, nil
}

// Detect finds recurring series among the account's transactions and
// returns the groups. Member transactions are marked in place with
// IsRecurring and their group id. Transactions already assigned to a
// group keep their assignment, so re-running detection after an import
// never reshuffles earlier results.
func (d *Detector) Detect(userID, accountID string, transactions []*models.Transaction) []*models.RecurringGroup {
	window := d.windowTransactions(transactions)
	if len(window) < d.config.MinOccurrences {
		return nil
	}

	var groups []*models.RecurringGroup
	for _, bucket := range d.bucketCharges(window) {
		group := d.evaluateBucket(userID, accountID, bucket)
		if group == nil {
			continue
		}
		groups = append(groups, group)

		d.logger.WithFields(logger.Fields{
			"merchant": group.Merchant,
			"period":   group.Period,
			"members":  len(group.TransactionIDs),
		}).Debug("Detected recurring series")
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Merchant < groups[j].Merchant })
	return groups
}

// windowTransactions keeps transactions inside the detection window,
// anchored at the most recent transaction date, sorted oldest first.
func (d *Detector) windowTransactions(transactions []*models.Transaction) []*models.Transaction {
	if len(transactions) == 0 {
		return nil
	}

	var newest time.Time
	for _, tx := range transactions {
		if tx.Date.After(newest) {
			newest = tx.Date
		}
	}
	cutoff := newest.AddDate(0, 0, -d.config.WindowDays)

	window := make([]*models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if !tx.Date.Before(cutoff) {
			window = append(window, tx)
		}
	}

	sort.Slice(window, func(i, j int) bool { return window[i].Date.Before(window[j].Date) })
	return window
}

// merchantKey identifies a charge series source. Falls back to the
// normalized description when no merchant was extracted.
func merchantKey(tx *models.Transaction) string {
	if tx.Merchant != "" {
		return models.NormalizeDescription(tx.Merchant)
	}
	return models.NormalizeDescription(tx.Description)
}

// bucketCharges groups the window by merchant key, then splits each
// merchant's charges into amount clusters: a transaction joins the
// first cluster whose seed amount it is within tolerance of.
func (d *Detector) bucketCharges(window []*models.Transaction) [][]*models.Transaction {
	byMerchant := make(map[string][]*models.Transaction)
	var keys []string
	for _, tx := range window {
		key := merchantKey(tx)
		if key == "" {
			continue
		}
		if _, seen := byMerchant[key]; !seen {
			keys = append(keys, key)
		}
		byMerchant[key] = append(byMerchant[key], tx)
	}
	sort.Strings(keys)

	var buckets [][]*models.Transaction
	for _, key := range keys {
		var clusters [][]*models.Transaction
		for _, tx := range byMerchant[key] {
			placed := false
			for i, cluster := range clusters {
				if d.amountsClose(cluster[0].Amount, tx.Amount) {
					clusters[i] = append(cluster, tx)
					placed = true
					break
				}
			}
			if !placed {
				clusters = append(clusters, []*models.Transaction{tx})
			}
		}
		buckets = append(buckets, clusters...)
	}

	return buckets
}

func (d *Detector) amountsClose(a, b decimal.Decimal) bool {
	if a.Equal(b) {
		return true
	}
	if a.IsZero() || b.IsZero() {
		return false
	}

	diff := a.Sub(b).Abs()
	tolerance := a.Abs().Mul(decimal.NewFromFloat(d.config.AmountTolerance))
	return diff.LessThanOrEqual(tolerance)
}

// evaluateBucket decides whether one merchant-and-amount bucket forms
// a recurring series and builds its group.
func (d *Detector) evaluateBucket(userID, accountID string, bucket []*models.Transaction) *models.RecurringGroup {
	if len(bucket) < d.config.MinOccurrences {
		return nil
	}

	// Honor earlier assignments: if any member already belongs to a
	// group, extend that group instead of minting a new one, and never
	// steal members assigned elsewhere.
	groupID := ""
	for _, tx := range bucket {
		if tx.RecurringGroupID == "" {
			continue
		}
		if groupID == "" {
			groupID = tx.RecurringGroupID
		} else if tx.RecurringGroupID != groupID {
			return nil
		}
	}

	intervals := make([]float64, 0, len(bucket)-1)
	for i := 1; i < len(bucket); i++ {
		gap := bucket[i].Date.Sub(bucket[i-1].Date).Hours() / 24
		intervals = append(intervals, gap)
	}

	period := d.matchCadence(intervals)
	if period == "" {
		return nil
	}

	if groupID == "" {
		groupID = uuid.NewString()
	}

	group := &models.RecurringGroup{
		ID:        groupID,
		UserID:    userID,
		AccountID: accountID,
		Merchant:  displayMerchant(bucket),
		Amount:    bucket[0].Amount,
		Period:    period,
		CreatedAt: time.Now(),
	}

	for _, tx := range bucket {
		tx.IsRecurring = true
		tx.RecurringGroupID = groupID
		group.TransactionIDs = append(group.TransactionIDs, tx.ID)
	}

	return group
}

// matchCadence returns the cadence every observed interval fits, or
// empty when the gaps are too irregular.
func (d *Detector) matchCadence(intervals []float64) string {
	for _, c := range cadences {
		lo := c.minDays * (1 - d.config.IntervalTolerance)
		hi := c.maxDays * (1 + d.config.IntervalTolerance)

		fits := true
		for _, gap := range intervals {
			if gap < lo || gap > hi {
				fits = false
				break
			}
		}
		if fits {
			return c.name
		}
	}
	return ""
}

// displayMerchant prefers the raw merchant name of a member over the
// normalized key.
func displayMerchant(bucket []*models.Transaction) string {
	for _, tx := range bucket {
		if tx.Merchant != "" {
			return tx.Merchant
		}
	}
	return models.CleanMerchant(bucket[0].Description)
}
