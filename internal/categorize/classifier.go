package categorize

import (
	"context"

	"github.com/shopspring/decimal"
)

// ClassificationRequest is one transaction submitted for AI
// classification.
type ClassificationRequest struct {
	ID          string          `json:"id"`
	Merchant    string          `json:"merchant,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ClassificationResult is the classifier's verdict for one transaction.
type ClassificationResult struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	IsRecurring bool    `json:"is_recurring"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// Classifier is the external classification capability. A response
// that does not map one-to-one onto the submitted ids must be rejected
// by the implementation as malformed.
type Classifier interface {
	Classify(ctx context.Context, batch []ClassificationRequest) ([]ClassificationResult, error)
}
