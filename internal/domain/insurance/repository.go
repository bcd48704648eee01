package insurance

import (
	"context"

	"github.com/google/uuid"
)

// ClaimRepository persists insurance claims
type ClaimRepository interface {
	// FindByID returns a claim with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Claim, error)

	// FindByInvoice returns every claim that includes the invoice
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Claim, error)

	// Save creates or updates a claim and replaces its items
	Save(ctx context.Context, claim *Claim) error
}
