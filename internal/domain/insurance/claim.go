package insurance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vetpms/backend/internal/domain/shared"
)

// ClaimStatus is the lifecycle state of an insurance claim
type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "PENDING"
	ClaimStatusPosted    ClaimStatus = "POSTED"
	ClaimStatusSubmitted ClaimStatus = "SUBMITTED"
	ClaimStatusAccepted  ClaimStatus = "ACCEPTED"
	ClaimStatusSettled   ClaimStatus = "SETTLED"
	ClaimStatusDeclined  ClaimStatus = "DECLINED"
	ClaimStatusCancelled ClaimStatus = "CANCELLED"
)

// IsValid checks if the status is a known value
func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusPending, ClaimStatusPosted, ClaimStatusSubmitted, ClaimStatusAccepted,
		ClaimStatusSettled, ClaimStatusDeclined, ClaimStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s ClaimStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the insurer has finished with the claim
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusSettled || s == ClaimStatusDeclined || s == ClaimStatusCancelled
}

// BlocksAllocation returns true for the states in which a gap claim holds
// its invoices back from default credit allocation.
func (s ClaimStatus) BlocksAllocation() bool {
	return s == ClaimStatusPosted || s == ClaimStatusSubmitted || s == ClaimStatusAccepted
}

// CanTransitionTo reports whether the claim may move to next
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	switch s {
	case ClaimStatusPending:
		return next == ClaimStatusPosted || next == ClaimStatusCancelled
	case ClaimStatusPosted:
		return next == ClaimStatusSubmitted || next == ClaimStatusCancelled
	case ClaimStatusSubmitted:
		return next == ClaimStatusAccepted || next == ClaimStatusDeclined || next == ClaimStatusCancelled
	case ClaimStatusAccepted:
		return next == ClaimStatusSettled || next == ClaimStatusCancelled
	}
	return false
}

// GapStatus tracks the payment of the insurer's benefit on a gap claim
type GapStatus string

const (
	GapStatusPending  GapStatus = "PENDING"
	GapStatusReceived GapStatus = "RECEIVED"
	GapStatusPaid     GapStatus = "PAID"
	GapStatusNotified GapStatus = "NOTIFIED"
)

// IsValid checks if the gap status is a known value
func (s GapStatus) IsValid() bool {
	switch s {
	case GapStatusPending, GapStatusReceived, GapStatusPaid, GapStatusNotified:
		return true
	}
	return false
}

// IsPaid returns true once the benefit has been paid to the practice
func (s GapStatus) IsPaid() bool {
	return s == GapStatusPaid || s == GapStatusNotified
}

// ClaimItem links a claim to an invoice it covers
type ClaimItem struct {
	ID        uuid.UUID
	ClaimID   uuid.UUID
	InvoiceID uuid.UUID
}

// Claim is an insurance claim lodged for a customer's invoices.
// A gap claim is one where the customer pays only the gap up front and the
// practice waits on the insurer for the rest.
type Claim struct {
	shared.BaseAggregateRoot
	CustomerID  uuid.UUID
	Status      ClaimStatus
	GapClaim    bool
	GapStatus   GapStatus
	Insurer     string
	SubmittedAt *time.Time
	Items       []ClaimItem
}

// NewClaim creates a pending claim
func NewClaim(customerID uuid.UUID, insurer string, gapClaim bool) (*Claim, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument, "Customer ID cannot be empty")
	}
	insurer = strings.TrimSpace(insurer)
	if insurer == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument, "Insurer cannot be empty")
	}
	c := &Claim{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		Status:            ClaimStatusPending,
		GapClaim:          gapClaim,
		Insurer:           insurer,
	}
	if gapClaim {
		c.GapStatus = GapStatusPending
	}
	return c, nil
}

// AddInvoice adds an invoice to the claim. Each invoice appears once.
func (c *Claim) AddInvoice(invoiceID uuid.UUID) error {
	if invoiceID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Invoice ID cannot be empty")
	}
	if c.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot add invoices to a "+c.Status.String()+" claim")
	}
	for _, item := range c.Items {
		if item.InvoiceID == invoiceID {
			return nil
		}
	}
	c.Items = append(c.Items, ClaimItem{ID: uuid.New(), ClaimID: c.ID, InvoiceID: invoiceID})
	c.Touch()
	return nil
}

// Covers returns true if the claim includes the invoice
func (c *Claim) Covers(invoiceID uuid.UUID) bool {
	for _, item := range c.Items {
		if item.InvoiceID == invoiceID {
			return true
		}
	}
	return false
}

// TransitionTo moves the claim to next
func (c *Claim) TransitionTo(next ClaimStatus) error {
	if !next.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Unknown claim status "+string(next))
	}
	if !c.Status.CanTransitionTo(next) {
		return shared.NewDomainError(shared.CodeInvalidState,
			"Cannot move claim from "+c.Status.String()+" to "+next.String())
	}
	c.Status = next
	if next == ClaimStatusSubmitted && c.SubmittedAt == nil {
		now := time.Now()
		c.SubmittedAt = &now
	}
	c.Touch()
	return nil
}

// SetGapStatus records progress on the gap benefit
func (c *Claim) SetGapStatus(status GapStatus) error {
	if !c.GapClaim {
		return shared.NewDomainError(shared.CodeInvalidState, "Claim is not a gap claim")
	}
	if !status.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Unknown gap status "+string(status))
	}
	c.GapStatus = status
	c.Touch()
	return nil
}

// IsActiveGapClaim returns true if the claim holds its invoices back from
// default allocation: a gap claim that is posted, submitted or accepted and
// whose benefit has not been paid.
func (c *Claim) IsActiveGapClaim() bool {
	return c.GapClaim && c.Status.BlocksAllocation() && !c.GapStatus.IsPaid()
}
