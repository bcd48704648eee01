// Package account models a customer's account: the financial acts that raise
// or settle debt, how much of each has been matched against acts of the
// opposite polarity, and the rules that perform that matching.
package account

// ActType identifies the kind of financial act
type ActType string

const (
	ActTypeInvoice        ActType = "INVOICE"         // Charges invoice
	ActTypeCounter        ActType = "COUNTER"         // Counter sale
	ActTypeCredit         ActType = "CREDIT"          // Credit note
	ActTypePayment        ActType = "PAYMENT"         // Customer payment
	ActTypeRefund         ActType = "REFUND"          // Refund to the customer
	ActTypeCreditAdjust   ActType = "CREDIT_ADJUST"   // Credit adjustment
	ActTypeDebitAdjust    ActType = "DEBIT_ADJUST"    // Debit adjustment
	ActTypeInitialBalance ActType = "INITIAL_BALANCE" // Opening balance
	ActTypeBadDebt        ActType = "BAD_DEBT"        // Bad debt write-off
)

// IsValid checks if the act type is known
func (t ActType) IsValid() bool {
	switch t {
	case ActTypeInvoice, ActTypeCounter, ActTypeCredit, ActTypePayment, ActTypeRefund,
		ActTypeCreditAdjust, ActTypeDebitAdjust, ActTypeInitialBalance, ActTypeBadDebt:
		return true
	}
	return false
}

// String returns the string representation of ActType
func (t ActType) String() string {
	return string(t)
}

// IsCredit returns true for acts that reduce what the customer owes
func (t ActType) IsCredit() bool {
	switch t {
	case ActTypeCredit, ActTypePayment, ActTypeRefund, ActTypeCreditAdjust, ActTypeBadDebt:
		return true
	}
	return false
}

// IsCharge returns true for acts produced by the charging workflow
func (t ActType) IsCharge() bool {
	return t == ActTypeInvoice || t == ActTypeCounter || t == ActTypeCredit
}

// DebitActTypes returns every debit-polarity act type
func DebitActTypes() []ActType {
	return []ActType{ActTypeInvoice, ActTypeCounter, ActTypeDebitAdjust, ActTypeInitialBalance}
}

// CreditActTypes returns every credit-polarity act type
func CreditActTypes() []ActType {
	return []ActType{ActTypeCredit, ActTypePayment, ActTypeRefund, ActTypeCreditAdjust, ActTypeBadDebt}
}

// ChargeActTypes returns the act types produced by the charging workflow
func ChargeActTypes() []ActType {
	return []ActType{ActTypeInvoice, ActTypeCounter, ActTypeCredit}
}

// ActStatus represents the lifecycle of a financial act
type ActStatus string

const (
	ActStatusInProgress ActStatus = "IN_PROGRESS"
	ActStatusOnHold     ActStatus = "ON_HOLD"
	ActStatusCompleted  ActStatus = "COMPLETED"
	ActStatusPosted     ActStatus = "POSTED"
)

// IsValid checks if the status is known
func (s ActStatus) IsValid() bool {
	switch s {
	case ActStatusInProgress, ActStatusOnHold, ActStatusCompleted, ActStatusPosted:
		return true
	}
	return false
}

// String returns the string representation of ActStatus
func (s ActStatus) String() string {
	return string(s)
}

// IsPosted returns true once the act is finalised and counts towards the balance
func (s ActStatus) IsPosted() bool {
	return s == ActStatusPosted
}
