package models

import "time"

const TransactionTable = "exc_transactions"

// TxKind is the closed set of transaction types. Grouped the way the club
// thinks about them: rentals, admin actions, automatic updates.
type TxKind string

const (
	// Rental
	TxCheckOut TxKind = "CheckOut"
	TxCheckIn  TxKind = "CheckIn"

	// Admin actions
	TxCreate   TxKind = "Create"
	TxDelete   TxKind = "Delete"
	TxReTag    TxKind = "ReTag"
	TxBreak    TxKind = "Break"
	TxFix      TxKind = "Fix"
	TxOverride TxKind = "Override"

	// Auto updates
	TxMissing TxKind = "Missing"
	TxExpire  TxKind = "Expire"
)

// Transaction is one immutable entry of the gear audit ledger. Rows are
// append-only: no code path updates or deletes them, and a gear's current
// state must always be re-derivable by folding its transaction history.
type Transaction struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index;autoCreateTime" json:"timestamp"`
	Type      TxKind    `gorm:"size:20;not null" json:"type"`

	GearID string `gorm:"type:uuid;index;not null" json:"gearId"`
	Gear   *Gear  `json:"gear,omitempty"`

	MemberID *string `gorm:"type:uuid;index" json:"memberId,omitempty"`
	Member   *Member `json:"member,omitempty"`

	// Tag id of the member who authorized the change, or "System" for
	// automatic transitions.
	Authorizer string `gorm:"size:10;not null" json:"authorizer"`

	Comments string `gorm:"type:text" json:"comments"`
}

func (Transaction) TableName() string { return TransactionTable }
