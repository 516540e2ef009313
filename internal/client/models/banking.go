package models

import "github.com/shopspring/decimal"

// Requisition is a pending bank-connection request of a user.
type Requisition struct {
	SyncMeta
	UserID        int64  `json:"user_id"`
	InstitutionID string `json:"institution_id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	Link          string `json:"link,omitempty"`
}

func (r *Requisition) Refs() []Ref {
	return []Ref{{Field: "user_id", Target: TypeUser, ID: &r.UserID}}
}

type BankAccount struct {
	SyncMeta
	UserID      int64  `json:"user_id"`
	Institution string `json:"institution"`
	IBAN        string `json:"iban"`
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	// NeedsReauthentication may be raised on the device before the server
	// learns about it.
	NeedsReauthentication bool `json:"needs_reauthentication"`
}

func (b *BankAccount) Refs() []Ref {
	return []Ref{{Field: "user_id", Target: TypeUser, ID: &b.UserID}}
}

// MergeFlags ORs locally detected conditions of other into b.
func (b *BankAccount) MergeFlags(other *BankAccount) {
	b.NeedsReauthentication = b.NeedsReauthentication || other.NeedsReauthentication
}

// Transaction is a booked bank transaction, optionally linked to a payment.
type Transaction struct {
	SyncMeta
	UserID        int64           `json:"user_id"`
	BankAccountID int64           `json:"bank_account_id"`
	PaymentID     int64           `json:"payment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BookingDate   string          `json:"booking_date"`
	Description   string          `json:"description,omitempty"`
}

func (t *Transaction) Refs() []Ref {
	return []Ref{
		{Field: "user_id", Target: TypeUser, ID: &t.UserID},
		{Field: "bank_account_id", Target: TypeBankAccount, ID: &t.BankAccountID},
		{Field: "payment_id", Target: TypePayment, ID: &t.PaymentID, Optional: true},
	}
}
