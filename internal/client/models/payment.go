package models

import "github.com/shopspring/decimal"

type Payment struct {
	SyncMeta
	GroupID     int64           `json:"group_id"`
	PaidBy      int64           `json:"paid_by"`
	CreatedBy   int64           `json:"created_by"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	PaymentDate string          `json:"payment_date,omitempty"`
}

func (p *Payment) Refs() []Ref {
	return []Ref{
		{Field: "group_id", Target: TypeGroup, ID: &p.GroupID},
		{Field: "paid_by", Target: TypeUser, ID: &p.PaidBy},
		{Field: "created_by", Target: TypeUser, ID: &p.CreatedBy},
	}
}

// PaymentSplit is one user's share of a payment.
type PaymentSplit struct {
	SyncMeta
	PaymentID int64           `json:"payment_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (s *PaymentSplit) Refs() []Ref {
	return []Ref{
		{Field: "payment_id", Target: TypePayment, ID: &s.PaymentID},
		{Field: "user_id", Target: TypeUser, ID: &s.UserID},
	}
}
