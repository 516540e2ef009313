package models

// User is a person taking part in groups and payments.
type User struct {
	SyncMeta
	Username        string `json:"username"`
	Email           string `json:"email"`
	DefaultCurrency string `json:"default_currency,omitempty"`
}

func (u *User) Refs() []Ref { return nil }
