package models

// FormEntry is the pricing record written by the upstream form plugin when a
// customer submits a translation request. This service only ever reads it.
type FormEntry struct {
	EntryID      int64   `gorm:"primaryKey;autoIncrement:false" json:"entry_id"`
	SecureToken  string  `gorm:"column:secure_token;index" json:"-"`
	CustomerName string  `json:"customer_name"`
	TotalPrice   float64 `json:"total_price"`
	Currency     string  `json:"currency"`
}

// TableName keeps the upstream table name.
func (FormEntry) TableName() string {
	return "form_entries"
}
