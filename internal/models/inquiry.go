package models

import "time"

// Inquiry statuses.
const (
	InquiryNew       = "new"
	InquiryContacted = "contacted"
	InquiryClosed    = "closed"
)

// Inquiry is a quote or contact form submission.
type Inquiry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:128;not null"`
	Email       string `gorm:"size:256;not null;index"`
	Phone       string `gorm:"size:32"`
	Company     string `gorm:"size:128"`
	ProductType string `gorm:"size:128"`
	Quantity    string `gorm:"size:32"`
	Message     string `gorm:"type:text;not null"`
	SourcePage  string `gorm:"size:512"`
	Status      string `gorm:"size:16;not null;default:new;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
