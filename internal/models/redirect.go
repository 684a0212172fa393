package models

import "time"

// Redirect is an exact-match URL rewrite rule.
type Redirect struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SourcePath string `gorm:"size:512;not null;uniqueIndex"`
	TargetPath string `gorm:"size:512;not null"`
	Type       int    `gorm:"not null;default:301"`
	Active     bool   `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StatusCode returns the HTTP status to redirect with. Anything other than
// an explicit 302 is served as a permanent redirect.
func (r *Redirect) StatusCode() int {
	if r.Type == 302 {
		return 302
	}
	return 301
}
