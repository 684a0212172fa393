// Package inquiry stores quote and contact form submissions and alerts the
// sales team when one arrives.
package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/notify"
	"gorm.io/gorm"
)

var (
	// ErrInvalid is returned when a submission or status is invalid.
	ErrInvalid = errors.New("inquiry: invalid request")
	// ErrNotFound is returned when the inquiry does not exist.
	ErrNotFound = errors.New("inquiry: not found")
)

// Input is a form submission.
type Input struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	ProductType string `json:"productType"`
	Quantity    string `json:"quantity"`
	Message     string `json:"message"`
	SourcePage  string `json:"sourcePage"`
}

// Service manages inquiries.
type Service struct {
	db       *gorm.DB
	notifier notify.Notifier
}

// NewService creates an inquiry Service. A nil notifier disables alerts.
func NewService(db *gorm.DB, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{db: db, notifier: notifier}
}

// Create validates and stores a submission, then alerts the sales team.
// Alert failures are logged and do not fail the submission.
func (s *Service) Create(ctx context.Context, in Input) (*models.Inquiry, error) {
	inq := models.Inquiry{
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		Company:     strings.TrimSpace(in.Company),
		ProductType: strings.TrimSpace(in.ProductType),
		Quantity:    strings.TrimSpace(in.Quantity),
		Message:     strings.TrimSpace(in.Message),
		SourcePage:  strings.TrimSpace(in.SourcePage),
		Status:      models.InquiryNew,
	}
	if err := validate(inq); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&inq).Error; err != nil {
		return nil, fmt.Errorf("inquiry: create: %w", err)
	}

	if err := s.notifier.Notify(ctx, newInquiryEvent(inq)); err != nil {
		log.Printf("inquiry: notify %d: %v", inq.ID, err)
	}
	return &inq, nil
}

func validate(inq models.Inquiry) error {
	var errs []string
	if inq.Name == "" {
		errs = append(errs, "name is required")
	}
	if inq.Email == "" {
		errs = append(errs, "email is required")
	} else if !strings.Contains(inq.Email, "@") {
		errs = append(errs, "email is invalid")
	}
	if inq.Message == "" {
		errs = append(errs, "message is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// List returns inquiries newest first. An empty status lists all of them.
func (s *Service) List(ctx context.Context, status string) ([]models.Inquiry, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Inquiry
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("inquiry: list: %w", err)
	}
	return out, nil
}

// SetStatus moves an inquiry to new, contacted or closed.
func (s *Service) SetStatus(ctx context.Context, id uint, status string) (*models.Inquiry, error) {
	switch status {
	case models.InquiryNew, models.InquiryContacted, models.InquiryClosed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	db := s.db.WithContext(ctx)
	result := db.Model(&models.Inquiry{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return nil, fmt.Errorf("inquiry: set status %d: %w", id, result.Error)
	}
	var inq models.Inquiry
	if err := db.Limit(1).Find(&inq, id).Error; err != nil {
		return nil, fmt.Errorf("inquiry: reload %d: %w", id, err)
	}
	if inq.ID == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return &inq, nil
}

// Delete removes an inquiry.
func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Inquiry{}, id)
	if result.Error != nil {
		return fmt.Errorf("inquiry: delete %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func newInquiryEvent(inq models.Inquiry) notify.Event {
	fields := []notify.Field{
		{Name: "Email", Value: inq.Email, Short: true},
	}
	for _, f := range []notify.Field{
		{Name: "Phone", Value: inq.Phone, Short: true},
		{Name: "Company", Value: inq.Company, Short: true},
		{Name: "Product", Value: inq.ProductType, Short: true},
		{Name: "Quantity", Value: inq.Quantity, Short: true},
		{Name: "Page", Value: inq.SourcePage},
	} {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return notify.Event{
		Kind:     notify.KindInquiry,
		Title:    fmt.Sprintf("New inquiry from %s", inq.Name),
		Body:     inq.Message,
		Severity: "info",
		Fields:   fields,
	}
}
