// Package redirect stores exact-match URL rewrite rules and resolves incoming
// paths against them.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/packaginghippo/hippo/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInvalid is returned when a rule is missing required fields.
	ErrInvalid = errors.New("redirect: invalid rule")
	// ErrNotFound is returned when a rule id does not exist.
	ErrNotFound = errors.New("redirect: rule not found")
	// ErrConflict is returned when another rule already owns the source path.
	ErrConflict = errors.New("redirect: source path already exists")
)

// Result is the outcome of a lookup. Found=false is a normal outcome.
type Result struct {
	Found     bool   `json:"found"`
	TargetURL string `json:"targetUrl,omitempty"`
	Type      int    `json:"type,omitempty"`
}

// RuleInput carries the editable fields of a rule. A nil Active means
// "active" on create and "unchanged" on update.
type RuleInput struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   int    `json:"type"`
	Active *bool  `json:"active"`
}

// Service resolves and manages redirect rules.
type Service struct {
	db *gorm.DB
}

// NewService creates a redirect Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// NormalizePath trims whitespace and guarantees a leading slash.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Lookup finds the active rule whose source equals path exactly. Trailing
// slashes, query strings and case all matter.
func (s *Service) Lookup(ctx context.Context, path string) (Result, error) {
	path = NormalizePath(path)
	if path == "" {
		return Result{}, nil
	}

	var rule models.Redirect
	err := s.db.WithContext(ctx).
		Where("source_path = ? AND active = ?", path, true).
		Limit(1).Find(&rule).Error
	if err != nil {
		return Result{}, fmt.Errorf("redirect: lookup %s: %w", path, err)
	}
	if rule.ID == 0 {
		return Result{}, nil
	}
	return Result{Found: true, TargetURL: rule.TargetPath, Type: rule.StatusCode()}, nil
}

// List returns all rules, newest first.
func (s *Service) List(ctx context.Context) ([]models.Redirect, error) {
	var rules []models.Redirect
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("redirect: list: %w", err)
	}
	return rules, nil
}

// Create validates and stores a new rule.
func (s *Service) Create(ctx context.Context, in RuleInput) (*models.Redirect, error) {
	rule, err := buildRule(in)
	if err != nil {
		return nil, err
	}
	rule.Active = true
	if in.Active != nil {
		rule.Active = *in.Active
	}

	if taken, err := s.sourceTaken(ctx, rule.SourcePath, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("%w: %s", ErrConflict, rule.SourcePath)
	}

	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, fmt.Errorf("redirect: create %s: %w", rule.SourcePath, err)
	}
	return rule, nil
}

// Update replaces source, target and type of an existing rule, and its active
// flag when in.Active is set.
func (s *Service) Update(ctx context.Context, id uint, in RuleInput) (*models.Redirect, error) {
	next, err := buildRule(in)
	if err != nil {
		return nil, err
	}

	var rule models.Redirect
	if err := s.db.WithContext(ctx).Limit(1).Find(&rule, id).Error; err != nil {
		return nil, fmt.Errorf("redirect: load %d: %w", id, err)
	}
	if rule.ID == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	if taken, err := s.sourceTaken(ctx, next.SourcePath, id); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("%w: %s", ErrConflict, next.SourcePath)
	}

	updates := map[string]interface{}{
		"source_path": next.SourcePath,
		"target_path": next.TargetPath,
		"type":        next.Type,
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if err := s.db.WithContext(ctx).Model(&rule).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("redirect: update %d: %w", id, err)
	}
	if err := s.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, fmt.Errorf("redirect: reload %d: %w", id, err)
	}
	return &rule, nil
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Redirect{}, id)
	if result.Error != nil {
		return fmt.Errorf("redirect: delete %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func (s *Service) sourceTaken(ctx context.Context, source string, exceptID uint) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.Redirect{}).Where("source_path = ?", source)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("redirect: check source %s: %w", source, err)
	}
	return count > 0, nil
}

func buildRule(in RuleInput) (*models.Redirect, error) {
	source := NormalizePath(in.Source)
	target := NormalizePath(in.Target)
	var missing []string
	if source == "" {
		missing = append(missing, "source")
	}
	if target == "" {
		missing = append(missing, "target")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", ErrInvalid, strings.Join(missing, " and "))
	}
	if source == target {
		return nil, fmt.Errorf("%w: source and target are the same", ErrInvalid)
	}
	typ := in.Type
	if typ == 0 {
		typ = 301
	}
	if typ != 301 && typ != 302 {
		return nil, fmt.Errorf("%w: type must be 301 or 302", ErrInvalid)
	}
	return &models.Redirect{SourcePath: source, TargetPath: target, Type: typ}, nil
}
