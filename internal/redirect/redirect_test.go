package redirect

import (
	"context"
	"errors"
	"testing"

	"github.com/packaginghippo/hippo/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Redirect{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func boolPtr(b bool) *bool { return &b }

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/old-page", "/old-page"},
		{"old-page", "/old-page"},
		{"  /spaced  ", "/spaced"},
		{"", ""},
		{"   ", ""},
		{"/trailing/", "/trailing/"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookup_ExactMatchOnly(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	if _, err := svc.Create(ctx, RuleInput{Source: "/old-page", Target: "/new-page", Type: 301}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := svc.Lookup(ctx, "/old-page")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	want := Result{Found: true, TargetURL: "/new-page", Type: 301}
	if res != want {
		t.Errorf("Lookup(/old-page) = %+v, want %+v", res, want)
	}

	for _, p := range []string{"/old-page/", "/Old-Page", "/old", "/old-page/extra"} {
		res, err := svc.Lookup(ctx, p)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", p, err)
		}
		if res.Found {
			t.Errorf("Lookup(%s) found a rule, want exact match only", p)
		}
	}
}

func TestLookup_InactiveIsNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, RuleInput{Source: "/retired", Target: "/home", Active: boolPtr(false)}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var count int64
	db.Model(&models.Redirect{}).Where("source_path = ?", "/retired").Count(&count)
	if count != 1 {
		t.Fatalf("row count = %d, want 1", count)
	}

	res, err := svc.Lookup(ctx, "/retired")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Found {
		t.Errorf("inactive rule should not be found, got %+v", res)
	}
}

func TestLookup_StatusCode(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, RuleInput{Source: "/temp", Target: "/promo", Type: 302}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Rows written outside the service may carry odd types; they serve as 301.
	if err := db.Create(&models.Redirect{SourcePath: "/odd", TargetPath: "/x", Type: 307, Active: true}).Error; err != nil {
		t.Fatalf("insert odd rule: %v", err)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/temp", 302},
		{"/odd", 301},
	}
	for _, tt := range tests {
		res, err := svc.Lookup(ctx, tt.path)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", tt.path, err)
		}
		if !res.Found || res.Type != tt.want {
			t.Errorf("Lookup(%s) = %+v, want type %d", tt.path, res, tt.want)
		}
	}
}

func TestLookup_AddsLeadingSlash(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()
	svc.Create(ctx, RuleInput{Source: "/a", Target: "/b"})

	res, _ := svc.Lookup(ctx, "a")
	if !res.Found {
		t.Error("Lookup(a) should match /a")
	}
	res, _ = svc.Lookup(ctx, "")
	if res.Found {
		t.Error("Lookup(\"\") should not match")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name string
		in   RuleInput
	}{
		{"missing source", RuleInput{Target: "/b"}},
		{"missing target", RuleInput{Source: "/a"}},
		{"blank both", RuleInput{Source: " ", Target: " "}},
		{"same path", RuleInput{Source: "a", Target: "/a"}},
		{"bad type", RuleInput{Source: "/a", Target: "/b", Type: 308}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Create() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestCreate_NormalizesAndDefaults(t *testing.T) {
	svc := NewService(openTestDB(t))

	rule, err := svc.Create(context.Background(), RuleInput{Source: "old", Target: "new"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rule.SourcePath != "/old" || rule.TargetPath != "/new" {
		t.Errorf("paths = %q -> %q, want /old -> /new", rule.SourcePath, rule.TargetPath)
	}
	if rule.Type != 301 {
		t.Errorf("Type = %d, want 301", rule.Type)
	}
	if !rule.Active {
		t.Error("new rule should default to active")
	}
}

func TestCreate_DuplicateSource(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	if _, err := svc.Create(ctx, RuleInput{Source: "/a", Target: "/b"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Create(ctx, RuleInput{Source: "a", Target: "/c"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate Create() error = %v, want ErrConflict", err)
	}
}

func TestUpdate(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	rule, _ := svc.Create(ctx, RuleInput{Source: "/a", Target: "/b"})
	svc.Create(ctx, RuleInput{Source: "/taken", Target: "/z"})

	updated, err := svc.Update(ctx, rule.ID, RuleInput{Source: "/a", Target: "/c", Type: 302, Active: boolPtr(false)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.TargetPath != "/c" || updated.Type != 302 || updated.Active {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := svc.Update(ctx, rule.ID, RuleInput{Source: "/taken", Target: "/c"}); !errors.Is(err, ErrConflict) {
		t.Errorf("Update to taken source error = %v, want ErrConflict", err)
	}
	if _, err := svc.Update(ctx, 9999, RuleInput{Source: "/q", Target: "/r"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing error = %v, want ErrNotFound", err)
	}
}

func TestListAndDelete(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	a, _ := svc.Create(ctx, RuleInput{Source: "/a", Target: "/b"})
	svc.Create(ctx, RuleInput{Source: "/c", Target: "/d"})

	rules, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}

	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	rules, _ = svc.List(ctx)
	if len(rules) != 1 || rules[0].SourcePath != "/c" {
		t.Errorf("rules after delete = %+v", rules)
	}
}
