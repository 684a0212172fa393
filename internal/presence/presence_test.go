package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/packaginghippo/hippo/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeClock is a settable clock shared between tracker and test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

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
	if err := db.AutoMigrate(&models.Conversation{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedConversation(t *testing.T, db *gorm.DB) uint {
	t.Helper()
	conv := models.Conversation{VisitorID: "v-1", Status: models.StatusActive}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv.ID
}

func TestWithin(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		elapsed time.Duration
		want    bool
	}{
		{0, true},
		{3900 * time.Millisecond, true},
		{4100 * time.Millisecond, false},
		{5 * time.Second, false},
	}
	for _, tt := range tests {
		if got := Within(base.Add(tt.elapsed), base, DefaultWindow); got != tt.want {
			t.Errorf("Within(+%s) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestOther(t *testing.T) {
	if got, _ := Other(RoleVisitor); got != RoleAgent {
		t.Errorf("Other(visitor) = %q, want agent", got)
	}
	if got, _ := Other(RoleAgent); got != RoleVisitor {
		t.Errorf("Other(agent) = %q, want visitor", got)
	}
	if _, err := Other("ai"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Other(ai) error = %v, want ErrInvalidRole", err)
	}
}

func TestDBTracker_HeartbeatWindow(t *testing.T) {
	db := openTestDB(t)
	id := seedConversation(t, db)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewDBTracker(db, DefaultWindow, clock.Now)
	ctx := context.Background()

	if err := tr.Touch(ctx, id, RoleVisitor); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	typing, err := tr.IsTyping(ctx, id, RoleVisitor)
	if err != nil {
		t.Fatalf("IsTyping: %v", err)
	}
	if !typing {
		t.Error("immediately after heartbeat: IsTyping = false, want true")
	}

	clock.Advance(3900 * time.Millisecond)
	if typing, _ := tr.IsTyping(ctx, id, RoleVisitor); !typing {
		t.Error("at 3900ms: IsTyping = false, want true")
	}

	clock.Advance(200 * time.Millisecond)
	if typing, _ := tr.IsTyping(ctx, id, RoleVisitor); typing {
		t.Error("at 4100ms: IsTyping = true, want false")
	}
}

func TestDBTracker_RolesAreIndependent(t *testing.T) {
	db := openTestDB(t)
	id := seedConversation(t, db)
	tr := NewDBTracker(db, 0, nil)
	ctx := context.Background()

	tr.Touch(ctx, id, RoleAgent)
	if typing, _ := tr.IsTyping(ctx, id, RoleVisitor); typing {
		t.Error("visitor should not be typing after agent heartbeat")
	}
	if typing, _ := tr.IsTyping(ctx, id, RoleAgent); !typing {
		t.Error("agent should be typing after agent heartbeat")
	}
}

func TestDBTracker_Clear(t *testing.T) {
	db := openTestDB(t)
	id := seedConversation(t, db)
	tr := NewDBTracker(db, 0, nil)
	ctx := context.Background()

	tr.Touch(ctx, id, RoleVisitor)
	if err := tr.Clear(ctx, id, RoleVisitor); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if typing, _ := tr.IsTyping(ctx, id, RoleVisitor); typing {
		t.Error("IsTyping after Clear = true, want false")
	}
	// Clearing twice is fine.
	if err := tr.Clear(ctx, id, RoleVisitor); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestDBTracker_Errors(t *testing.T) {
	db := openTestDB(t)
	id := seedConversation(t, db)
	tr := NewDBTracker(db, 0, nil)
	ctx := context.Background()

	if err := tr.Touch(ctx, id, "ai"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Touch(ai) error = %v, want ErrInvalidRole", err)
	}
	if err := tr.Touch(ctx, 999, RoleVisitor); !errors.Is(err, ErrNoConversation) {
		t.Errorf("Touch(missing) error = %v, want ErrNoConversation", err)
	}
	if _, err := tr.IsTyping(ctx, 999, RoleVisitor); !errors.Is(err, ErrNoConversation) {
		t.Errorf("IsTyping(missing) error = %v, want ErrNoConversation", err)
	}
}
