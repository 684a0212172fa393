package inquiry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/notify"
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
	if err := db.AutoMigrate(&models.Inquiry{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

var validInput = Input{
	Name:        " Dana Smith ",
	Email:       "dana@example.com",
	Company:     "Acme Candles",
	ProductType: "candles",
	Quantity:    "1000",
	Message:     "Looking for rigid boxes with foil logo.",
	SourcePage:  "/custom-rigid-boxes",
}

func TestCreate_StoresAndNotifies(t *testing.T) {
	mock := &notify.Mock{}
	svc := NewService(openTestDB(t), mock)

	inq, err := svc.Create(context.Background(), validInput)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inq.ID == 0 || inq.Name != "Dana Smith" || inq.Status != models.InquiryNew {
		t.Errorf("inquiry = %+v", inq)
	}

	events := mock.Events()
	if len(events) != 1 || events[0].Kind != notify.KindInquiry {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Title != "New inquiry from Dana Smith" {
		t.Errorf("Title = %q", events[0].Title)
	}
	for _, f := range events[0].Fields {
		if f.Value == "" {
			t.Errorf("field %q has empty value", f.Name)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Input)
		want string
	}{
		{"missing name", func(in *Input) { in.Name = " " }, "name is required"},
		{"missing email", func(in *Input) { in.Email = "" }, "email is required"},
		{"bad email", func(in *Input) { in.Email = "dana.example.com" }, "email is invalid"},
		{"missing message", func(in *Input) { in.Message = "" }, "message is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &notify.Mock{}
			svc := NewService(openTestDB(t), mock)
			in := validInput
			tt.mod(&in)

			_, err := svc.Create(context.Background(), in)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want to contain %q", err.Error(), tt.want)
			}
			if len(mock.Events()) != 0 {
				t.Error("invalid submission should not notify")
			}
		})
	}
}

func TestCreate_NotifyFailureStillStores(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, &notify.Mock{Err: errors.New("slack down")})
	if _, err := svc.Create(context.Background(), validInput); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var count int64
	db.Model(&models.Inquiry{}).Count(&count)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestListSetStatusDelete(t *testing.T) {
	svc := NewService(openTestDB(t), nil)
	ctx := context.Background()
	a, _ := svc.Create(ctx, validInput)
	second := validInput
	second.Name = "Lee"
	b, _ := svc.Create(ctx, second)

	updated, err := svc.SetStatus(ctx, a.ID, models.InquiryContacted)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != models.InquiryContacted {
		t.Errorf("Status = %q", updated.Status)
	}

	fresh, err := svc.List(ctx, models.InquiryNew)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(fresh) != 1 || fresh[0].ID != b.ID {
		t.Errorf("List(new) = %+v, want only %d", fresh, b.ID)
	}
	all, _ := svc.List(ctx, "")
	if len(all) != 2 {
		t.Errorf("List() = %d, want 2", len(all))
	}

	if _, err := svc.SetStatus(ctx, a.ID, "archived"); !errors.Is(err, ErrInvalid) {
		t.Errorf("SetStatus(archived) err = %v, want ErrInvalid", err)
	}
	if _, err := svc.SetStatus(ctx, 999, models.InquiryClosed); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(999) err = %v, want ErrNotFound", err)
	}

	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}
