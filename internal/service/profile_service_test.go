package service

import (
	"errors"
	"testing"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupProfileTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.UserProfile{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestProfileGetMissingReturnsEmpty(t *testing.T) {
	cleanup := setupProfileTestDB(t)
	defer cleanup()

	svc := NewProfileService(db.DB)
	profile, err := svc.Get(42)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if profile.UserID != 42 || profile.Bio != "" {
		t.Fatalf("expected empty profile for user 42, got %+v", profile)
	}
}

func TestProfileUpdateUpsert(t *testing.T) {
	cleanup := setupProfileTestDB(t)
	defer cleanup()

	svc := NewProfileService(db.DB)

	first, err := svc.Update(1, ProfileInput{
		Bio:       "喜欢机器人和音乐",
		Interests: []string{"Robotics", " music "},
		Skills:    []string{"Python"},
		WorkStyle: "Collaborative",
		GradeYear: 11,
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if first.Interests != "robotics,music" {
		t.Fatalf("unexpected interests: %s", first.Interests)
	}
	if first.WorkStyle != "collaborative" {
		t.Fatalf("expected normalized work style, got %s", first.WorkStyle)
	}

	// 第二次更新走 upsert，不产生新行
	second, err := svc.Update(1, ProfileInput{Bio: "换了方向", Interests: []string{"writing"}})
	if err != nil {
		t.Fatalf("repeat Update returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same profile row, got %d and %d", first.ID, second.ID)
	}
	if second.Interests != "writing" {
		t.Fatalf("expected interests replaced, got %s", second.Interests)
	}

	var rows int64
	if err := db.DB.Model(&db.UserProfile{}).Where("user_id = ?", 1).Count(&rows).Error; err != nil {
		t.Fatalf("failed to count profiles: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single profile row, got %d", rows)
	}
}

func TestProfileUpdateInvalidWorkStyle(t *testing.T) {
	cleanup := setupProfileTestDB(t)
	defer cleanup()

	svc := NewProfileService(db.DB)
	if _, err := svc.Update(1, ProfileInput{WorkStyle: "chaotic"}); !errors.Is(err, ErrInvalidWorkStyle) {
		t.Fatalf("expected ErrInvalidWorkStyle, got %v", err)
	}
}

func TestSeekerProfileSplitsLists(t *testing.T) {
	cleanup := setupProfileTestDB(t)
	defer cleanup()

	svc := NewProfileService(db.DB)
	if _, err := svc.Update(7, ProfileInput{
		Interests: []string{"robotics", "music"},
		Skills:    []string{"python", "cad"},
		WorkStyle: "independent",
	}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	seeker, err := svc.SeekerProfile(7)
	if err != nil {
		t.Fatalf("SeekerProfile returned error: %v", err)
	}
	if len(seeker.Interests) != 2 || len(seeker.Skills) != 2 {
		t.Fatalf("unexpected seeker profile: %+v", seeker)
	}
	if seeker.WorkStyle != "independent" {
		t.Fatalf("unexpected work style: %s", seeker.WorkStyle)
	}
}
