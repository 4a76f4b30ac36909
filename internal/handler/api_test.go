package handler

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestDB(t *testing.T) (*API, func()) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.UserProfile{},
		&db.Module{},
		&db.Activity{},
		&db.ActivityCompletion{},
		&db.Project{},
		&db.ProjectMember{},
		&db.Milestone{},
		&db.Task{},
		&db.ProjectCheckIn{},
		&db.AchievementDefinition{},
		&db.UserAchievement{},
		&db.XPTransaction{},
		&db.CreditTransaction{},
		&db.SystemSetting{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	if err := db.EnsureAchievementDefinitions(gdb); err != nil {
		t.Fatalf("failed to seed achievements: %v", err)
	}

	db.DB = gdb
	api := NewAPI(gdb, t.TempDir(), "/static/uploads")

	return api, func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// authedContext 构造带用户身份的测试上下文，绕过会话中间件
func authedContext(w *httptest.ResponseRecorder, userID uint) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Set(contextUserIDKey, userID)
	return c
}

func seedTestUser(t *testing.T, credits int) db.User {
	t.Helper()
	user := db.User{
		Username: fmt.Sprintf("student-%d", time.Now().UnixNano()),
		Password: "x",
		Role:     "student",
		Level:    1,
		Credits:  credits,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}
