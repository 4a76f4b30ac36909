package service

import (
	"testing"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSystemSettingTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.SystemSetting{}); err != nil {
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

func TestSystemSettingDefaults(t *testing.T) {
	cleanup := setupSystemSettingTestDB(t)
	defer cleanup()

	svc := NewSystemSettingService(db.DB)
	settings, err := svc.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}

	if settings.SiteName != "Pathway Builder" {
		t.Fatalf("unexpected default site name: %s", settings.SiteName)
	}
	if settings.AIProvider != AIProviderOpenAI {
		t.Fatalf("unexpected default provider: %s", settings.AIProvider)
	}
}

func TestSystemSettingUpdateAndReload(t *testing.T) {
	cleanup := setupSystemSettingTestDB(t)
	defer cleanup()

	svc := NewSystemSettingService(db.DB)

	saved, err := svc.UpdateSettings(SystemSettingsInput{
		SiteName:        "  探索站  ",
		AIProvider:      "DeepSeek",
		DeepSeekAPIKey:  "sk-deepseek",
		AIInsightPrompt: "自定义洞察提示",
	})
	if err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if saved.SiteName != "探索站" {
		t.Fatalf("expected trimmed site name, got %q", saved.SiteName)
	}
	if saved.AIProvider != AIProviderDeepSeek {
		t.Fatalf("expected normalized provider, got %s", saved.AIProvider)
	}

	reloaded, err := svc.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}
	if reloaded.DeepSeekAPIKey != "sk-deepseek" || reloaded.AIInsightPrompt != "自定义洞察提示" {
		t.Fatalf("unexpected reloaded settings: %+v", reloaded)
	}

	// 再次更新覆盖旧值，不产生重复行
	if _, err := svc.UpdateSettings(SystemSettingsInput{SiteName: "", AIProvider: "openai"}); err != nil {
		t.Fatalf("repeat UpdateSettings returned error: %v", err)
	}
	reloaded, err = svc.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}
	if reloaded.SiteName != "Pathway Builder" {
		t.Fatalf("expected fallback site name, got %q", reloaded.SiteName)
	}

	var rows int64
	if err := db.DB.Model(&db.SystemSetting{}).Count(&rows).Error; err != nil {
		t.Fatalf("failed to count settings: %v", err)
	}
	if rows != 6 {
		t.Fatalf("expected 6 setting rows, got %d", rows)
	}
}

func TestNormalizeAIProvider(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"openai", AIProviderOpenAI},
		{" OpenAI ", AIProviderOpenAI},
		{"DEEPSEEK", AIProviderDeepSeek},
		{"claude", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := normalizeAIProvider(tc.input); got != tc.want {
			t.Errorf("normalizeAIProvider(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
