package service

import (
	"testing"
	"time"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMatchTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.Project{}, &db.ProjectMember{}); err != nil {
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

func TestMatchScoreBaseline(t *testing.T) {
	project := db.Project{Category: "robotics", RequiredSkills: "python,cad", WorkStyle: "collaborative"}

	// 零重合只有基础分
	score := MatchScore(project, SeekerProfile{})
	if score != 50 {
		t.Fatalf("expected baseline score 50, got %d", score)
	}
}

func TestMatchScoreBonuses(t *testing.T) {
	project := db.Project{Category: "robotics", RequiredSkills: "python,cad,electronics,welding", WorkStyle: "collaborative"}

	seeker := SeekerProfile{
		Interests: []string{"Robotics", "music"},
		Skills:    []string{"python"},
		WorkStyle: "collaborative",
	}
	// 50 + 20（类别）+ 15（风格）+ 5（单项技能）
	if score := MatchScore(project, seeker); score != 90 {
		t.Fatalf("expected score 90, got %d", score)
	}

	// 技能加成封顶 +15
	seeker.Skills = []string{"python", "cad", "electronics", "welding"}
	if score := MatchScore(project, seeker); score != 100 {
		t.Fatalf("expected capped score 100, got %d", score)
	}
}

func TestMatchScoreIgnoresEmptyFields(t *testing.T) {
	project := db.Project{}
	seeker := SeekerProfile{Interests: []string{""}, WorkStyle: ""}

	// 空类别和空风格不参与加成
	if score := MatchScore(project, seeker); score != 50 {
		t.Fatalf("expected score 50, got %d", score)
	}
}

func TestDiscoverFiltersAndOrder(t *testing.T) {
	cleanup := setupMatchTestDB(t)
	defer cleanup()

	now := time.Now()
	seeker := SeekerProfile{Interests: []string{"robotics"}}

	projects := []db.Project{
		// 匹配类别，应排第一
		{UserID: 2, Title: "校园机器人", Category: "robotics", Status: db.ProjectStatusIdeation, OpenForCollaboration: true, MaxTeamSize: 3, CurrentTeamSize: 1, InviteCode: "code-a"},
		// 无类别重合，只有基础分
		{UserID: 3, Title: "诗歌期刊", Category: "writing", Status: db.ProjectStatusPlanning, OpenForCollaboration: true, MaxTeamSize: 3, CurrentTeamSize: 1, InviteCode: "code-b"},
		// 自己的项目，排除
		{UserID: 1, Title: "我的项目", Category: "robotics", Status: db.ProjectStatusIdeation, OpenForCollaboration: true, MaxTeamSize: 3, CurrentTeamSize: 1, InviteCode: "code-c"},
		// 未开放协作，排除
		{UserID: 4, Title: "封闭项目", Category: "robotics", Status: db.ProjectStatusIdeation, OpenForCollaboration: false, MaxTeamSize: 3, CurrentTeamSize: 1, InviteCode: "code-d"},
		// 已满员，排除
		{UserID: 5, Title: "满员项目", Category: "robotics", Status: db.ProjectStatusIdeation, OpenForCollaboration: true, MaxTeamSize: 2, CurrentTeamSize: 2, InviteCode: "code-e"},
		// 已完成的项目不再招募
		{UserID: 6, Title: "完结项目", Category: "robotics", Status: db.ProjectStatusCompleted, OpenForCollaboration: true, MaxTeamSize: 3, CurrentTeamSize: 1, InviteCode: "code-f"},
		// 已加入的项目，排除
		{UserID: 7, Title: "已加入项目", Category: "robotics", Status: db.ProjectStatusIdeation, OpenForCollaboration: true, MaxTeamSize: 3, CurrentTeamSize: 2, InviteCode: "code-g"},
	}
	for i := range projects {
		projects[i].CreatedAt = now.Add(time.Duration(i) * time.Minute)
		if err := db.DB.Create(&projects[i]).Error; err != nil {
			t.Fatalf("failed to seed project: %v", err)
		}
	}

	member := db.ProjectMember{ProjectID: projects[6].ID, UserID: 1, Role: "member", JoinedAt: now}
	if err := db.DB.Create(&member).Error; err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}

	svc := NewMatchService(db.DB)
	matches, err := svc.Discover(1, seeker, 0)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(matches))
	}
	if matches[0].Project.Title != "校园机器人" || matches[0].Score != 70 {
		t.Fatalf("unexpected first match: %s score=%d", matches[0].Project.Title, matches[0].Score)
	}
	if matches[1].Project.Title != "诗歌期刊" || matches[1].Score != 50 {
		t.Fatalf("unexpected second match: %s score=%d", matches[1].Project.Title, matches[1].Score)
	}
}

func TestDiscoverTieBreakByNewest(t *testing.T) {
	cleanup := setupMatchTestDB(t)
	defer cleanup()

	now := time.Now()
	older := db.Project{UserID: 2, Title: "旧项目", Status: db.ProjectStatusIdeation, OpenForCollaboration: true, MaxTeamSize: 3, CurrentTeamSize: 1, InviteCode: "tie-a"}
	older.CreatedAt = now.Add(-48 * time.Hour)
	newer := db.Project{UserID: 3, Title: "新项目", Status: db.ProjectStatusIdeation, OpenForCollaboration: true, MaxTeamSize: 3, CurrentTeamSize: 1, InviteCode: "tie-b"}
	newer.CreatedAt = now

	if err := db.DB.Create(&older).Error; err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	if err := db.DB.Create(&newer).Error; err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}

	svc := NewMatchService(db.DB)
	matches, err := svc.Discover(1, SeekerProfile{}, 10)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(matches))
	}
	if matches[0].Score != matches[1].Score {
		t.Fatalf("expected equal scores, got %d and %d", matches[0].Score, matches[1].Score)
	}
	if matches[0].Project.Title != "新项目" {
		t.Fatalf("expected newest project first, got %s", matches[0].Project.Title)
	}
}

func TestDiscoverLimit(t *testing.T) {
	cleanup := setupMatchTestDB(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		project := db.Project{
			UserID:               uint(i + 2),
			Title:                "候选项目",
			Status:               db.ProjectStatusIdeation,
			OpenForCollaboration: true,
			MaxTeamSize:          3,
			CurrentTeamSize:      1,
			InviteCode:           "limit-" + string(rune('a'+i)),
		}
		if err := db.DB.Create(&project).Error; err != nil {
			t.Fatalf("failed to seed project: %v", err)
		}
	}

	svc := NewMatchService(db.DB)
	matches, err := svc.Discover(1, SeekerProfile{}, 3)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected limit of 3 matches, got %d", len(matches))
	}
}
