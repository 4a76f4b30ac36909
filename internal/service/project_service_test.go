package service

import (
	"errors"
	"testing"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupProjectTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
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
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	if err := db.EnsureAchievementDefinitions(gdb); err != nil {
		t.Fatalf("failed to seed achievements: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestCreateProjectRegistersOwner(t *testing.T) {
	cleanup := setupProjectTestDB(t)
	defer cleanup()

	owner := seedUser(t, 0, 100)
	svc := NewProjectService(db.DB)

	project, err := svc.Create(owner.ID, ProjectInput{
		Title:                "校园播客",
		Description:          "采访同学的成长故事",
		Category:             "media",
		OpenForCollaboration: true,
		MaxTeamSize:          3,
		RequiredSkills:       []string{"Editing", "  Interviewing  ", ""},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if project.InviteCode == "" {
		t.Fatal("expected invite code to be generated")
	}
	if project.Status != db.ProjectStatusIdeation {
		t.Fatalf("expected status IDEATION, got %s", project.Status)
	}
	if project.CurrentTeamSize != 1 {
		t.Fatalf("expected team size 1, got %d", project.CurrentTeamSize)
	}
	if project.RequiredSkills != "editing,interviewing" {
		t.Fatalf("unexpected required skills: %s", project.RequiredSkills)
	}

	var member db.ProjectMember
	if err := db.DB.Where("project_id = ? AND user_id = ?", project.ID, owner.ID).First(&member).Error; err != nil {
		t.Fatalf("expected owner membership row: %v", err)
	}
	if member.Role != "owner" {
		t.Fatalf("expected role owner, got %s", member.Role)
	}

	// 首个项目成就随创建解锁
	var achievements int64
	if err := db.DB.Model(&db.UserAchievement{}).Where("user_id = ?", owner.ID).Count(&achievements).Error; err != nil {
		t.Fatalf("failed to count achievements: %v", err)
	}
	if achievements == 0 {
		t.Fatal("expected first_project achievement to unlock")
	}

	if _, err := svc.Create(owner.ID, ProjectInput{Title: "   "}); err == nil {
		t.Fatal("expected error for empty title")
	}
}

func TestProjectAccessControl(t *testing.T) {
	cleanup := setupProjectTestDB(t)
	defer cleanup()

	owner := seedUser(t, 0, 100)
	stranger := seedUser(t, 0, 100)
	svc := NewProjectService(db.DB)

	project, err := svc.Create(owner.ID, ProjectInput{Title: "私密项目"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// 非成员访问视为不存在
	if _, err := svc.Get(project.ID, stranger.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if _, err := svc.Update(project.ID, stranger.ID, ProjectInput{Title: "改名"}); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound on update, got %v", err)
	}
	if err := svc.Delete(project.ID, stranger.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound on delete, got %v", err)
	}

	if _, err := svc.Get(project.ID, owner.ID); err != nil {
		t.Fatalf("owner Get returned error: %v", err)
	}
}

func TestUpdateProjectStatus(t *testing.T) {
	cleanup := setupProjectTestDB(t)
	defer cleanup()

	owner := seedUser(t, 0, 100)
	svc := NewProjectService(db.DB)

	project, err := svc.Create(owner.ID, ProjectInput{Title: "状态流转"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	updated, err := svc.UpdateStatus(project.ID, owner.ID, "in_progress")
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if updated.Status != db.ProjectStatusInProgress {
		t.Fatalf("expected status IN_PROGRESS, got %s", updated.Status)
	}

	if _, err := svc.UpdateStatus(project.ID, owner.ID, "LAUNCHED"); !errors.Is(err, ErrProjectInvalidStatus) {
		t.Fatalf("expected ErrProjectInvalidStatus, got %v", err)
	}
}

func TestJoinByInviteCode(t *testing.T) {
	cleanup := setupProjectTestDB(t)
	defer cleanup()

	owner := seedUser(t, 0, 100)
	joiner := seedUser(t, 0, 100)
	third := seedUser(t, 0, 100)
	svc := NewProjectService(db.DB)

	project, err := svc.Create(owner.ID, ProjectInput{Title: "协作项目", OpenForCollaboration: true, MaxTeamSize: 2})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	joined, err := svc.JoinByInviteCode(joiner.ID, project.InviteCode)
	if err != nil {
		t.Fatalf("JoinByInviteCode returned error: %v", err)
	}
	if joined.CurrentTeamSize != 2 {
		t.Fatalf("expected team size 2, got %d", joined.CurrentTeamSize)
	}

	if _, err := svc.JoinByInviteCode(joiner.ID, project.InviteCode); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	if _, err := svc.JoinByInviteCode(third.ID, project.InviteCode); !errors.Is(err, ErrTeamFull) {
		t.Fatalf("expected ErrTeamFull, got %v", err)
	}

	if _, err := svc.JoinByInviteCode(third.ID, "no-such-code"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestRemoveMemberUnassignsIncompleteTasks(t *testing.T) {
	cleanup := setupProjectTestDB(t)
	defer cleanup()

	owner := seedUser(t, 0, 100)
	member := seedUser(t, 0, 100)
	svc := NewProjectService(db.DB)

	project, err := svc.Create(owner.ID, ProjectInput{Title: "协作项目", OpenForCollaboration: true, MaxTeamSize: 3})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.JoinByInviteCode(member.ID, project.InviteCode); err != nil {
		t.Fatalf("JoinByInviteCode returned error: %v", err)
	}

	pending, err := svc.CreateTask(project.ID, owner.ID, TaskInput{Title: "剪辑第一期", AssigneeID: &member.ID})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}
	finished, err := svc.CreateTask(project.ID, owner.ID, TaskInput{Title: "确定选题", AssigneeID: &member.ID})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}
	if _, err := svc.CompleteTask(project.ID, finished.ID, owner.ID); err != nil {
		t.Fatalf("CompleteTask returned error: %v", err)
	}

	if err := svc.RemoveMember(project.ID, owner.ID, member.ID); err != nil {
		t.Fatalf("RemoveMember returned error: %v", err)
	}

	var reloaded db.Project
	if err := db.DB.First(&reloaded, project.ID).Error; err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	if reloaded.CurrentTeamSize != 1 {
		t.Fatalf("expected team size back to 1, got %d", reloaded.CurrentTeamSize)
	}

	// 未完成任务取消指派，已完成任务保留原指派人
	var pendingTask, finishedTask db.Task
	if err := db.DB.First(&pendingTask, pending.ID).Error; err != nil {
		t.Fatalf("failed to reload task: %v", err)
	}
	if pendingTask.AssigneeID != nil {
		t.Fatalf("expected incomplete task to be unassigned, got assignee %d", *pendingTask.AssigneeID)
	}
	if err := db.DB.First(&finishedTask, finished.ID).Error; err != nil {
		t.Fatalf("failed to reload task: %v", err)
	}
	if finishedTask.AssigneeID == nil || *finishedTask.AssigneeID != member.ID {
		t.Fatal("expected completed task to keep its assignee")
	}

	if err := svc.RemoveMember(project.ID, owner.ID, member.ID); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound on repeat removal, got %v", err)
	}
	if err := svc.RemoveMember(project.ID, owner.ID, owner.ID); !errors.Is(err, ErrOwnerCannotLeave) {
		t.Fatalf("expected ErrOwnerCannotLeave, got %v", err)
	}
}

func TestRejoinAfterRemoval(t *testing.T) {
	cleanup := setupProjectTestDB(t)
	defer cleanup()

	owner := seedUser(t, 0, 100)
	member := seedUser(t, 0, 100)
	svc := NewProjectService(db.DB)

	project, err := svc.Create(owner.ID, ProjectInput{Title: "协作项目", OpenForCollaboration: true, MaxTeamSize: 3})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.JoinByInviteCode(member.ID, project.InviteCode); err != nil {
		t.Fatalf("JoinByInviteCode returned error: %v", err)
	}
	if err := svc.RemoveMember(project.ID, owner.ID, member.ID); err != nil {
		t.Fatalf("RemoveMember returned error: %v", err)
	}

	// 退出后可以凭邀请码再次加入
	rejoined, err := svc.JoinByInviteCode(member.ID, project.InviteCode)
	if err != nil {
		t.Fatalf("rejoin after removal returned error: %v", err)
	}
	if rejoined.CurrentTeamSize != 2 {
		t.Fatalf("expected team size 2 after rejoin, got %d", rejoined.CurrentTeamSize)
	}

	var memberships int64
	if err := db.DB.Model(&db.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", project.ID, member.ID).
		Count(&memberships).Error; err != nil {
		t.Fatalf("failed to count memberships: %v", err)
	}
	if memberships != 1 {
		t.Fatalf("expected a single membership row after rejoin, got %d", memberships)
	}
}

func TestCreateCheckInRefreshesHealth(t *testing.T) {
	cleanup := setupProjectTestDB(t)
	defer cleanup()

	owner := seedUser(t, 0, 100)
	svc := NewProjectService(db.DB)

	project, err := svc.Create(owner.ID, ProjectInput{Title: "打卡项目"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.CreateCheckIn(CheckInInput{ProjectID: project.ID, UserID: owner.ID, MoodRating: 0}); !errors.Is(err, ErrInvalidMoodRating) {
		t.Fatalf("expected ErrInvalidMoodRating, got %v", err)
	}

	result, err := svc.CreateCheckIn(CheckInInput{
		ProjectID:   project.ID,
		UserID:      owner.ID,
		HoursLogged: 1.5,
		MoodRating:  4,
		Progress:    "完成了第一次采访",
	})
	if err != nil {
		t.Fatalf("CreateCheckIn returned error: %v", err)
	}

	// 基础 50 + 当日打卡 30，无里程碑与任务
	if result.HealthScore != 80 {
		t.Fatalf("expected health score 80, got %d", result.HealthScore)
	}
	if result.XPAward == nil || result.XPAward.Amount != 10 {
		t.Fatalf("expected 10 xp for check-in, got %+v", result.XPAward)
	}
	if !containsCode(result.NewAchievements, db.AchievementFirstCheckIn) {
		t.Fatalf("expected first_check_in achievement, got %v", result.NewAchievements)
	}

	var reloaded db.Project
	if err := db.DB.First(&reloaded, project.ID).Error; err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	if reloaded.HealthScore != 80 {
		t.Fatalf("expected cached health score 80, got %d", reloaded.HealthScore)
	}
}

func TestMilestoneAndTaskFlow(t *testing.T) {
	cleanup := setupProjectTestDB(t)
	defer cleanup()

	owner := seedUser(t, 0, 100)
	svc := NewProjectService(db.DB)

	project, err := svc.Create(owner.ID, ProjectInput{Title: "里程碑项目"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	milestone, err := svc.CreateMilestone(project.ID, owner.ID, MilestoneInput{Title: "完成初稿", OrderIndex: 1})
	if err != nil {
		t.Fatalf("CreateMilestone returned error: %v", err)
	}
	if milestone.Status != db.MilestoneStatusNotStarted {
		t.Fatalf("expected NOT_STARTED, got %s", milestone.Status)
	}

	updated, err := svc.UpdateMilestoneStatus(project.ID, milestone.ID, owner.ID, "completed")
	if err != nil {
		t.Fatalf("UpdateMilestoneStatus returned error: %v", err)
	}
	if updated.Status != db.MilestoneStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", updated.Status)
	}

	task, err := svc.CreateTask(project.ID, owner.ID, TaskInput{Title: "写大纲", MilestoneID: &milestone.ID})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}

	done, err := svc.CompleteTask(project.ID, task.ID, owner.ID)
	if err != nil {
		t.Fatalf("CompleteTask returned error: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil {
		t.Fatal("expected task to be completed with timestamp")
	}

	// 重复完成为幂等空操作
	again, err := svc.CompleteTask(project.ID, task.ID, owner.ID)
	if err != nil {
		t.Fatalf("repeat CompleteTask returned error: %v", err)
	}
	if !again.Completed {
		t.Fatal("expected task to stay completed")
	}

	// 里程碑与任务全部完成后健康分拉满
	score, err := svc.RefreshHealthScore(project.ID)
	if err != nil {
		t.Fatalf("RefreshHealthScore returned error: %v", err)
	}
	if score != 100 {
		t.Fatalf("expected health score 100, got %d", score)
	}
}
