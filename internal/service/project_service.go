package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrProjectNotFound 在项目不存在或调用者无权访问时返回
	// 故意不区分两种情况，避免泄露他人项目的存在性
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectInvalidStatus 在目标状态不合法时返回
	ErrProjectInvalidStatus = errors.New("invalid project status")
	// ErrMilestoneNotFound 在里程碑不存在时返回
	ErrMilestoneNotFound = errors.New("milestone not found")
	// ErrTaskNotFound 在任务不存在时返回
	ErrTaskNotFound = errors.New("task not found")
	// ErrMemberNotFound 在成员关系不存在时返回
	ErrMemberNotFound = errors.New("member not found")
	// ErrTeamFull 在项目成员已满时返回
	ErrTeamFull = errors.New("team is full")
	// ErrAlreadyMember 在重复加入项目时返回
	ErrAlreadyMember = errors.New("already a member")
	// ErrInvalidMoodRating 在打卡心情评分超出 1-5 时返回
	ErrInvalidMoodRating = errors.New("mood rating out of range")
	// ErrOwnerCannotLeave 在项目所有者尝试退出自己的项目时返回
	ErrOwnerCannotLeave = errors.New("owner cannot leave project")
)

var validProjectStatuses = map[string]bool{
	db.ProjectStatusIdeation:   true,
	db.ProjectStatusPlanning:   true,
	db.ProjectStatusInProgress: true,
	db.ProjectStatusPaused:     true,
	db.ProjectStatusCompleted:  true,
	db.ProjectStatusAbandoned:  true,
}

// ProjectService 负责热情项目及其里程碑、任务、打卡与成员的维护
type ProjectService struct {
	db           *gorm.DB
	gamification *GamificationService
}

// ProjectInput 定义创建/更新项目时可配置字段
type ProjectInput struct {
	Title                string
	Description          string
	Category             string
	OpenForCollaboration bool
	MaxTeamSize          int
	RequiredSkills       []string
	WorkStyle            string
}

// MilestoneInput 定义创建/更新里程碑的字段
type MilestoneInput struct {
	Title      string
	OrderIndex int
	DueDate    *time.Time
}

// TaskInput 定义创建/更新任务的字段
type TaskInput struct {
	Title       string
	MilestoneID *uint
	AssigneeID  *uint
}

// CheckInInput 定义一次项目打卡
type CheckInInput struct {
	ProjectID   uint
	UserID      uint
	HoursLogged float64
	MoodRating  int
	Progress    string
	Blockers    string
}

// CheckInResult 汇总打卡后的派生状态
type CheckInResult struct {
	CheckIn         db.ProjectCheckIn
	HealthScore     int
	XPAward         *XPAwardResult
	NewAchievements []string
}

// NewProjectService 构造 ProjectService
func NewProjectService(gdb *gorm.DB) *ProjectService {
	return &ProjectService{db: gdb, gamification: NewGamificationService(gdb)}
}

// Create 新建项目并把创建者登记为 owner 成员
func (s *ProjectService) Create(userID uint, input ProjectInput) (*db.Project, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("project title is required")
	}

	maxTeam := input.MaxTeamSize
	if maxTeam < 1 {
		maxTeam = 1
	}

	project := db.Project{
		UserID:               userID,
		Title:                strings.TrimSpace(input.Title),
		Description:          strings.TrimSpace(input.Description),
		Category:             strings.TrimSpace(input.Category),
		Status:               db.ProjectStatusIdeation,
		HealthScore:          healthBaseScore,
		OpenForCollaboration: input.OpenForCollaboration,
		MaxTeamSize:          maxTeam,
		CurrentTeamSize:      1,
		InviteCode:           uuid.New().String(),
		RequiredSkills:       joinList(input.RequiredSkills),
		WorkStyle:            strings.TrimSpace(strings.ToLower(input.WorkStyle)),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		member := db.ProjectMember{ProjectID: project.ID, UserID: userID, Role: "owner", JoinedAt: time.Now()}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("register owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.gamification.CheckAchievements(userID); err != nil {
		return nil, err
	}

	return &project, nil
}

// getAccessible 加载用户可访问的项目（owner 或成员），其余一律视为不存在
func (s *ProjectService) getAccessible(projectID, userID uint) (*db.Project, error) {
	var project db.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}

	if project.UserID == userID {
		return &project, nil
	}

	var membership int64
	if err := s.db.Model(&db.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&membership).Error; err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if membership == 0 {
		return nil, ErrProjectNotFound
	}

	return &project, nil
}

// Get 返回项目详情，健康分在读取时重算并回写缓存
func (s *ProjectService) Get(projectID, userID uint) (*db.Project, error) {
	project, err := s.getAccessible(projectID, userID)
	if err != nil {
		return nil, err
	}

	score, err := s.RefreshHealthScore(project.ID)
	if err != nil {
		return nil, err
	}
	project.HealthScore = score

	return project, nil
}

// ListOwned 返回用户拥有或参与的全部项目
func (s *ProjectService) ListOwned(userID uint) ([]db.Project, error) {
	var projects []db.Project
	if err := s.db.
		Joins("JOIN project_members ON project_members.project_id = projects.id AND project_members.deleted_at IS NULL").
		Where("project_members.user_id = ?", userID).
		Order("projects.created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Update 更新项目基础信息，仅 owner 可操作
func (s *ProjectService) Update(projectID, userID uint, input ProjectInput) (*db.Project, error) {
	project, err := s.requireOwner(projectID, userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("project title is required")
	}

	project.Title = strings.TrimSpace(input.Title)
	project.Description = strings.TrimSpace(input.Description)
	project.Category = strings.TrimSpace(input.Category)
	project.OpenForCollaboration = input.OpenForCollaboration
	if input.MaxTeamSize >= project.CurrentTeamSize && input.MaxTeamSize >= 1 {
		project.MaxTeamSize = input.MaxTeamSize
	}
	project.RequiredSkills = joinList(input.RequiredSkills)
	project.WorkStyle = strings.TrimSpace(strings.ToLower(input.WorkStyle))

	if err := s.db.Save(project).Error; err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

// UpdateStatus 推进项目生命周期状态
func (s *ProjectService) UpdateStatus(projectID, userID uint, status string) (*db.Project, error) {
	project, err := s.requireOwner(projectID, userID)
	if err != nil {
		return nil, err
	}

	status = strings.ToUpper(strings.TrimSpace(status))
	if !validProjectStatuses[status] {
		return nil, ErrProjectInvalidStatus
	}

	if err := s.db.Model(project).UpdateColumn("status", status).Error; err != nil {
		return nil, fmt.Errorf("update project status: %w", err)
	}
	project.Status = status
	return project, nil
}

// Delete 删除项目，仅 owner 可操作
func (s *ProjectService) Delete(projectID, userID uint) error {
	project, err := s.requireOwner(projectID, userID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(project).Error; err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *ProjectService) requireOwner(projectID, userID uint) (*db.Project, error) {
	var project db.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project.UserID != userID {
		// 非 owner 访问按不存在处理，不暴露 403
		return nil, ErrProjectNotFound
	}
	return &project, nil
}

// RefreshHealthScore 从台账重算健康分并回写项目行
func (s *ProjectService) RefreshHealthScore(projectID uint) (int, error) {
	input, err := s.healthInput(projectID)
	if err != nil {
		return 0, err
	}

	score := computeHealthScore(*input, time.Now())

	if err := s.db.Model(&db.Project{}).Where("id = ?", projectID).
		UpdateColumn("health_score", score).Error; err != nil {
		return 0, fmt.Errorf("cache health score: %w", err)
	}

	return score, nil
}

func (s *ProjectService) healthInput(projectID uint) (*healthScoreInput, error) {
	input := healthScoreInput{}

	var lastCheckIn db.ProjectCheckIn
	err := s.db.Where("project_id = ?", projectID).
		Order("created_at DESC").
		First(&lastCheckIn).Error
	if err == nil {
		createdAt := lastCheckIn.CreatedAt
		input.LastCheckInAt = &createdAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load last check-in: %w", err)
	}

	var totalMilestones, completedMilestones int64
	if err := s.db.Model(&db.Milestone{}).Where("project_id = ?", projectID).
		Count(&totalMilestones).Error; err != nil {
		return nil, fmt.Errorf("count milestones: %w", err)
	}
	if err := s.db.Model(&db.Milestone{}).
		Where("project_id = ? AND status = ?", projectID, db.MilestoneStatusCompleted).
		Count(&completedMilestones).Error; err != nil {
		return nil, fmt.Errorf("count completed milestones: %w", err)
	}

	var totalTasks, completedTasks int64
	if err := s.db.Model(&db.Task{}).Where("project_id = ?", projectID).
		Count(&totalTasks).Error; err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	if err := s.db.Model(&db.Task{}).
		Where("project_id = ? AND completed = ?", projectID, true).
		Count(&completedTasks).Error; err != nil {
		return nil, fmt.Errorf("count completed tasks: %w", err)
	}

	input.TotalMilestones = int(totalMilestones)
	input.CompletedMilestones = int(completedMilestones)
	input.TotalTasks = int(totalTasks)
	input.CompletedTasks = int(completedTasks)

	return &input, nil
}

// CreateMilestone 新增里程碑
func (s *ProjectService) CreateMilestone(projectID, userID uint, input MilestoneInput) (*db.Milestone, error) {
	if _, err := s.getAccessible(projectID, userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("milestone title is required")
	}

	milestone := db.Milestone{
		ProjectID:  projectID,
		Title:      strings.TrimSpace(input.Title),
		OrderIndex: input.OrderIndex,
		Status:     db.MilestoneStatusNotStarted,
		DueDate:    input.DueDate,
	}
	if err := s.db.Create(&milestone).Error; err != nil {
		return nil, fmt.Errorf("create milestone: %w", err)
	}
	return &milestone, nil
}

// ListMilestones 返回项目的有序里程碑
func (s *ProjectService) ListMilestones(projectID, userID uint) ([]db.Milestone, error) {
	if _, err := s.getAccessible(projectID, userID); err != nil {
		return nil, err
	}

	var milestones []db.Milestone
	if err := s.db.Where("project_id = ?", projectID).
		Order("order_index ASC").
		Find(&milestones).Error; err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return milestones, nil
}

// UpdateMilestoneStatus 推进里程碑状态
func (s *ProjectService) UpdateMilestoneStatus(projectID, milestoneID, userID uint, status string) (*db.Milestone, error) {
	if _, err := s.getAccessible(projectID, userID); err != nil {
		return nil, err
	}

	status = strings.ToUpper(strings.TrimSpace(status))
	if status != db.MilestoneStatusNotStarted && status != db.MilestoneStatusInProgress && status != db.MilestoneStatusCompleted {
		return nil, fmt.Errorf("invalid milestone status %s", status)
	}

	var milestone db.Milestone
	if err := s.db.Where("id = ? AND project_id = ?", milestoneID, projectID).
		First(&milestone).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("get milestone: %w", err)
	}

	if err := s.db.Model(&milestone).UpdateColumn("status", status).Error; err != nil {
		return nil, fmt.Errorf("update milestone: %w", err)
	}
	milestone.Status = status
	return &milestone, nil
}

// CreateTask 新增任务
func (s *ProjectService) CreateTask(projectID, userID uint, input TaskInput) (*db.Task, error) {
	if _, err := s.getAccessible(projectID, userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("task title is required")
	}

	task := db.Task{
		ProjectID:   projectID,
		MilestoneID: input.MilestoneID,
		Title:       strings.TrimSpace(input.Title),
		AssigneeID:  input.AssigneeID,
	}
	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

// ListTasks 返回项目任务
func (s *ProjectService) ListTasks(projectID, userID uint) ([]db.Task, error) {
	if _, err := s.getAccessible(projectID, userID); err != nil {
		return nil, err
	}

	var tasks []db.Task
	if err := s.db.Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CompleteTask 标记任务完成，重复完成为幂等空操作
func (s *ProjectService) CompleteTask(projectID, taskID, userID uint) (*db.Task, error) {
	if _, err := s.getAccessible(projectID, userID); err != nil {
		return nil, err
	}

	var task db.Task
	if err := s.db.Where("id = ? AND project_id = ?", taskID, projectID).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	if task.Completed {
		return &task, nil
	}

	now := time.Now()
	if err := s.db.Model(&task).Updates(map[string]interface{}{
		"completed":    true,
		"completed_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	task.Completed = true
	task.CompletedAt = &now
	return &task, nil
}

// CreateCheckIn 记录一次项目打卡并联动健康分、XP、连胜与成就
func (s *ProjectService) CreateCheckIn(input CheckInInput) (*CheckInResult, error) {
	if _, err := s.getAccessible(input.ProjectID, input.UserID); err != nil {
		return nil, err
	}
	if input.MoodRating < 1 || input.MoodRating > 5 {
		return nil, ErrInvalidMoodRating
	}

	checkIn := db.ProjectCheckIn{
		ProjectID:   input.ProjectID,
		UserID:      input.UserID,
		HoursLogged: input.HoursLogged,
		MoodRating:  input.MoodRating,
		Progress:    strings.TrimSpace(input.Progress),
		Blockers:    strings.TrimSpace(input.Blockers),
	}

	result := &CheckInResult{}
	now := time.Now()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&checkIn).Error; err != nil {
			return fmt.Errorf("create check-in: %w", err)
		}
		award, err := awardXPTx(tx, input.UserID, 10, "check_in")
		if err != nil {
			return err
		}
		result.XPAward = award
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.CheckIn = checkIn

	if err := s.gamification.UpdateStreak(input.UserID, now); err != nil {
		return nil, err
	}

	newAchievements, err := s.gamification.CheckAchievements(input.UserID)
	if err != nil {
		return nil, err
	}
	result.NewAchievements = newAchievements

	score, err := s.RefreshHealthScore(input.ProjectID)
	if err != nil {
		return nil, err
	}
	result.HealthScore = score

	return result, nil
}

// ListCheckIns 返回项目的打卡历史
func (s *ProjectService) ListCheckIns(projectID, userID uint) ([]db.ProjectCheckIn, error) {
	if _, err := s.getAccessible(projectID, userID); err != nil {
		return nil, err
	}

	var checkIns []db.ProjectCheckIn
	if err := s.db.Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&checkIns).Error; err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	return checkIns, nil
}

// JoinByInviteCode 通过邀请码加入协作项目
// 名额占用通过条件原子自增完成，并发下不会超员
func (s *ProjectService) JoinByInviteCode(userID uint, inviteCode string) (*db.Project, error) {
	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode == "" {
		return nil, ErrProjectNotFound
	}

	var project db.Project
	if err := s.db.Where("invite_code = ? AND open_for_collaboration = ?", inviteCode, true).
		First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("find project: %w", err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		member := db.ProjectMember{ProjectID: project.ID, UserID: userID, Role: "member", JoinedAt: time.Now()}
		insert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&member)
		if insert.Error != nil {
			return fmt.Errorf("join project: %w", insert.Error)
		}
		if insert.RowsAffected == 0 {
			return ErrAlreadyMember
		}

		grow := tx.Model(&db.Project{}).
			Where("id = ? AND current_team_size < max_team_size", project.ID).
			UpdateColumn("current_team_size", gorm.Expr("current_team_size + 1"))
		if grow.Error != nil {
			return fmt.Errorf("grow team: %w", grow.Error)
		}
		if grow.RowsAffected == 0 {
			return ErrTeamFull
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.gamification.CheckAchievements(userID); err != nil {
		return nil, err
	}

	if err := s.db.First(&project, project.ID).Error; err != nil {
		return nil, fmt.Errorf("reload project: %w", err)
	}
	return &project, nil
}

// RemoveMember 移除项目成员：同一事务内删除成员关系、
// 原子递减团队人数，并取消该成员名下未完成任务的指派。
// 已完成任务保留原指派人。actorID 为 owner，或成员本人退出。
func (s *ProjectService) RemoveMember(projectID, actorID, memberUserID uint) error {
	var project db.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("get project: %w", err)
	}

	if actorID != project.UserID && actorID != memberUserID {
		return ErrProjectNotFound
	}
	if memberUserID == project.UserID {
		return ErrOwnerCannotLeave
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// 物理删除：唯一索引 (project_id, user_id) 覆盖软删行，
		// 留下软删行会让退出的成员永远无法重新加入
		removal := tx.Unscoped().
			Where("project_id = ? AND user_id = ?", projectID, memberUserID).
			Delete(&db.ProjectMember{})
		if removal.Error != nil {
			return fmt.Errorf("remove member: %w", removal.Error)
		}
		if removal.RowsAffected == 0 {
			return ErrMemberNotFound
		}

		if err := tx.Model(&db.Project{}).
			Where("id = ? AND current_team_size > 1", projectID).
			UpdateColumn("current_team_size", gorm.Expr("current_team_size - 1")).Error; err != nil {
			return fmt.Errorf("shrink team: %w", err)
		}

		if err := tx.Model(&db.Task{}).
			Where("project_id = ? AND assignee_id = ? AND completed = ?", projectID, memberUserID, false).
			Update("assignee_id", nil).Error; err != nil {
			return fmt.Errorf("unassign tasks: %w", err)
		}
		return nil
	})
}

// ListMembers 返回项目成员
func (s *ProjectService) ListMembers(projectID, userID uint) ([]db.ProjectMember, error) {
	if _, err := s.getAccessible(projectID, userID); err != nil {
		return nil, err
	}

	var members []db.ProjectMember
	if err := s.db.Where("project_id = ?", projectID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func joinList(values []string) string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(strings.ToLower(value))
		if value == "" {
			continue
		}
		cleaned = append(cleaned, value)
	}
	return strings.Join(cleaned, ",")
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		cleaned = append(cleaned, part)
	}
	return cleaned
}
