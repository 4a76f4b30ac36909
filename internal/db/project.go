package db

import (
	"time"

	"gorm.io/gorm"
)

// 项目生命周期状态
const (
	ProjectStatusIdeation   = "IDEATION"
	ProjectStatusPlanning   = "PLANNING"
	ProjectStatusInProgress = "IN_PROGRESS"
	ProjectStatusPaused     = "PAUSED"
	ProjectStatusCompleted  = "COMPLETED"
	ProjectStatusAbandoned  = "ABANDONED"
)

// 里程碑状态
const (
	MilestoneStatusNotStarted = "NOT_STARTED"
	MilestoneStatusInProgress = "IN_PROGRESS"
	MilestoneStatusCompleted  = "COMPLETED"
)

// Project 表示学生的热情项目
// HealthScore 仅为读取时重算后的缓存，展示前必须重新计算
// CurrentTeamSize 只允许原子增减，避免并发下丢失更新
type Project struct {
	gorm.Model
	UserID               uint   `gorm:"index;not null"`
	Title                string `gorm:"not null"`
	Description          string `gorm:"type:text"`
	Category             string `gorm:"size:50"`
	Status               string `gorm:"size:20;default:IDEATION"`
	HealthScore          int    `gorm:"not null;default:50"`
	OpenForCollaboration bool   `gorm:"not null;default:false"`
	MaxTeamSize          int    `gorm:"not null;default:1"`
	CurrentTeamSize      int    `gorm:"not null;default:1"`
	InviteCode           string `gorm:"size:64;uniqueIndex"`
	RequiredSkills       string `gorm:"type:text"`
	WorkStyle            string `gorm:"size:30"`
	CoverURL             string
}

// ProjectMember 记录项目成员关系，Owner 在创建项目时写入
type ProjectMember struct {
	gorm.Model
	ProjectID uint    `gorm:"index;index:idx_project_member_unique,unique;not null"`
	Project   Project `gorm:"constraint:OnDelete:CASCADE"`
	UserID    uint    `gorm:"index:idx_project_member_unique,unique;not null"`
	Role      string  `gorm:"size:20;default:member"`
	JoinedAt  time.Time
}

// TableName 重写确保唯一索引作用到 project_id + user_id
func (ProjectMember) TableName() string {
	return "project_members"
}

// Milestone 是项目中的有序里程碑
type Milestone struct {
	gorm.Model
	ProjectID  uint    `gorm:"index;not null"`
	Project    Project `gorm:"constraint:OnDelete:CASCADE"`
	Title      string  `gorm:"not null"`
	OrderIndex int     `gorm:"not null"`
	Status     string  `gorm:"size:20;default:NOT_STARTED"`
	DueDate    *time.Time
}

// Task 是项目中的待办事项，可选挂在某个里程碑下
type Task struct {
	gorm.Model
	ProjectID   uint    `gorm:"index;not null"`
	Project     Project `gorm:"constraint:OnDelete:CASCADE"`
	MilestoneID *uint   `gorm:"index"`
	Title       string  `gorm:"not null"`
	Completed   bool    `gorm:"not null;default:false"`
	AssigneeID  *uint   `gorm:"index"`
	CompletedAt *time.Time
}

// ProjectCheckIn 记录一次项目进展打卡
type ProjectCheckIn struct {
	gorm.Model
	ProjectID   uint    `gorm:"index;not null"`
	Project     Project `gorm:"constraint:OnDelete:CASCADE"`
	UserID      uint    `gorm:"index;not null"`
	HoursLogged float64
	MoodRating  int    `gorm:"not null;default:3"`
	Progress    string `gorm:"type:text"`
	Blockers    string `gorm:"type:text"`
}

// TableName 保持与其他打卡类表一致的命名
func (ProjectCheckIn) TableName() string {
	return "project_check_ins"
}
