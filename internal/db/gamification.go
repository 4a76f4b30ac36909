package db

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 成就代号，预定义成就由 EnsureAchievementDefinitions 维护
const (
	AchievementFirstActivity  = "first_activity"
	AchievementModuleComplete = "module_complete"
	AchievementFirstProject   = "first_project"
	AchievementFiveProjects   = "five_projects"
	AchievementFirstCheckIn   = "first_check_in"
	AchievementStreakWeek     = "streak_week"
	AchievementCollaborator   = "collaborator"
)

// AchievementDefinition 描述一个可解锁的成就及其奖励
type AchievementDefinition struct {
	gorm.Model
	Code        string `gorm:"size:50;uniqueIndex;not null"`
	Name        string `gorm:"not null"`
	Description string
	XPReward    int `gorm:"not null;default:0"`
}

// UserAchievement 记录用户解锁的成就
// UserID + AchievementID 唯一索引保证同一成就只解锁一次
type UserAchievement struct {
	gorm.Model
	UserID        uint                  `gorm:"index;index:idx_user_achievement_unique,unique;not null"`
	AchievementID uint                  `gorm:"index:idx_user_achievement_unique,unique;not null"`
	Achievement   AchievementDefinition `gorm:"constraint:OnDelete:CASCADE"`
	UnlockedAt    time.Time
}

// TableName 重写确保唯一索引作用到 user_id + achievement_id
func (UserAchievement) TableName() string {
	return "user_achievements"
}

// XPTransaction 是 XP 变动的追加式流水，与计数器更新同一事务写入
type XPTransaction struct {
	gorm.Model
	UserID uint   `gorm:"index;not null"`
	Amount int    `gorm:"not null"`
	Reason string `gorm:"size:100"`
}

// CreditTransaction 记录积分消耗与退款流水
type CreditTransaction struct {
	gorm.Model
	UserID uint   `gorm:"index;not null"`
	Amount int    `gorm:"not null"`
	Reason string `gorm:"size:100"`
}

var defaultAchievements = []AchievementDefinition{
	{Code: AchievementFirstActivity, Name: "迈出第一步", Description: "完成第一个探索活动", XPReward: 50},
	{Code: AchievementModuleComplete, Name: "阶段达成", Description: "完成一个完整模块的全部活动", XPReward: 100},
	{Code: AchievementFirstProject, Name: "项目启航", Description: "创建第一个热情项目", XPReward: 50},
	{Code: AchievementFiveProjects, Name: "多线作战", Description: "累计创建 5 个项目", XPReward: 150},
	{Code: AchievementFirstCheckIn, Name: "打卡新手", Description: "记录第一次项目进展打卡", XPReward: 30},
	{Code: AchievementStreakWeek, Name: "七日坚持", Description: "连续 7 天保持活跃", XPReward: 120},
	{Code: AchievementCollaborator, Name: "协作伙伴", Description: "加入他人的项目", XPReward: 60},
}

// EnsureAchievementDefinitions 补齐内置成就定义，slug 冲突时更新奖励配置。
func EnsureAchievementDefinitions(gdb *gorm.DB) error {
	for _, def := range defaultAchievements {
		record := def
		if err := gdb.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"name":        def.Name,
				"description": def.Description,
				"xp_reward":   def.XPReward,
				"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}
