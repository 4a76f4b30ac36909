package db

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// 活动类型枚举
const (
	ActivityTypeInteractive = "INTERACTIVE"
	ActivityTypeReflection  = "REFLECTION"
	ActivityTypeAssessment  = "ASSESSMENT"
)

// Module 表示课程中的一个阶段，按 OrderIndex 顺序解锁
// Deliverable 字段描述模块完成后解锁的产出物
type Module struct {
	gorm.Model
	Slug                   string `gorm:"size:100;uniqueIndex;not null"`
	Title                  string `gorm:"not null"`
	Description            string `gorm:"type:text"`
	OrderIndex             int    `gorm:"uniqueIndex;not null"`
	DeliverableTitle       string
	DeliverableDescription string `gorm:"type:text"`
	Activities             []Activity
}

// Activity 是模块内的单个练习
type Activity struct {
	gorm.Model
	ModuleID         uint   `gorm:"index;not null"`
	Slug             string `gorm:"size:100;uniqueIndex;not null"`
	Title            string `gorm:"not null"`
	Description      string `gorm:"type:text"`
	Type             string `gorm:"size:20;default:INTERACTIVE"`
	OrderIndex       int    `gorm:"not null"`
	EstimatedMinutes int
	XPReward         int `gorm:"not null;default:25"`
}

// ActivityCompletion 是完成台账中的一行
// UserID + ActivityID 采用唯一索引，保证幂等；重复完成走更新分支
type ActivityCompletion struct {
	gorm.Model
	UserID      uint     `gorm:"index;index:idx_activity_completion_unique,unique;not null"`
	ActivityID  uint     `gorm:"index:idx_activity_completion_unique,unique;not null"`
	Activity    Activity `gorm:"constraint:OnDelete:CASCADE"`
	Completed   bool     `gorm:"not null;default:true"`
	Data        string   `gorm:"type:text"`
	CompletedAt time.Time
}

// TableName 重写确保唯一索引作用到 user_id + activity_id
func (ActivityCompletion) TableName() string {
	return "activity_completions"
}

// SeedDiscoveryCurriculum 写入自我探索阶段的初始课程数据。
// 已存在同名 slug 时跳过，可重复执行。
func SeedDiscoveryCurriculum(gdb *gorm.DB) error {
	modules := []Module{
		{
			Slug:                   "self-discovery",
			Title:                  "自我探索",
			Description:            "认识自己的价值观、优势与兴趣",
			OrderIndex:             1,
			DeliverableTitle:       "个人画像报告",
			DeliverableDescription: "汇总价值观排序、优势测评与反思记录的个人画像",
			Activities: []Activity{
				{Slug: "values-card-sort", Title: "价值观卡片排序", Type: ActivityTypeInteractive, OrderIndex: 1, EstimatedMinutes: 20},
				{Slug: "strengths-discovery", Title: "优势探索测评", Type: ActivityTypeAssessment, OrderIndex: 2, EstimatedMinutes: 30},
				{Slug: "reflection-prompts", Title: "引导式反思", Type: ActivityTypeReflection, OrderIndex: 3, EstimatedMinutes: 15},
			},
		},
		{
			Slug:                   "career-exploration",
			Title:                  "职业探索",
			Description:            "基于个人画像探索可能的职业方向",
			OrderIndex:             2,
			DeliverableTitle:       "职业方向清单",
			DeliverableDescription: "结合兴趣与优势筛选出的候选职业方向",
			Activities: []Activity{
				{Slug: "career-interest-map", Title: "职业兴趣图谱", Type: ActivityTypeInteractive, OrderIndex: 1, EstimatedMinutes: 25},
				{Slug: "role-model-research", Title: "榜样人物调研", Type: ActivityTypeReflection, OrderIndex: 2, EstimatedMinutes: 40},
			},
		},
	}

	for _, module := range modules {
		var existing Module
		err := gdb.Where("slug = ?", module.Slug).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := gdb.Create(&module).Error; err != nil {
			return err
		}
	}

	return nil
}
