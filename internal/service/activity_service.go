package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrActivityNotFound 在指定活动不存在时返回
	ErrActivityNotFound = errors.New("activity not found")
	// ErrModuleLocked 在活动所属模块尚未解锁时返回
	ErrModuleLocked = errors.New("module locked")
	// ErrCompletionNotFound 在完成记录不存在时返回
	ErrCompletionNotFound = errors.New("completion not found")
)

// ActivityService 负责活动完成台账的写入与读取
type ActivityService struct {
	db           *gorm.DB
	progress     *ProgressService
	gamification *GamificationService
}

// CompleteActivityInput 定义完成活动时的输入对象
type CompleteActivityInput struct {
	UserID     uint
	ActivityID uint
	Data       string
}

// CompleteActivityResult 汇总完成活动后的派生状态
type CompleteActivityResult struct {
	Completion          db.ActivityCompletion
	FirstCompletion     bool
	XPAward             *XPAwardResult
	ModuleProgress      int
	DeliverableUnlocked bool
	NewAchievements     []string
}

// NewActivityService 构造 ActivityService
func NewActivityService(gdb *gorm.DB) *ActivityService {
	return &ActivityService{
		db:           gdb,
		progress:     NewProgressService(gdb),
		gamification: NewGamificationService(gdb),
	}
}

// GetActivity 根据 ID 获取活动
func (s *ActivityService) GetActivity(id uint) (*db.Activity, error) {
	var activity db.Activity
	if err := s.db.First(&activity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &activity, nil
}

// GetCompletion 返回用户对指定活动的完成记录
func (s *ActivityService) GetCompletion(userID, activityID uint) (*db.ActivityCompletion, error) {
	var completion db.ActivityCompletion
	if err := s.db.Where("user_id = ? AND activity_id = ?", userID, activityID).
		First(&completion).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompletionNotFound
		}
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return &completion, nil
}

// Complete 处理幂等的活动完成：首次完成写入台账并发放 XP，
// 重复完成仅更新 data 载荷，不重复奖励。
// 完成后推进连胜并触发成就巡检。
func (s *ActivityService) Complete(input CompleteActivityInput) (*CompleteActivityResult, error) {
	activity, err := s.GetActivity(input.ActivityID)
	if err != nil {
		return nil, err
	}

	var module db.Module
	if err := s.db.First(&module, activity.ModuleID).Error; err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}

	unlocked, err := s.progress.ModuleUnlocked(input.UserID, module)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, ErrModuleLocked
	}

	result := &CompleteActivityResult{}
	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&db.ActivityCompletion{}).
			Where("user_id = ? AND activity_id = ?", input.UserID, input.ActivityID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check completion: %w", err)
		}
		result.FirstCompletion = existing == 0

		record := db.ActivityCompletion{
			UserID:      input.UserID,
			ActivityID:  input.ActivityID,
			Completed:   true,
			Data:        strings.TrimSpace(input.Data),
			CompletedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "activity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "completed", "completed_at", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("upsert completion: %w", err)
		}

		if err := tx.Where("user_id = ? AND activity_id = ?", input.UserID, input.ActivityID).
			First(&result.Completion).Error; err != nil {
			return fmt.Errorf("reload completion: %w", err)
		}

		if result.FirstCompletion {
			award, err := awardXPTx(tx, input.UserID, activity.XPReward, "activity:"+activity.Slug)
			if err != nil {
				return err
			}
			result.XPAward = award
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.gamification.UpdateStreak(input.UserID, now); err != nil {
		return nil, err
	}

	newAchievements, err := s.gamification.CheckAchievements(input.UserID)
	if err != nil {
		return nil, err
	}
	result.NewAchievements = newAchievements

	progress, err := s.progress.ModuleProgress(input.UserID, module.ID)
	if err != nil {
		return nil, err
	}
	result.ModuleProgress = progress
	result.DeliverableUnlocked = progress == 100

	return result, nil
}
