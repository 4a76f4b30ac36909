package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/gorm"
)

// ErrModuleNotFound 在指定模块不存在时返回
var ErrModuleNotFound = errors.New("module not found")

// ProgressService 负责模块进度与解锁门槛的派生计算
// 进度永远从完成台账现算，不信任任何缓存值
type ProgressService struct {
	db *gorm.DB
}

// ModuleOverview 汇总单个模块对某用户的派生状态
type ModuleOverview struct {
	Module              db.Module
	Progress            int
	Unlocked            bool
	DeliverableUnlocked bool
	CompletedActivities int
	TotalActivities     int
}

// NewProgressService 构造 ProgressService
func NewProgressService(gdb *gorm.DB) *ProgressService {
	return &ProgressService{db: gdb}
}

// progressPercent 将完成数换算为 0-100 的整数百分比，四舍五入。
// 空模块返回 0 而不是报错。
func progressPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// ModuleProgress 返回用户在指定模块的完成百分比
func (s *ProgressService) ModuleProgress(userID, moduleID uint) (int, error) {
	completed, total, err := s.completionCounts(userID, moduleID)
	if err != nil {
		return 0, err
	}
	return progressPercent(completed, total), nil
}

func (s *ProgressService) completionCounts(userID, moduleID uint) (completed, total int, err error) {
	var totalCount int64
	if err := s.db.Model(&db.Activity{}).Where("module_id = ?", moduleID).Count(&totalCount).Error; err != nil {
		return 0, 0, fmt.Errorf("count module activities: %w", err)
	}

	var completedCount int64
	if err := s.db.Model(&db.ActivityCompletion{}).
		Joins("JOIN activities ON activities.id = activity_completions.activity_id").
		Where("activity_completions.user_id = ? AND activity_completions.completed = ? AND activities.module_id = ?", userID, true, moduleID).
		Count(&completedCount).Error; err != nil {
		return 0, 0, fmt.Errorf("count completed activities: %w", err)
	}

	return int(completedCount), int(totalCount), nil
}

// ModuleUnlocked 判断模块对用户是否解锁。
// OrderIndex 为 1 的模块永远解锁；之后的模块要求前一模块进度达到 100。
// 前一模块记录缺失时按解锁处理（沿用既有产品行为，是否应阻塞仍是待定问题）。
func (s *ProgressService) ModuleUnlocked(userID uint, module db.Module) (bool, error) {
	if module.OrderIndex <= 1 {
		return true, nil
	}

	var previous db.Module
	err := s.db.Where("order_index = ?", module.OrderIndex-1).First(&previous).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("load previous module: %w", err)
	}

	progress, err := s.ModuleProgress(userID, previous.ID)
	if err != nil {
		return false, err
	}

	return progress == 100, nil
}

// GetModule 返回带活动列表的单个模块
func (s *ProgressService) GetModule(moduleID uint) (*db.Module, error) {
	var module db.Module
	if err := s.db.Preload("Activities", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("order_index ASC")
	}).First(&module, moduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("get module: %w", err)
	}
	return &module, nil
}

// Overview 返回用户视角下的模块详情：进度、解锁状态与产出物状态
func (s *ProgressService) Overview(userID uint, module db.Module) (*ModuleOverview, error) {
	completed, total, err := s.completionCounts(userID, module.ID)
	if err != nil {
		return nil, err
	}

	progress := progressPercent(completed, total)

	unlocked, err := s.ModuleUnlocked(userID, module)
	if err != nil {
		return nil, err
	}

	return &ModuleOverview{
		Module:              module,
		Progress:            progress,
		Unlocked:            unlocked,
		DeliverableUnlocked: progress == 100,
		CompletedActivities: completed,
		TotalActivities:     total,
	}, nil
}

// ListOverviews 按 OrderIndex 返回全部模块的用户视角概览
func (s *ProgressService) ListOverviews(userID uint) ([]ModuleOverview, error) {
	var modules []db.Module
	if err := s.db.Preload("Activities", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("order_index ASC")
	}).Order("order_index ASC").Find(&modules).Error; err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}

	overviews := make([]ModuleOverview, 0, len(modules))
	for _, module := range modules {
		overview, err := s.Overview(userID, module)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, *overview)
	}

	return overviews, nil
}
