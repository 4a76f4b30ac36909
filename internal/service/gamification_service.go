package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrUserNotFound 在指定用户不存在时返回
	ErrUserNotFound = errors.New("user not found")
	// ErrAchievementNotFound 在成就代号未定义时返回
	ErrAchievementNotFound = errors.New("achievement not found")
	// ErrInsufficientCredits 在积分余额不足以完成扣减时返回
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// GamificationService 维护 XP、等级、连胜与成就
// 计数器更新一律走存储层原子增减，流水行与计数器在同一事务内落库
type GamificationService struct {
	db *gorm.DB
}

// XPAwardResult 描述一次 XP 发放的结果
type XPAwardResult struct {
	Amount      int
	TotalXP     int
	LevelBefore int
	LevelAfter  int
	LeveledUp   bool
}

// GamificationStats 汇总用户的游戏化状态
type GamificationStats struct {
	XP             int
	Level          int
	XPForNextLevel int
	LevelProgress  float64
	CurrentStreak  int
	LongestStreak  int
	Credits        int
	Achievements   []db.UserAchievement
}

// NewGamificationService 构造 GamificationService
func NewGamificationService(gdb *gorm.DB) *GamificationService {
	return &GamificationService{db: gdb}
}

// LevelForXP 按累计 XP 推导等级：level = floor(sqrt(xp/100)) + 1。
// 0 XP 为 1 级，100 XP 升 2 级，400 XP 升 3 级，900 XP 升 4 级。
// 该函数为纯函数且随 XP 单调不减。
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}

// XPForLevel 返回达到指定等级所需的累计 XP：100*(level-1)^2。
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return 100 * n * n
}

// LevelProgress 返回当前等级区间内的完成比例，范围 [0,1)。
func LevelProgress(xp int) float64 {
	level := LevelForXP(xp)
	floor := XPForLevel(level)
	ceil := XPForLevel(level + 1)
	if ceil <= floor {
		return 0
	}
	return float64(xp-floor) / float64(ceil-floor)
}

// AwardXP 原子累加用户 XP，重算等级并写入流水。
// amount 非正时直接返回当前状态，不产生流水。
func (s *GamificationService) AwardXP(userID uint, amount int, reason string) (*XPAwardResult, error) {
	var result *XPAwardResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = awardXPTx(tx, userID, amount, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// awardXPTx 在调用方事务内执行 XP 发放，供需要合并写入的路径复用。
func awardXPTx(tx *gorm.DB, userID uint, amount int, reason string) (*XPAwardResult, error) {
	var user db.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	levelBefore := LevelForXP(user.XP)

	if amount <= 0 {
		return &XPAwardResult{TotalXP: user.XP, LevelBefore: levelBefore, LevelAfter: levelBefore}, nil
	}

	if err := tx.Model(&db.User{}).Where("id = ?", userID).
		UpdateColumn("xp", gorm.Expr("xp + ?", amount)).Error; err != nil {
		return nil, fmt.Errorf("increment xp: %w", err)
	}

	if err := tx.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}

	levelAfter := LevelForXP(user.XP)
	if levelAfter != user.Level {
		if err := tx.Model(&db.User{}).Where("id = ?", userID).
			UpdateColumn("level", levelAfter).Error; err != nil {
			return nil, fmt.Errorf("update level: %w", err)
		}
	}

	entry := db.XPTransaction{UserID: userID, Amount: amount, Reason: reason}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("record xp transaction: %w", err)
	}

	return &XPAwardResult{
		Amount:      amount,
		TotalXP:     user.XP,
		LevelBefore: levelBefore,
		LevelAfter:  levelAfter,
		LeveledUp:   levelAfter > levelBefore,
	}, nil
}

// SpendCredits 原子扣减积分，余额不足时返回 ErrInsufficientCredits。
// 条件更新让余额检查和扣减在存储层一步完成，并发下不会透支。
func (s *GamificationService) SpendCredits(userID uint, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&db.User{}).
			Where("id = ? AND credits >= ?", userID, amount).
			UpdateColumn("credits", gorm.Expr("credits - ?", amount))
		if update.Error != nil {
			return fmt.Errorf("deduct credits: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&db.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return fmt.Errorf("check user: %w", err)
			}
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientCredits
		}

		entry := db.CreditTransaction{UserID: userID, Amount: -amount, Reason: reason}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record credit transaction: %w", err)
		}
		return nil
	})
}

// RefundCredits 归还积分，用于外部 AI 调用失败后的回滚。
func (s *GamificationService) RefundCredits(userID uint, amount int, reason string) error {
	if amount <= 0 {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.User{}).Where("id = ?", userID).
			UpdateColumn("credits", gorm.Expr("credits + ?", amount)).Error; err != nil {
			return fmt.Errorf("refund credits: %w", err)
		}
		entry := db.CreditTransaction{UserID: userID, Amount: amount, Reason: reason}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record credit transaction: %w", err)
		}
		return nil
	})
}

// UpdateStreak 在一次有效的当日行为后推进连胜：
// 上次活跃为昨天则 +1，同一天为幂等空操作，否则重置为 1。
// LongestStreak 始终取历史最大值。
// 判定与写入合并为一条条件 UPDATE，与其他计数器一样在存储层原子完成；
// last_active_date 为 NULL 时两个比较均不成立，落入重置分支。
// max 是 sqlite 的双参标量函数。
func (s *GamificationService) UpdateStreak(userID uint, now time.Time) error {
	today := normalizeToDate(now)
	yesterday := today.AddDate(0, 0, -1)

	const nextStreak = "CASE" +
		" WHEN last_active_date >= ? THEN current_streak" +
		" WHEN last_active_date >= ? THEN current_streak + 1" +
		" ELSE 1 END"

	update := s.db.Model(&db.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"current_streak":   gorm.Expr(nextStreak, today, yesterday),
		"longest_streak":   gorm.Expr("max(longest_streak, "+nextStreak+")", today, yesterday),
		"last_active_date": today,
	})
	if update.Error != nil {
		return fmt.Errorf("update streak: %w", update.Error)
	}
	if update.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UnlockAchievement 按代号解锁成就。幂等：已解锁时为空操作，不会重复发 XP。
func (s *GamificationService) UnlockAchievement(userID uint, code string) (bool, error) {
	var unlocked bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		unlocked, err = unlockAchievementTx(tx, userID, code)
		return err
	})
	return unlocked, err
}

func unlockAchievementTx(tx *gorm.DB, userID uint, code string) (bool, error) {
	var def db.AchievementDefinition
	if err := tx.Where("code = ?", code).First(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrAchievementNotFound
		}
		return false, fmt.Errorf("load achievement: %w", err)
	}

	record := db.UserAchievement{UserID: userID, AchievementID: def.ID, UnlockedAt: time.Now()}
	insert := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoNothing: true,
	}).Create(&record)
	if insert.Error != nil {
		return false, fmt.Errorf("unlock achievement: %w", insert.Error)
	}

	// RowsAffected 为 0 表示此前已解锁，跳过奖励发放
	if insert.RowsAffected == 0 {
		return false, nil
	}

	if def.XPReward > 0 {
		if _, err := awardXPTx(tx, userID, def.XPReward, "achievement:"+def.Code); err != nil {
			return false, err
		}
	}

	return true, nil
}

// CheckAchievements 对照当前状态评估所有成就条件，解锁新满足的项。
// 所有判定均为只读统计，可在任意相关写操作之后安全调用。
func (s *GamificationService) CheckAchievements(userID uint) ([]string, error) {
	var newlyUnlocked []string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		satisfied, err := satisfiedAchievements(tx, userID)
		if err != nil {
			return err
		}

		for _, code := range satisfied {
			unlocked, err := unlockAchievementTx(tx, userID, code)
			if err != nil {
				return err
			}
			if unlocked {
				newlyUnlocked = append(newlyUnlocked, code)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return newlyUnlocked, nil
}

func satisfiedAchievements(tx *gorm.DB, userID uint) ([]string, error) {
	var codes []string

	var completions int64
	if err := tx.Model(&db.ActivityCompletion{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Count(&completions).Error; err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	if completions >= 1 {
		codes = append(codes, db.AchievementFirstActivity)
	}

	completedModule, err := hasCompletedModule(tx, userID)
	if err != nil {
		return nil, err
	}
	if completedModule {
		codes = append(codes, db.AchievementModuleComplete)
	}

	var projects int64
	if err := tx.Model(&db.Project{}).Where("user_id = ?", userID).Count(&projects).Error; err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	if projects >= 1 {
		codes = append(codes, db.AchievementFirstProject)
	}
	if projects >= 5 {
		codes = append(codes, db.AchievementFiveProjects)
	}

	var checkIns int64
	if err := tx.Model(&db.ProjectCheckIn{}).Where("user_id = ?", userID).Count(&checkIns).Error; err != nil {
		return nil, fmt.Errorf("count check-ins: %w", err)
	}
	if checkIns >= 1 {
		codes = append(codes, db.AchievementFirstCheckIn)
	}

	var user db.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.CurrentStreak >= 7 || user.LongestStreak >= 7 {
		codes = append(codes, db.AchievementStreakWeek)
	}

	var memberships int64
	if err := tx.Model(&db.ProjectMember{}).
		Where("user_id = ? AND role <> ?", userID, "owner").
		Count(&memberships).Error; err != nil {
		return nil, fmt.Errorf("count memberships: %w", err)
	}
	if memberships >= 1 {
		codes = append(codes, db.AchievementCollaborator)
	}

	return codes, nil
}

func hasCompletedModule(tx *gorm.DB, userID uint) (bool, error) {
	var modules []db.Module
	if err := tx.Find(&modules).Error; err != nil {
		return false, fmt.Errorf("list modules: %w", err)
	}

	progress := NewProgressService(tx)
	for _, module := range modules {
		percent, err := progress.ModuleProgress(userID, module.ID)
		if err != nil {
			return false, err
		}
		if percent == 100 {
			return true, nil
		}
	}
	return false, nil
}

// Stats 返回用户的游戏化状态汇总
func (s *GamificationService) Stats(userID uint) (*GamificationStats, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	var achievements []db.UserAchievement
	if err := s.db.Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&achievements).Error; err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}

	level := LevelForXP(user.XP)
	return &GamificationStats{
		XP:             user.XP,
		Level:          level,
		XPForNextLevel: XPForLevel(level + 1),
		LevelProgress:  LevelProgress(user.XP),
		CurrentStreak:  user.CurrentStreak,
		LongestStreak:  user.LongestStreak,
		Credits:        user.Credits,
		Achievements:   achievements,
	}, nil
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
