package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/service"
)

// GetGamificationStats 返回当前用户的 XP、等级、连胜与成就汇总
func (a *API) GetGamificationStats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	stats, err := a.gamification.Stats(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusUnauthorized, "请先登录")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取游戏化数据失败")
		return
	}

	achievements := make([]gin.H, 0, len(stats.Achievements))
	for _, achievement := range stats.Achievements {
		achievements = append(achievements, gin.H{
			"code":        achievement.Achievement.Code,
			"name":        achievement.Achievement.Name,
			"description": achievement.Achievement.Description,
			"xp_awarded":  achievement.Achievement.XPReward,
			"unlocked_at": achievement.UnlockedAt.Format(dateTimeFormat),
		})
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"xp":                stats.XP,
		"level":             stats.Level,
		"xp_for_next_level": stats.XPForNextLevel,
		"level_progress":    stats.LevelProgress,
		"current_streak":    stats.CurrentStreak,
		"longest_streak":    stats.LongestStreak,
		"credits":           stats.Credits,
		"achievements":      achievements,
	})
}
