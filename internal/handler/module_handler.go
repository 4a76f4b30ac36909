package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"github.com/seevam/pathwaybuilder-sub002/internal/service"
)

const dateTimeFormat = time.RFC3339

type completeActivityPayload struct {
	Data string `json:"data"`
}

// ListModules 返回全部模块及当前用户的进度与解锁状态
func (a *API) ListModules(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	overviews, err := a.progress.ListOverviews(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取模块列表失败")
		return
	}

	items := make([]gin.H, 0, len(overviews))
	for _, overview := range overviews {
		items = append(items, moduleOverviewToPayload(overview))
	}

	respondSuccess(c, http.StatusOK, gin.H{"modules": items})
}

// GetModule 返回单个模块的详情与用户视角状态
func (a *API) GetModule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	moduleID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的模块ID")
		return
	}

	module, err := a.progress.GetModule(moduleID)
	if err != nil {
		if errors.Is(err, service.ErrModuleNotFound) {
			respondError(c, http.StatusNotFound, "模块不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "加载模块失败")
		return
	}

	overview, err := a.progress.Overview(userID, *module)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "计算模块进度失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"module": moduleOverviewToPayload(*overview)})
}

// CompleteActivity 记录活动完成并返回联动的进度与奖励信息
func (a *API) CompleteActivity(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	activityID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的活动ID")
		return
	}

	var payload completeActivityPayload
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}

	result, err := a.activities.Complete(service.CompleteActivityInput{
		UserID:     userID,
		ActivityID: activityID,
		Data:       payload.Data,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActivityNotFound):
			respondError(c, http.StatusNotFound, "活动不存在")
		case errors.Is(err, service.ErrModuleLocked):
			respondError(c, http.StatusBadRequest, "所属模块尚未解锁")
		default:
			respondError(c, http.StatusInternalServerError, "保存完成记录失败")
		}
		return
	}

	payloadOut := gin.H{
		"completion":           completionToPayload(result.Completion),
		"first_completion":     result.FirstCompletion,
		"module_progress":      result.ModuleProgress,
		"deliverable_unlocked": result.DeliverableUnlocked,
		"new_achievements":     achievementCodes(result.NewAchievements),
	}
	if result.XPAward != nil {
		payloadOut["xp_award"] = xpAwardToPayload(*result.XPAward)
	}

	respondSuccess(c, http.StatusOK, payloadOut)
}

// GetActivityCompletion 返回当前用户对某活动的完成记录
func (a *API) GetActivityCompletion(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	activityID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的活动ID")
		return
	}

	completion, err := a.activities.GetCompletion(userID, activityID)
	if err != nil {
		if errors.Is(err, service.ErrCompletionNotFound) {
			respondError(c, http.StatusNotFound, "尚未完成该活动")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取完成记录失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"completion": completionToPayload(*completion)})
}

func moduleOverviewToPayload(overview service.ModuleOverview) gin.H {
	activities := make([]gin.H, 0, len(overview.Module.Activities))
	for _, activity := range overview.Module.Activities {
		activities = append(activities, gin.H{
			"id":                activity.ID,
			"slug":              activity.Slug,
			"title":             activity.Title,
			"description":       activity.Description,
			"type":              activity.Type,
			"order_index":       activity.OrderIndex,
			"estimated_minutes": activity.EstimatedMinutes,
			"xp_reward":         activity.XPReward,
		})
	}

	return gin.H{
		"id":                   overview.Module.ID,
		"slug":                 overview.Module.Slug,
		"title":                overview.Module.Title,
		"description":          overview.Module.Description,
		"order_index":          overview.Module.OrderIndex,
		"progress":             overview.Progress,
		"unlocked":             overview.Unlocked,
		"completed_activities": overview.CompletedActivities,
		"total_activities":     overview.TotalActivities,
		"activities":           activities,
		"deliverable": gin.H{
			"title":       overview.Module.DeliverableTitle,
			"description": overview.Module.DeliverableDescription,
			"unlocked":    overview.DeliverableUnlocked,
		},
	}
}

func completionToPayload(completion db.ActivityCompletion) gin.H {
	return gin.H{
		"id":           completion.ID,
		"activity_id":  completion.ActivityID,
		"completed":    completion.Completed,
		"data":         completion.Data,
		"completed_at": completion.CompletedAt.Format(dateTimeFormat),
	}
}

func xpAwardToPayload(award service.XPAwardResult) gin.H {
	return gin.H{
		"amount":       award.Amount,
		"total_xp":     award.TotalXP,
		"level_before": award.LevelBefore,
		"level_after":  award.LevelAfter,
		"leveled_up":   award.LeveledUp,
	}
}

func achievementCodes(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}
