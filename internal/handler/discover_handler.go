package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Discover 返回按匹配分排序的可协作项目
func (a *API) Discover(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	seeker, err := a.profiles.SeekerProfile(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取画像失败")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(c, http.StatusBadRequest, "无效的数量限制")
			return
		}
		limit = parsed
	}

	matches, err := a.matches.Discover(userID, seeker, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取推荐项目失败")
		return
	}

	items := make([]gin.H, 0, len(matches))
	for _, match := range matches {
		item := projectToPayload(match.Project)
		// 邀请码只对成员可见
		delete(item, "invite_code")
		item["match_score"] = match.Score
		items = append(items, item)
	}

	respondSuccess(c, http.StatusOK, gin.H{"projects": items})
}
