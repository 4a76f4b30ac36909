package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"github.com/seevam/pathwaybuilder-sub002/internal/service"
)

type profilePayload struct {
	Bio       string   `json:"bio"`
	Interests []string `json:"interests"`
	Skills    []string `json:"skills"`
	WorkStyle string   `json:"work_style"`
	GradeYear int      `json:"grade_year"`
}

// GetProfile 返回当前用户画像
func (a *API) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	profile, err := a.profiles.Get(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取画像失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"profile": profileToPayload(*profile)})
}

// UpdateProfile 覆盖更新当前用户画像
func (a *API) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload profilePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	profile, err := a.profiles.Update(userID, service.ProfileInput{
		Bio:       payload.Bio,
		Interests: payload.Interests,
		Skills:    payload.Skills,
		WorkStyle: payload.WorkStyle,
		GradeYear: payload.GradeYear,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidWorkStyle) {
			respondError(c, http.StatusBadRequest, "工作风格取值不合法")
			return
		}
		respondError(c, http.StatusInternalServerError, "保存画像失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"profile": profileToPayload(*profile)})
}

func profileToPayload(profile db.UserProfile) gin.H {
	return gin.H{
		"bio":        profile.Bio,
		"interests":  splitCSV(profile.Interests),
		"skills":     splitCSV(profile.Skills),
		"work_style": profile.WorkStyle,
		"grade_year": profile.GradeYear,
	}
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return cleaned
}
