package handler

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"golang.org/x/crypto/bcrypt"
)

type registerPayload struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 创建学生账号并直接建立会话
func (a *API) Register(c *gin.Context) {
	var payload registerPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	username := strings.TrimSpace(payload.Username)
	if len(username) < 3 {
		respondError(c, http.StatusBadRequest, "用户名至少 3 个字符")
		return
	}
	if len(payload.Password) < 8 {
		respondError(c, http.StatusBadRequest, "密码至少 8 个字符")
		return
	}

	var count int64
	if err := a.db.Model(&db.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "创建账号失败")
		return
	}
	if count > 0 {
		respondError(c, http.StatusBadRequest, "用户名已被占用")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "创建账号失败")
		return
	}

	user := db.User{
		Username:    username,
		Password:    string(hashed),
		DisplayName: strings.TrimSpace(payload.DisplayName),
		Role:        "student",
		Level:       1,
		Credits:     100,
	}
	if err := a.db.Create(&user).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "创建账号失败")
		return
	}

	if !saveSession(c, user) {
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"user": userToPayload(user)})
}

// Login 处理登录请求并建立会话
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	var user db.User
	if err := a.db.Where("username = ?", strings.TrimSpace(payload.Username)).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(payload.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if !saveSession(c, user) {
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"user": userToPayload(user)})
}

// Logout 清理会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "退出登录失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"logged_out": true})
}

// Me 返回当前登录用户信息
func (a *API) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var user db.User
	if err := a.db.First(&user, userID).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"user": userToPayload(user)})
}

// AuthRequired 从会话解析用户身份，失败时返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		if id, ok := userID.(uint); ok && id > 0 {
			c.Set(contextUserIDKey, id)
			c.Next()
			return
		}
		respondError(c, http.StatusUnauthorized, "请先登录")
		c.Abort()
	}
}

func saveSession(c *gin.Context, user db.User) bool {
	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return false
	}
	return true
}

func userToPayload(user db.User) gin.H {
	return gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"display_name":   user.DisplayName,
		"xp":             user.XP,
		"level":          user.Level,
		"credits":        user.Credits,
		"current_streak": user.CurrentStreak,
		"longest_streak": user.LongestStreak,
	}
}
