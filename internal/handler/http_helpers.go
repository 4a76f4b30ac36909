package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// contextUserIDKey 由 AuthRequired 写入，handler 通过 currentUserID 读取
const contextUserIDKey = "__user_id"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondSuccess 统一输出 {"success": true, ...payload} 信封
func respondSuccess(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for key, value := range payload {
		body[key] = value
	}
	c.JSON(status, body)
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// currentUserID 返回已认证用户的内部 ID，未认证时写出 401 并返回 false
func currentUserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(contextUserIDKey)
	if !exists {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return 0, false
	}
	id, ok := value.(uint)
	if !ok || id == 0 {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return 0, false
	}
	return id, true
}
