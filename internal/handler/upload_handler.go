package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadCover 处理项目封面图片上传请求
func (a *API) UploadCover(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}

	// 检查文件类型
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(c, http.StatusBadRequest, "只允许上传图片文件")
		return
	}

	uploadDir := a.uploadDir
	if uploadDir == "" {
		uploadDir = "web/static/uploads"
	}
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		respondError(c, http.StatusInternalServerError, "创建上传目录失败")
		return
	}

	// 生成唯一文件名
	ext := filepath.Ext(file.Filename)
	newFilename := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), ext)
	filePath := filepath.Join(uploadDir, newFilename)

	if err := c.SaveUploadedFile(file, filePath); err != nil {
		respondError(c, http.StatusInternalServerError, "保存文件失败")
		return
	}

	urlPath := a.uploadURL
	if urlPath == "" {
		urlPath = "/static/uploads"
	}
	fileURL := fmt.Sprintf("%s/%s", strings.TrimRight(urlPath, "/"), newFilename)

	respondSuccess(c, http.StatusOK, gin.H{"url": fileURL})
}
