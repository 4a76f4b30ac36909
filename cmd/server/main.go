package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/config"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"github.com/seevam/pathwaybuilder-sub002/internal/router"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 补齐初始课程与超级管理员
	if err := db.SeedDiscoveryCurriculum(db.DB); err != nil {
		log.Fatalf("failed to seed curriculum: %v", err)
	}
	if err := db.EnsureUser(cfg.SuperRootUserName, cfg.SuperRootPassword, "root"); err != nil {
		log.Fatalf("failed to ensure super root user: %v", err)
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(router.Options{
		DB:            db.DB,
		SessionSecret: cfg.SessionSecret,
		SecureCookies: cfg.SessionSecure,
		UploadDir:     cfg.UploadDir,
		UploadURLPath: cfg.UploadURLPath,
	})
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
