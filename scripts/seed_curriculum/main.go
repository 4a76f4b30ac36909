package main

import (
	"fmt"
	"log"

	"github.com/seevam/pathwaybuilder-sub002/internal/config"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
)

// 课程种子数据写入器：可重复执行，已存在的模块会跳过
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	if err := db.SeedDiscoveryCurriculum(db.DB); err != nil {
		log.Fatal("写入课程数据失败:", err)
	}

	var moduleCount, activityCount int64
	db.DB.Model(&db.Module{}).Count(&moduleCount)
	db.DB.Model(&db.Activity{}).Count(&activityCount)
	fmt.Printf("课程数据就绪：%d 个模块，%d 个活动\n", moduleCount, activityCount)
}
