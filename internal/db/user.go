package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了学生账号模型
// XP/Level/Streak 等字段由 GamificationService 维护，
// 计数器类字段（XP/Credits/TeamSize）只允许在存储层做原子增减。
type User struct {
	gorm.Model
	Username       string `gorm:"unique;not null"`
	Password       string `gorm:"not null"`
	DisplayName    string
	Role           string `gorm:"size:20;default:student"`
	XP             int    `gorm:"not null;default:0"`
	Level          int    `gorm:"not null;default:1"`
	Credits        int    `gorm:"not null;default:100"`
	CurrentStreak  int    `gorm:"not null;default:0"`
	LongestStreak  int    `gorm:"not null;default:0"`
	LastActiveDate *time.Time
}

// UserProfile 记录用于 AI 上下文与项目匹配的画像信息
// Interests/Skills 以逗号分隔存储，规范化逻辑在 service 层
type UserProfile struct {
	gorm.Model
	UserID    uint `gorm:"uniqueIndex;not null"`
	Bio       string
	Interests string `gorm:"type:text"`
	Skills    string `gorm:"type:text"`
	WorkStyle string `gorm:"size:30"`
	GradeYear int
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的用户。
// 主要用于启动时根据环境变量补齐超级管理员。
func EnsureUser(username, password, role string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		if strings.TrimSpace(role) == "" {
			role = "student"
		}

		return DB.Create(&User{Username: trimmedUser, Password: string(hashed), Role: role, Level: 1, Credits: 100}).Error
	}

	return nil
}
