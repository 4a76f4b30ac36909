package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 支持的工作风格取值
var validWorkStyles = map[string]bool{
	"":              true,
	"collaborative": true,
	"independent":   true,
	"flexible":      true,
}

// ErrInvalidWorkStyle 在工作风格取值不受支持时返回
var ErrInvalidWorkStyle = errors.New("invalid work style")

// ProfileService 维护用户画像，画像同时供 AI 上下文与项目匹配使用
type ProfileService struct {
	db *gorm.DB
}

// ProfileInput 定义更新画像时可配置字段
type ProfileInput struct {
	Bio       string
	Interests []string
	Skills    []string
	WorkStyle string
	GradeYear int
}

// NewProfileService 构造 ProfileService
func NewProfileService(gdb *gorm.DB) *ProfileService {
	return &ProfileService{db: gdb}
}

// Get 返回用户画像，不存在时返回空画像而非报错
func (s *ProfileService) Get(userID uint) (*db.UserProfile, error) {
	var profile db.UserProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &db.UserProfile{UserID: userID}, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// Update 以 user_id 为自然键整体覆盖画像，插入或更新一步完成
func (s *ProfileService) Update(userID uint, input ProfileInput) (*db.UserProfile, error) {
	workStyle := strings.TrimSpace(strings.ToLower(input.WorkStyle))
	if !validWorkStyles[workStyle] {
		return nil, ErrInvalidWorkStyle
	}

	record := db.UserProfile{
		UserID:    userID,
		Bio:       strings.TrimSpace(input.Bio),
		Interests: joinList(input.Interests),
		Skills:    joinList(input.Skills),
		WorkStyle: workStyle,
		GradeYear: input.GradeYear,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"bio", "interests", "skills", "work_style", "grade_year", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	if err := s.db.Where("user_id = ?", userID).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}

	return &record, nil
}

// SeekerProfile 把画像换算成参与匹配打分的切片
func (s *ProfileService) SeekerProfile(userID uint) (SeekerProfile, error) {
	profile, err := s.Get(userID)
	if err != nil {
		return SeekerProfile{}, err
	}

	return SeekerProfile{
		Interests: splitList(profile.Interests),
		Skills:    splitList(profile.Skills),
		WorkStyle: profile.WorkStyle,
	}, nil
}
