package service

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/gorm"
)

// 匹配分加成：基础 50，类别与兴趣重合 +20，工作风格一致 +15，
// 技能每项 +5 封顶 +15，总分收敛到 [0,100]。
const (
	matchBaseScore       = 50
	matchCategoryBonus   = 20
	matchWorkStyleBonus  = 15
	matchSkillUnitBonus  = 5
	matchSkillBonusCap   = 15
	discoverDefaultLimit = 20
)

// MatchService 负责项目广场的候选筛选与启发式匹配打分
type MatchService struct {
	db *gorm.DB
}

// SeekerProfile 是参与打分的用户画像切片
type SeekerProfile struct {
	Interests []string
	Skills    []string
	WorkStyle string
}

// ProjectMatch 是一条带匹配分的候选项目
type ProjectMatch struct {
	Project db.Project
	Score   int
}

// NewMatchService 构造 MatchService
func NewMatchService(gdb *gorm.DB) *MatchService {
	return &MatchService{db: gdb}
}

// MatchScore 计算候选项目对用户画像的匹配分。
// 纯函数：相同输入必得相同输出，无任何副作用。
func MatchScore(project db.Project, seeker SeekerProfile) int {
	score := matchBaseScore

	category := strings.TrimSpace(strings.ToLower(project.Category))
	if category != "" && containsFold(seeker.Interests, category) {
		score += matchCategoryBonus
	}

	projectStyle := strings.TrimSpace(strings.ToLower(project.WorkStyle))
	seekerStyle := strings.TrimSpace(strings.ToLower(seeker.WorkStyle))
	if projectStyle != "" && projectStyle == seekerStyle {
		score += matchWorkStyleBonus
	}

	matching := 0
	for _, skill := range splitList(project.RequiredSkills) {
		if containsFold(seeker.Skills, skill) {
			matching++
		}
	}
	skillBonus := matchSkillUnitBonus * matching
	if skillBonus > matchSkillBonusCap {
		skillBonus = matchSkillBonusCap
	}
	score += skillBonus

	return clampScore(score, 0, 100)
}

// Discover 返回对用户开放且未满员的候选项目，按匹配分降序排列。
// 分数相同时按创建时间倒序，保证结果确定。
func (s *MatchService) Discover(userID uint, seeker SeekerProfile, limit int) ([]ProjectMatch, error) {
	if limit <= 0 {
		limit = discoverDefaultLimit
	}

	var candidates []db.Project
	if err := s.db.
		Where("open_for_collaboration = ?", true).
		Where("current_team_size < max_team_size").
		Where("user_id <> ?", userID).
		Where("status IN ?", []string{db.ProjectStatusIdeation, db.ProjectStatusPlanning, db.ProjectStatusInProgress}).
		Where("id NOT IN (?)", s.db.Model(&db.ProjectMember{}).Select("project_id").Where("user_id = ?", userID)).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("list candidate projects: %w", err)
	}

	matches := make([]ProjectMatch, 0, len(candidates))
	for _, candidate := range candidates {
		matches = append(matches, ProjectMatch{
			Project: candidate,
			Score:   MatchScore(candidate, seeker),
		})
	}

	slices.SortFunc(matches, func(a, b ProjectMatch) int {
		if diff := cmp.Compare(b.Score, a.Score); diff != 0 {
			return diff
		}
		if diff := b.Project.CreatedAt.Compare(a.Project.CreatedAt); diff != 0 {
			return diff
		}
		return cmp.Compare(b.Project.ID, a.Project.ID)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), target) {
			return true
		}
	}
	return false
}
