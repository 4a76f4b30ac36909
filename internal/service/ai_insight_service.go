package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/gorm"
)

// ErrAIInvalidJSON 表示模型返回了无法解析的 JSON，属于可恢复失败。
var ErrAIInvalidJSON = errors.New("ai returned invalid json")

const (
	defaultOpenAIInsightModel   = "gpt-4o-mini"
	defaultDeepSeekInsightModel = "deepseek-chat"
	defaultInsightMaxTokens     = 800
	defaultInsightTemperature   = 0.4
	maxInsightContextRuneCount  = 6000
)

const defaultInsightSystemPrompt = "你是一名高中生涯规划导师。根据学生的画像与探索活动记录，" +
	"输出一个 JSON 对象，包含字段 strengths（字符串数组）、themes（字符串数组）、" +
	"career_suggestions（对象数组，含 title 与 reason 字段）、summary（字符串）。" +
	"只输出 JSON，不要附加其他文字。"

// InsightResult 是模型生成的结构化自我探索洞察。
type InsightResult struct {
	Strengths         []string           `json:"strengths"`
	Themes            []string           `json:"themes"`
	CareerSuggestions []CareerSuggestion `json:"career_suggestions"`
	Summary           string             `json:"summary"`
}

// CareerSuggestion 是一条职业方向建议。
type CareerSuggestion struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// InsightGenerator 定义洞察生成能力，便于在业务层注入不同实现。
type InsightGenerator interface {
	GenerateInsights(ctx context.Context, userID uint) (InsightResult, error)
}

// AIInsightService 汇总学生的画像与完成记录，调用大模型生成结构化洞察。
type AIInsightService struct {
	db     *gorm.DB
	client *aiChatClient
}

// NewAIInsightService 构造默认的 AIInsightService。
func NewAIInsightService(gdb *gorm.DB, settings *SystemSettingService) *AIInsightService {
	return &AIInsightService{
		db:     gdb,
		client: newAIChatClient(settings, defaultOpenAIInsightModel, defaultDeepSeekInsightModel),
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *AIInsightService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *AIInsightService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *AIInsightService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// GenerateInsights 组装上下文并请求模型输出结构化洞察。
// 模型返回非法 JSON 时包装为 ErrAIInvalidJSON，调用方可提示重试。
func (s *AIInsightService) GenerateInsights(ctx context.Context, userID uint) (InsightResult, error) {
	userPrompt, err := s.buildContext(userID)
	if err != nil {
		return InsightResult{}, err
	}
	logAIExchange("insight", "prompt", userPrompt)

	settings, err := s.client.settings.GetSettings()
	if err != nil {
		return InsightResult{}, fmt.Errorf("读取系统设置失败: %w", err)
	}

	systemPrompt := strings.TrimSpace(settings.AIInsightPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultInsightSystemPrompt
	}

	result, err := s.client.callWithSettings(ctx, settings, aiChatRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    defaultInsightMaxTokens,
		Temperature:  defaultInsightTemperature,
		JSONMode:     true,
	})
	if err != nil {
		return InsightResult{}, err
	}
	logAIExchange("insight", "response", result.Content)
	logAIUsage("insight", result.PromptTokens, result.CompletionTokens)

	var insight InsightResult
	if err := json.Unmarshal([]byte(stripJSONFences(result.Content)), &insight); err != nil {
		return InsightResult{}, fmt.Errorf("%w: %v", ErrAIInvalidJSON, err)
	}

	return insight, nil
}

// buildContext 把画像与最近的活动完成记录拼成用户提示词。
func (s *AIInsightService) buildContext(userID uint) (string, error) {
	var profile db.UserProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("load profile: %w", err)
	}

	var completions []db.ActivityCompletion
	if err := s.db.Preload("Activity").
		Where("user_id = ? AND completed = ?", userID, true).
		Order("completed_at DESC").
		Limit(20).
		Find(&completions).Error; err != nil {
		return "", fmt.Errorf("load completions: %w", err)
	}

	var builder strings.Builder
	builder.WriteString("学生画像：\n")
	if strings.TrimSpace(profile.Bio) != "" {
		builder.WriteString("简介：" + profile.Bio + "\n")
	}
	if profile.Interests != "" {
		builder.WriteString("兴趣：" + profile.Interests + "\n")
	}
	if profile.Skills != "" {
		builder.WriteString("技能：" + profile.Skills + "\n")
	}
	if profile.WorkStyle != "" {
		builder.WriteString("工作风格：" + profile.WorkStyle + "\n")
	}

	if len(completions) > 0 {
		builder.WriteString("\n已完成的探索活动：\n")
		for _, completion := range completions {
			builder.WriteString("- " + completion.Activity.Title)
			data := strings.TrimSpace(completion.Data)
			if data != "" {
				builder.WriteString("：" + data)
			}
			builder.WriteString("\n")
		}
	}

	return truncateRunes(builder.String(), maxInsightContextRuneCount), nil
}

// stripJSONFences 去掉模型偶尔包裹的 Markdown 代码围栏。
func stripJSONFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}

func truncateRunes(input string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit])
}
