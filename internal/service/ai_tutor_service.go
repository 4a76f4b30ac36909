package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	tutorMarkdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	tutorSanitizer = bluemonday.UGCPolicy()
)

const (
	defaultOpenAITutorModel   = "gpt-4o-mini"
	defaultDeepSeekTutorModel = "deepseek-chat"
	defaultTutorMaxTokens     = 1200
	defaultTutorTemperature   = 0.3
	maxTutorQuestionRuneCount = 4000
)

const defaultTutorSystemPrompt = "你是一名 IB 课程辅导老师，熟悉各学科 HL/SL 大纲与评分标准。" +
	"用 Markdown 回答学生的备考问题：先给出直接解答，再分步骤解释，必要时给出练习建议。" +
	"不确定时明确说明，不要编造评分细则。"

// TutorInput 描述一次 IB 备考提问。
type TutorInput struct {
	Subject  string
	Level    string
	Question string
}

// TutorResult 返回模型解答的 Markdown 原文与净化后的 HTML。
type TutorResult struct {
	Answer           string
	AnswerHTML       string
	PromptTokens     int
	CompletionTokens int
}

// TutorAnswerer 定义备考辅导能力，便于在业务层注入不同实现。
type TutorAnswerer interface {
	Answer(ctx context.Context, input TutorInput) (TutorResult, error)
}

// AITutorService 基于大模型接口回答 IB 备考问题。
type AITutorService struct {
	client *aiChatClient
}

// NewAITutorService 构造默认的 AITutorService。
func NewAITutorService(settings *SystemSettingService) *AITutorService {
	return &AITutorService{
		client: newAIChatClient(settings, defaultOpenAITutorModel, defaultDeepSeekTutorModel),
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *AITutorService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *AITutorService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *AITutorService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// Answer 调用当前配置的 AI 平台解答备考问题，并渲染净化后的 HTML。
func (s *AITutorService) Answer(ctx context.Context, input TutorInput) (TutorResult, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return TutorResult{}, fmt.Errorf("question is required")
	}

	userPrompt := buildTutorPrompt(input.Subject, input.Level, truncateRunes(question, maxTutorQuestionRuneCount))
	logAIExchange("tutor", "prompt", userPrompt)

	settings, err := s.client.settings.GetSettings()
	if err != nil {
		return TutorResult{}, fmt.Errorf("读取系统设置失败: %w", err)
	}

	systemPrompt := strings.TrimSpace(settings.AITutorPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultTutorSystemPrompt
	}

	result, err := s.client.callWithSettings(ctx, settings, aiChatRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    defaultTutorMaxTokens,
		Temperature:  defaultTutorTemperature,
	})
	if err != nil {
		return TutorResult{}, err
	}

	answer := strings.TrimSpace(result.Content)
	logAIExchange("tutor", "response", answer)
	logAIUsage("tutor", result.PromptTokens, result.CompletionTokens)

	return TutorResult{
		Answer:           answer,
		AnswerHTML:       renderTutorMarkdown(answer),
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}

func buildTutorPrompt(subject, level, question string) string {
	var builder strings.Builder
	if subject = strings.TrimSpace(subject); subject != "" {
		builder.WriteString("科目：" + subject + "\n")
	}
	if level = strings.ToUpper(strings.TrimSpace(level)); level == "HL" || level == "SL" {
		builder.WriteString("难度：" + level + "\n")
	}
	builder.WriteString("问题：\n" + question)
	return builder.String()
}

// renderTutorMarkdown 把模型输出渲染为净化后的 HTML，渲染失败时回退为空串。
func renderTutorMarkdown(markdown string) string {
	var buf bytes.Buffer
	if err := tutorMarkdownEngine.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return tutorSanitizer.Sanitize(buf.String())
}
