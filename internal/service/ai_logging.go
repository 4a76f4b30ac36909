package service

import (
	"log"
	"strings"
	"unicode/utf8"
)

// 提示词里带有学生画像与完成记录，日志只保留片段，不落盘全文
const aiLogSnippetRunes = 400

// logAIExchange 输出一次 AI 请求或响应的片段，便于排查提示词与模型行为。
func logAIExchange(kind, phase, content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		log.Printf("ai %s %s: <empty>", kind, phase)
		return
	}

	total := utf8.RuneCountInString(trimmed)
	snippet := trimmed
	if total > aiLogSnippetRunes {
		snippet = string([]rune(trimmed)[:aiLogSnippetRunes]) + "…"
	}
	log.Printf("ai %s %s (%d runes): %s", kind, phase, total, snippet)
}

// logAIUsage 记录一次调用消耗的 token 数，用于观察提示词长度与成本。
func logAIUsage(kind string, promptTokens, completionTokens int) {
	if promptTokens == 0 && completionTokens == 0 {
		return
	}
	log.Printf("ai %s usage: prompt=%d completion=%d", kind, promptTokens, completionTokens)
}
