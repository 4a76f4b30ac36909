package service

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	defaultSpeechModel        = "tts-1"
	defaultSpeechVoice        = "alloy"
	defaultTranscriptionModel = "whisper-1"
	maxSpeechInputRuneCount   = 4000
)

var supportedSpeechVoices = map[string]bool{
	"alloy":   true,
	"echo":    true,
	"fable":   true,
	"onyx":    true,
	"nova":    true,
	"shimmer": true,
}

// SpeechSynthesizer 定义语音合成与转写能力，便于在业务层注入不同实现。
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// AISpeechService 代理语音合成与语音转写请求。
type AISpeechService struct {
	client *aiChatClient
}

// NewAISpeechService 构造默认的 AISpeechService。
func NewAISpeechService(settings *SystemSettingService) *AISpeechService {
	return &AISpeechService{
		client: newAIChatClient(settings, defaultSpeechModel, defaultSpeechModel),
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *AISpeechService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *AISpeechService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// Synthesize 把文本合成为音频，voice 不合法时回退默认音色。
func (s *AISpeechService) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	voice = strings.TrimSpace(strings.ToLower(voice))
	if !supportedSpeechVoices[voice] {
		voice = defaultSpeechVoice
	}

	settings, err := s.client.settings.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("读取系统设置失败: %w", err)
	}

	return s.client.synthesizeSpeech(ctx, settings, defaultSpeechModel, truncateRunes(text, maxSpeechInputRuneCount), voice)
}

// Transcribe 把上传的音频转写为文本。
func (s *AISpeechService) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if audio == nil {
		return "", fmt.Errorf("audio is required")
	}
	if strings.TrimSpace(filename) == "" {
		filename = "audio.webm"
	}

	settings, err := s.client.settings.GetSettings()
	if err != nil {
		return "", fmt.Errorf("读取系统设置失败: %w", err)
	}

	text, err := s.client.transcribeAudio(ctx, settings, defaultTranscriptionModel, filename, audio)
	if err != nil {
		return "", err
	}
	logAIExchange("transcribe", "response", text)
	return text, nil
}
