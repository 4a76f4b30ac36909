package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAISpeechTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.SystemSetting{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestAISpeechServiceSynthesize(t *testing.T) {
	cleanup := setupAISpeechTestDB(t)
	defer cleanup()

	system := NewSystemSettingService(db.DB)
	seedAISettings(t, system)

	svc := NewAISpeechService(system)
	svc.SetOpenAIBaseURL("https://openai.test/v1")
	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}

		var payload speechRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Model != "tts-1" {
			t.Fatalf("unexpected model %s", payload.Model)
		}
		// 不支持的音色回退为默认值
		if payload.Voice != "alloy" {
			t.Fatalf("expected fallback voice alloy, got %s", payload.Voice)
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte("mp3-bytes"))),
		}, nil
	}})

	audio, err := svc.Synthesize(context.Background(), "欢迎来到自我探索模块", "robot-voice")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("unexpected audio payload: %q", audio)
	}

	if _, err := svc.Synthesize(context.Background(), "   ", "alloy"); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestAISpeechServiceTranscribe(t *testing.T) {
	cleanup := setupAISpeechTestDB(t)
	defer cleanup()

	system := NewSystemSettingService(db.DB)
	seedAISettings(t, system)

	svc := NewAISpeechService(system)
	svc.SetOpenAIBaseURL("https://openai.test/v1")
	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Fatalf("expected multipart upload, got %s", r.Header.Get("Content-Type"))
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Fatalf("unexpected model %s", got)
		}

		body, _ := json.Marshal(transcriptionResponse{Text: " 我想做一个机器人项目 "})
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(body)),
		}, nil
	}})

	text, err := svc.Transcribe(context.Background(), "note.webm", strings.NewReader("fake-audio"))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "我想做一个机器人项目" {
		t.Fatalf("unexpected transcription: %q", text)
	}

	if _, err := svc.Transcribe(context.Background(), "note.webm", nil); err == nil {
		t.Fatal("expected error for nil audio")
	}
}
