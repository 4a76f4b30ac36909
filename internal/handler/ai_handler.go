package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/service"
)

// AI 接口按次消耗的积分价格
const (
	insightCreditCost    = 5
	tutorCreditCost      = 2
	speechCreditCost     = 1
	transcribeCreditCost = 1
)

const maxTranscribeUploadBytes = 20 << 20

type tutorPayload struct {
	Subject  string `json:"subject"`
	Level    string `json:"level"`
	Question string `json:"question"`
}

type speechPayload struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// chargeCredits 在外部调用前原子扣费，余额不足返回 false 并写出 400
func (a *API) chargeCredits(c *gin.Context, userID uint, cost int, reason string) bool {
	if err := a.gamification.SpendCredits(userID, cost, reason); err != nil {
		if errors.Is(err, service.ErrInsufficientCredits) {
			respondError(c, http.StatusBadRequest, "积分余额不足")
			return false
		}
		respondError(c, http.StatusInternalServerError, "扣减积分失败")
		return false
	}
	return true
}

// refundCredits 外部调用失败后归还积分，失败只记日志不再向上传播
func (a *API) refundCredits(userID uint, cost int, reason string) {
	if err := a.gamification.RefundCredits(userID, cost, reason); err != nil {
		log.Printf("refund credits failed: user=%d amount=%d: %v", userID, cost, err)
	}
}

// GenerateInsights 生成结构化的自我探索洞察
func (a *API) GenerateInsights(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if !a.chargeCredits(c, userID, insightCreditCost, "ai:insights") {
		return
	}

	insight, err := a.insights.GenerateInsights(c.Request.Context(), userID)
	if err != nil {
		a.refundCredits(userID, insightCreditCost, "refund:ai:insights")
		log.Printf("generate insights failed: %v", err)
		if errors.Is(err, service.ErrAIInvalidJSON) {
			respondError(c, http.StatusInternalServerError, "AI 返回格式异常，请稍后重试")
			return
		}
		respondError(c, http.StatusInternalServerError, "生成洞察失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"insights": insight})
}

// AskTutor 回答 IB 备考问题
func (a *API) AskTutor(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload tutorPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	if payload.Question == "" {
		respondError(c, http.StatusBadRequest, "问题不能为空")
		return
	}

	if !a.chargeCredits(c, userID, tutorCreditCost, "ai:tutor") {
		return
	}

	result, err := a.tutor.Answer(c.Request.Context(), service.TutorInput{
		Subject:  payload.Subject,
		Level:    payload.Level,
		Question: payload.Question,
	})
	if err != nil {
		a.refundCredits(userID, tutorCreditCost, "refund:ai:tutor")
		log.Printf("tutor answer failed: %v", err)
		respondError(c, http.StatusInternalServerError, "生成解答失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"answer":      result.Answer,
		"answer_html": result.AnswerHTML,
	})
}

// SynthesizeSpeech 把文本合成为语音
func (a *API) SynthesizeSpeech(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload speechPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	if payload.Text == "" {
		respondError(c, http.StatusBadRequest, "文本不能为空")
		return
	}

	if !a.chargeCredits(c, userID, speechCreditCost, "ai:speech") {
		return
	}

	audio, err := a.speech.Synthesize(c.Request.Context(), payload.Text, payload.Voice)
	if err != nil {
		a.refundCredits(userID, speechCreditCost, "refund:ai:speech")
		log.Printf("speech synthesis failed: %v", err)
		respondError(c, http.StatusInternalServerError, "语音合成失败")
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// TranscribeAudio 把上传的音频转写为文本
func (a *API) TranscribeAudio(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("audio")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的音频")
		return
	}
	if file.Size > maxTranscribeUploadBytes {
		respondError(c, http.StatusBadRequest, "音频文件过大")
		return
	}

	reader, err := file.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取音频失败")
		return
	}
	defer reader.Close()

	if !a.chargeCredits(c, userID, transcribeCreditCost, "ai:transcribe") {
		return
	}

	text, err := a.speech.Transcribe(c.Request.Context(), file.Filename, reader)
	if err != nil {
		a.refundCredits(userID, transcribeCreditCost, "refund:ai:transcribe")
		log.Printf("transcription failed: %v", err)
		respondError(c, http.StatusInternalServerError, "语音转写失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"text": text})
}
