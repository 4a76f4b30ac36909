package handler

import (
	"github.com/seevam/pathwaybuilder-sub002/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db           *gorm.DB
	progress     *service.ProgressService
	activities   *service.ActivityService
	projects     *service.ProjectService
	matches      *service.MatchService
	profiles     *service.ProfileService
	gamification *service.GamificationService
	system       *service.SystemSettingService
	insights     service.InsightGenerator
	tutor        service.TutorAnswerer
	speech       service.SpeechSynthesizer
	uploadDir    string
	uploadURL    string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, uploadDir, uploadURL string) *API {
	systemService := service.NewSystemSettingService(db)

	return &API{
		db:           db,
		progress:     service.NewProgressService(db),
		activities:   service.NewActivityService(db),
		projects:     service.NewProjectService(db),
		matches:      service.NewMatchService(db),
		profiles:     service.NewProfileService(db),
		gamification: service.NewGamificationService(db),
		system:       systemService,
		insights:     service.NewAIInsightService(db, systemService),
		tutor:        service.NewAITutorService(systemService),
		speech:       service.NewAISpeechService(systemService),
		uploadDir:    uploadDir,
		uploadURL:    uploadURL,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}
