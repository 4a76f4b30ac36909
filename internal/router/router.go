package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/handler"
	"gorm.io/gorm"
)

// sessionMaxAgeSeconds 为会话 Cookie 的有效期（7 天）
const sessionMaxAgeSeconds = 7 * 24 * 60 * 60

// Options 汇总构建路由所需的依赖配置
type Options struct {
	DB            *gorm.DB
	SessionSecret string
	SecureCookies bool
	UploadDir     string
	UploadURLPath string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(opts Options) *gin.Engine {
	r := gin.Default()

	secret := opts.SessionSecret
	if secret == "" {
		secret = "pathway-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	// 默认监听明文 HTTP，Secure 属性不能写死为 true，
	// 否则浏览器与 cookiejar 都会丢弃会话 Cookie；HTTPS 部署通过配置开启
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAgeSeconds,
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("pathway_session", store))

	// 静态文件服务（上传的封面图片）
	r.Static("/static", "./web/static")

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	api := handler.NewAPI(opts.DB, opts.UploadDir, opts.UploadURLPath)

	apiGroup := r.Group("/api")
	{
		auth := apiGroup.Group("/auth")
		{
			auth.POST("/register", api.Register)
			auth.POST("/login", api.Login)
			auth.POST("/logout", api.Logout)
		}

		// 需要认证的业务路由
		authed := apiGroup.Group("")
		authed.Use(handler.AuthRequired())
		{
			authed.GET("/auth/me", api.Me)

			authed.GET("/profile", api.GetProfile)
			authed.PUT("/profile", api.UpdateProfile)

			authed.GET("/modules", api.ListModules)
			authed.GET("/modules/:id", api.GetModule)
			authed.POST("/activities/:id/complete", api.CompleteActivity)
			authed.GET("/activities/:id/completion", api.GetActivityCompletion)

			authed.GET("/projects", api.ListProjects)
			authed.POST("/projects", api.CreateProject)
			authed.POST("/projects/join", api.JoinProject)
			authed.GET("/projects/:id", api.GetProject)
			authed.PUT("/projects/:id", api.UpdateProject)
			authed.PUT("/projects/:id/status", api.UpdateProjectStatus)
			authed.DELETE("/projects/:id", api.DeleteProject)

			authed.GET("/projects/:id/milestones", api.ListMilestones)
			authed.POST("/projects/:id/milestones", api.CreateMilestone)
			authed.PUT("/projects/:id/milestones/:milestoneId/status", api.UpdateMilestoneStatus)

			authed.GET("/projects/:id/tasks", api.ListTasks)
			authed.POST("/projects/:id/tasks", api.CreateTask)
			authed.PUT("/projects/:id/tasks/:taskId/complete", api.CompleteTask)

			authed.GET("/projects/:id/check-ins", api.ListCheckIns)
			authed.POST("/projects/:id/check-ins", api.CreateCheckIn)

			authed.GET("/projects/:id/members", api.ListMembers)
			authed.DELETE("/projects/:id/members/:userId", api.RemoveMember)

			authed.GET("/discover", api.Discover)
			authed.GET("/gamification/stats", api.GetGamificationStats)

			ai := authed.Group("/ai")
			{
				ai.POST("/insights", api.GenerateInsights)
				ai.POST("/tutor", api.AskTutor)
				ai.POST("/speech", api.SynthesizeSpeech)
				ai.POST("/transcribe", api.TranscribeAudio)
			}

			authed.POST("/uploads/cover", api.UploadCover)
		}
	}

	return r
}
