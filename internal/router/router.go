package router

import (
	"holewatch/internal/config"
	"holewatch/internal/handlers"
	"holewatch/internal/middleware"
	"holewatch/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 路由需要的依赖
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Services *services.Services
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

// New 创建 gin 引擎并注册全部路由
func New(deps Deps) *gin.Engine {
	if !deps.Config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))

	store := cookie.NewStore([]byte(deps.Config.Server.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 30 * 24 * 3600, HttpOnly: true})
	r.Use(sessions.Sessions("holewatch_session", store))

	RegisterRoutes(r, deps)
	return r
}

func RegisterRoutes(r *gin.Engine, deps Deps) {
	svc := deps.Services

	// Handlers
	authHandler := handlers.NewAuthHandler(svc.Users)
	reportHandler := handlers.NewReportHandler(svc)
	commentHandler := handlers.NewCommentHandler(svc)
	subscriptionHandler := handlers.NewSubscriptionHandler(svc)
	userHandler := handlers.NewUserHandler(svc)
	notificationHandler := handlers.NewNotificationHandler(svc.Inbox)
	adminHandler := handlers.NewAdminHandler(svc, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Use(middleware.LoadUser(svc.Users, svc.Inbox))

	// 公共路由 (Public Routes)
	api.GET("/reports/nearby", reportHandler.Nearby)         // 附近的报告
	api.GET("/reports/:id", reportHandler.Detail)            // 报告详情
	api.GET("/reports/:id/votes", reportHandler.Votes)       // 投票记录，?cycle=
	api.GET("/reports/:id/history", reportHandler.History)   // 审计日志
	api.GET("/reports/:id/comments", commentHandler.List)    // 评论列表
	api.GET("/users/:id/reputation", userHandler.Reputation) // 用户信誉
	api.GET("/leaderboard", userHandler.Leaderboard)         // 排行榜
	api.POST("/logout", authHandler.Logout)                  // 退出登录

	if deps.Config.Server.Debug {
		api.POST("/dev/login", authHandler.DevLogin) // 开发环境登录
	}

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/reports", reportHandler.Create)                        // 提交报告
		authorized.POST("/reports/:id/validations", reportHandler.Validate)      // 验证投票
		authorized.POST("/reports/:id/confirmations", reportHandler.Confirm)     // 确认投票
		authorized.POST("/reports/:id/comments", commentHandler.Create)          // 发表评论
		authorized.POST("/reports/:id/subscription", subscriptionHandler.Toggle) // 关注/取消关注
		authorized.GET("/me", userHandler.Me)                                    // 当前用户
		authorized.GET("/me/points", userHandler.PointLogs)                      // 积分记录
		authorized.GET("/notifications", notificationHandler.List)               // 我的通知
		authorized.POST("/notifications/:id/read", notificationHandler.Read)     // 标记单条通知为已读
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)      // 删除单条通知
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)  // 全部标记为已读
	}

	// 管理路由 (Admin Routes)
	admin := authorized.Group("/admin")
	{
		admin.POST("/reports/:id/close", adminHandler.CloseReport)        // 关闭报告
		admin.POST("/reputation/rebuild", adminHandler.RebuildReputation) // 重算信誉快照
	}
}
