package httptransport

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	gincors "github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"momentummail/backend/internal/config"
	_ "momentummail/backend/internal/docs"
	"momentummail/backend/internal/health"
	"momentummail/backend/internal/middleware"
	"momentummail/backend/internal/monitoring"
	"momentummail/backend/internal/tracker"
	"momentummail/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	Registry     *tracker.Registry
	Health       *health.HealthChecker // 可选
	Metrics      *monitoring.Metrics   // 可选
	WebSocketHub *websocket.Hub        // 可选
	Logger       *zap.Logger
}

var registerTagNameOnce sync.Once

// 校验错误使用 JSON 字段名
func registerJSONTagNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	registerJSONTagNames()

	router := gin.New()
	router.HandleMethodNotAllowed = false

	router.Use(middleware.RecoveryHandler(log, deps.Metrics))
	router.Use(ginzap.Ginzap(log, time.RFC3339, true))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	allowAll := len(corsConfig.AllowOrigins) == 0
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}
	if allowAll {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(gincors.New(corsConfig))

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		status, code := "ok", http.StatusOK
		if !deps.Health.Healthy() {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "checks": deps.Health.CheckHealth()})
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapH(deps.Health.LiveHandler()))
		router.GET("/health/ready", gin.WrapH(deps.Health.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	handler := NewEmailHandler(deps.Registry, deps.Config.Tracker.Owner, log)

	api := router.Group("/api")
	{
		emails := api.Group("/emails")
		emails.GET("", handler.listEmails)
		emails.GET("/", handler.listEmails)
		emails.POST("", handler.createEmail)
		emails.POST("/", handler.createEmail)
		emails.PUT("/:id/status", handler.updateStatus)

		if deps.WebSocketHub != nil {
			emails.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub, deps.Config.Tracker.Owner))
		}
	}

	router.NoRoute(func(c *gin.Context) {
		NotFound(c, MsgNotFound)
	})

	return router
}
