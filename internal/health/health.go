package health

import (
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"momentummail/backend/internal/storage"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health    healthcheck.Handler
	store     storage.StateRepository
	logger    *zap.Logger
	startTime time.Time
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.StateRepository, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health:    healthcheck.NewHandler(),
		store:     store,
		logger:    logger,
		startTime: time.Now(),
	}

	// 存储不可用时只影响就绪状态
	hc.health.AddReadinessCheck("storage", hc.checkStorage)
	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))

	return hc
}

func (hc *HealthChecker) checkStorage() error {
	if err := hc.store.Health(); err != nil {
		hc.logger.Warn("storage health check failed", zap.Error(err))
		return err
	}
	return nil
}

// LiveHandler 存活检查
func (hc *HealthChecker) LiveHandler() http.Handler {
	return http.HandlerFunc(hc.health.LiveEndpoint)
}

// ReadyHandler 就绪检查
func (hc *HealthChecker) ReadyHandler() http.Handler {
	return http.HandlerFunc(hc.health.ReadyEndpoint)
}

// CheckHealth 执行健康检查，返回各项状态
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := map[string]string{
		"storage":   "OK",
		"uptime":    time.Since(hc.startTime).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := hc.store.Health(); err != nil {
		results["storage"] = "ERROR: " + err.Error()
	}
	return results
}

// Healthy 存储是否可用
func (hc *HealthChecker) Healthy() bool {
	return hc.store.Health() == nil
}
