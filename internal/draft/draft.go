package draft

import (
	"context"
	"errors"

	"momentummail/backend/internal/domain"
)

// ErrGeneration 表示草稿生成失败（网络、认证或空响应）
var ErrGeneration = errors.New("follow-up draft generation failed")

// Generator 为到期邮件生成跟进草稿正文
type Generator interface {
	Generate(ctx context.Context, email domain.TrackedEmail) (string, error)
}

// Unconfigured 在未配置 AI 服务时使用，总是返回 ErrGeneration
type Unconfigured struct{}

// Generate 实现 Generator
func (Unconfigured) Generate(context.Context, domain.TrackedEmail) (string, error) {
	return "", errors.Join(ErrGeneration, errors.New("AI service is not configured"))
}

// GeneratorFunc 允许普通函数作为 Generator
type GeneratorFunc func(ctx context.Context, email domain.TrackedEmail) (string, error)

// Generate 实现 Generator
func (f GeneratorFunc) Generate(ctx context.Context, email domain.TrackedEmail) (string, error) {
	return f(ctx, email)
}
