package draft

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"momentummail/backend/internal/domain"
)

const (
	DefaultModel       = "openai/gpt-4o"
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.7
)

// Config AI 服务配置
type Config struct {
	BaseURL       string  // OpenAI 兼容接口地址，留空使用官方地址
	APIKey        string  // 接口密钥
	Model         string  // 模型名称
	MaxTokens     int     // 最大输出 token 数
	Temperature   float32 // 采样温度
	RatePerMinute int     // 每分钟最多请求数，<=0 表示不限制
}

// OpenAIGenerator 通过 OpenAI 兼容的 chat completions 接口生成草稿
type OpenAIGenerator struct {
	client  *openai.Client
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewOpenAIGenerator 创建生成器
func NewOpenAIGenerator(cfg Config, log *zap.Logger) *OpenAIGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		limiter: limiter,
		log:     log,
	}
}

// Generate 实现 Generator
func (g *OpenAIGenerator) Generate(ctx context.Context, email domain.TrackedEmail) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", ErrGeneration, err)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(email)},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		g.log.Warn("AI service request failed",
			zap.String("email_id", email.ID),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: AI returned no choices", ErrGeneration)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: AI returned empty content", ErrGeneration)
	}
	return content, nil
}

// BuildPrompt 构造跟进草稿提示词
func BuildPrompt(email domain.TrackedEmail) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant for a tool called MomentumMail that helps users follow up on emails.\n")
	b.WriteString("A user sent an email and has not received a response.\n")
	b.WriteString("Your task is to write a polite, concise, and professional follow-up email draft.\n")
	b.WriteString("Keep it short and to the point, under 75 words.\n")
	b.WriteString("Do not include a subject line, only the body of the email.\n")
	b.WriteString("Original Email Details:\n")
	fmt.Fprintf(&b, "- Recipient: %s\n", email.Recipient)
	fmt.Fprintf(&b, "- Subject: %q\n", email.Subject)
	fmt.Fprintf(&b, "- Sent: %s\n", email.SentAt.UTC().Format("Mon Jan 02 2006"))
	b.WriteString("Generate the follow-up email body now.")
	return b.String()
}
