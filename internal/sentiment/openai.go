package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"signal-trader/internal/config"
)

// HeadlineSource 提供标的相关新闻标题，由外部数据源实现。
type HeadlineSource interface {
	FetchHeadlines(ctx context.Context, symbol string) ([]string, error)
}

// Analyzer 通过大模型将新闻标题归纳为情绪摘要。
type Analyzer struct {
	cfg       config.SentimentConfig
	headlines HeadlineSource
	logger    *zap.Logger
	sdk       *openai.Client
}

// NewAnalyzer 使用给定配置创建情绪分析器。
func NewAnalyzer(cfg config.SentimentConfig, headlines HeadlineSource, logger *zap.Logger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sentiment: api_key 不能为空")
	}
	if headlines == nil {
		return nil, errors.New("sentiment: 缺少新闻标题数据源")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	sdkCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &Analyzer{
		cfg:       cfg,
		headlines: headlines,
		logger:    logger,
		sdk:       openai.NewClientWithConfig(sdkCfg),
	}, nil
}

var _ Provider = (*Analyzer)(nil)

// GetSentiment 拉取标的新闻并生成情绪摘要，无新闻时返回 nil。
func (a *Analyzer) GetSentiment(ctx context.Context, symbol string) (*Summary, error) {
	headlines, err := a.headlines.FetchHeadlines(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("sentiment: 拉取 %s 新闻失败: %w", symbol, err)
	}
	if len(headlines) == 0 {
		return nil, nil
	}

	return a.Analyze(ctx, symbol, headlines)
}

// Analyze 根据给定标题列表评估情绪。
func (a *Analyzer) Analyze(ctx context.Context, symbol string, headlines []string) (*Summary, error) {
	if a.cfg.Model == "" {
		return nil, errors.New("sentiment: model 不能为空")
	}

	response, err := a.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(symbol, headlines),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		a.logger.Error("调用情绪模型失败", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("sentiment: 调用模型失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, errors.New("sentiment: 模型返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	summary, err := parseSummary(rawContent)
	if err != nil {
		a.logger.Error("解析情绪摘要失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return nil, err
	}

	summary.Symbol = symbol
	summary.Label = Label(strings.ToLower(string(summary.Label)))
	if err := summary.Validate(); err != nil {
		return nil, err
	}

	a.logger.Info("情绪摘要生成成功",
		zap.String("symbol", symbol),
		zap.Float64("score", summary.Score),
		zap.String("label", string(summary.Label)),
	)

	return summary, nil
}

func buildPrompt(symbol string, headlines []string) string {
	var b strings.Builder
	b.WriteString("你是一名股票情绪分析师。请阅读以下关于 ")
	b.WriteString(symbol)
	b.WriteString(" 的新闻标题，输出严格的JSON：")
	b.WriteString(`{"score":0到1的情绪分,"label":"bullish|bearish|neutral","catalysts":["关键催化因素"]}`)
	b.WriteString("。0表示极度看空，0.5为中性，1表示极度看多。不要输出JSON以外的内容。\n\n")
	for i, h := range headlines {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, h))
	}
	return b.String()
}

func parseSummary(content string) (*Summary, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("sentiment: 模型输出未找到有效JSON: %s", content)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(content[start:end+1]), &summary); err != nil {
		return nil, fmt.Errorf("sentiment: 解析情绪JSON失败: %w", err)
	}

	return &summary, nil
}
