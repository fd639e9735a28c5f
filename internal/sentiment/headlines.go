package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"signal-trader/internal/config"
)

const (
	defaultNewsBaseURL      = "https://www.alphavantage.co/query"
	defaultMaxHeadlines     = 10
	defaultNewsRatePerMin   = 5
	defaultHeadlinesTimeout = 10 * time.Second
)

// HeadlineClient 从 Alpha Vantage 的新闻接口拉取标的相关标题。
// 免费档限频较严，内置按分钟的限流器。
type HeadlineClient struct {
	apiKey       string
	baseURL      string
	maxHeadlines int
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *zap.Logger
}

// NewHeadlineClient 使用给定配置创建新闻标题客户端。
func NewHeadlineClient(cfg config.NewsConfig, logger *zap.Logger) (*HeadlineClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sentiment: news.api_key 不能为空")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNewsBaseURL
	}
	if cfg.MaxHeadlines <= 0 {
		cfg.MaxHeadlines = defaultMaxHeadlines
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = defaultNewsRatePerMin
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHeadlinesTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HeadlineClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		maxHeadlines: cfg.MaxHeadlines,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimitPerMinute)), 1),
		logger:       logger,
	}, nil
}

var _ HeadlineSource = (*HeadlineClient)(nil)

// FetchHeadlines 返回标的最新新闻标题，最多 maxHeadlines 条。
// 无相关新闻时返回空切片，不视为错误。
func (c *HeadlineClient) FetchHeadlines(ctx context.Context, symbol string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sentiment: 新闻限流等待中断: %w", err)
	}

	params := url.Values{
		"function": {"NEWS_SENTIMENT"},
		"tickers":  {symbol},
		"sort":     {"LATEST"},
		"limit":    {strconv.Itoa(c.maxHeadlines)},
		"apikey":   {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("sentiment: 构造新闻请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sentiment: 拉取 %s 新闻请求失败: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sentiment: 新闻接口返回 HTTP %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Feed []struct {
			Title string `json:"title"`
		} `json:"feed"`
		ErrorMessage string `json:"Error Message"`
		Information  string `json:"Information"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("sentiment: 解析新闻响应失败: %w", err)
	}

	// 接口限频与参数错误也会以 200 返回，需单独识别。
	if payload.ErrorMessage != "" {
		return nil, fmt.Errorf("sentiment: 新闻接口错误: %s", payload.ErrorMessage)
	}
	if payload.Information != "" {
		return nil, fmt.Errorf("sentiment: 新闻接口限频: %s", payload.Information)
	}

	headlines := make([]string, 0, len(payload.Feed))
	for _, item := range payload.Feed {
		if item.Title == "" {
			continue
		}
		headlines = append(headlines, item.Title)
		if len(headlines) >= c.maxHeadlines {
			break
		}
	}

	c.logger.Debug("新闻标题拉取完成",
		zap.String("symbol", symbol),
		zap.Int("count", len(headlines)),
	)

	return headlines, nil
}
