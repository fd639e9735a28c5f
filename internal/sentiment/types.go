package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Label 为情绪粗分类。
type Label string

const (
	LabelBullish Label = "bullish"
	LabelBearish Label = "bearish"
	LabelNeutral Label = "neutral"
)

// Summary 为单个标的的情绪摘要。Score 位于[0,1]，0.5 为中性。
type Summary struct {
	Symbol    string   `json:"symbol"`
	Score     float64  `json:"score"`
	Label     Label    `json:"label"`
	Catalysts []string `json:"catalysts,omitempty"`
}

// Validate 校验情绪摘要字段合法性。
func (s Summary) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return errors.New("sentiment: symbol 不能为空")
	}
	if s.Score < 0 || s.Score > 1 {
		return fmt.Errorf("sentiment: score 必须位于[0,1]，当前为 %f", s.Score)
	}
	switch Label(strings.ToLower(string(s.Label))) {
	case LabelBullish, LabelBearish, LabelNeutral:
	default:
		return fmt.Errorf("sentiment: label 取值非法: %s", s.Label)
	}
	return nil
}

// Provider 为情绪数据提供方。返回 nil 表示该标的暂无情绪数据，
// 属于正常情况而非错误。
type Provider interface {
	GetSentiment(ctx context.Context, symbol string) (*Summary, error)
}
