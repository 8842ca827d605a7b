package service

import (
	"context"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/repository"
)

var thousand = decimal.NewFromInt(1000)

// UsageService 用量计费
// 按助手回复的字符数计费，金额使用 decimal 避免浮点误差
type UsageService struct {
	pricePer1K decimal.Decimal // 每千字符价格
}

// NewUsageService 创建 UsageService 实例
// 参数:
//   - pricePer1K: 每千字符价格，十进制字符串，如 "0.002"
//
// 返回:
//   - *UsageService: 服务实例
//   - error: 价格格式错误
func NewUsageService(pricePer1K string) (*UsageService, error) {
	price, err := decimal.NewFromString(pricePer1K)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid price %q", pricePer1K)
	}
	if price.IsNegative() {
		return nil, errors.Errorf("negative price %s", price)
	}
	return &UsageService{pricePer1K: price}, nil
}

// Cost 计算指定字符数的费用
func (s *UsageService) Cost(characters int) decimal.Decimal {
	return s.pricePer1K.Mul(decimal.NewFromInt(int64(characters))).Div(thousand)
}

// Record 记录一条助手回复的用量
// 同一条消息重复记录时忽略
func (s *UsageService) Record(ctx context.Context, ec *ExecutionContext, threadID, messageID, text string) error {
	chars := utf8.RuneCountInString(text)
	return ec.Datastore.RecordUsage(ctx, &model.UsageRecord{
		ThreadID:   threadID,
		MessageID:  messageID,
		Characters: chars,
		Cost:       s.Cost(chars),
	})
}

// Summary 汇总当前组织范围的用量
func (s *UsageService) Summary(ctx context.Context, ec *ExecutionContext) (*repository.UsageSummary, error) {
	return ec.Datastore.UsageSummary(ctx)
}
