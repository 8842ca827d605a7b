package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	goopenai "github.com/openai/openai-go"
	"github.com/tidwall/gjson"
)

// Kind 厂商错误的分类
type Kind string

const (
	// KindQuota 额度或余额耗尽，重试无意义
	KindQuota Kind = "quota"
	// KindTransient 限流、超时、服务端错误，稍后可重试
	KindTransient Kind = "transient"
	// KindFatal 其他错误
	KindFatal Kind = "fatal"
)

// quotaCode 额度耗尽时 OpenAI 兼容接口返回的错误码
const quotaCode = "insufficient_quota"

// JSON 错误体中表示额度问题的错误码
var quotaCodes = map[string]bool{
	quotaCode:                    true,
	"billing_hard_limit_reached": true,
	"billing_not_active":         true,
}

// 错误信息中表示额度耗尽的片段（小写）
var quotaMarkers = []string{
	quotaCode,
	"exceeded your current quota",
	"quota exceeded",
	"credit balance is too low",
	"billing",
}

// 错误信息中表示客户端断开的片段（小写）
var abortMarkers = []string{
	"aborted",
	"operation was canceled",
	"client disconnected",
	"broken pipe",
	"connection reset by peer",
}

// ProviderError 厂商调用失败
type ProviderError struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Code       string
	Err        error
}

// NewProviderError 包装 SDK 返回的错误并分类
func NewProviderError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	e := &ProviderError{Kind: Classify(err), Provider: provider, Err: err}

	var oe *goopenai.Error
	if errors.As(err, &oe) {
		e.StatusCode = oe.StatusCode
		e.Code = oe.Code
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		e.StatusCode = ae.StatusCode
	}
	return e
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify 判断错误类型
// 各家 SDK 的错误形态不一致：结构化错误、纯文本、JSON 字符串都可能出现，统一在这里识别
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.Kind != "" {
		return pe.Kind
	}

	var oe *goopenai.Error
	if errors.As(err, &oe) {
		if quotaCodes[oe.Code] || quotaCodes[oe.Type] {
			return KindQuota
		}
		return kindForStatus(oe.StatusCode)
	}

	var ae *anthropic.Error
	if errors.As(err, &ae) {
		if hasMarker(ae.RawJSON(), quotaMarkers) {
			return KindQuota
		}
		return kindForStatus(ae.StatusCode)
	}

	msg := err.Error()
	if hasQuotaCode(msg) || hasMarker(msg, quotaMarkers) {
		return KindQuota
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindFatal
}

// IsQuota 是否为额度耗尽
func IsQuota(err error) bool {
	return Classify(err) == KindQuota
}

// IsClientAbort 是否由客户端断开或请求取消引起
func IsClientAbort(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return hasMarker(err.Error(), abortMarkers)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusPaymentRequired:
		return KindQuota
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		return KindTransient
	default:
		return KindFatal
	}
}

func hasMarker(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// hasQuotaCode 在错误信息里查找 JSON 错误体的 error.code / code
// 也处理整个错误体被再次编码成 JSON 字符串的情况
func hasQuotaCode(s string) bool {
	s = strings.TrimSpace(s)
	if gjson.Valid(s) {
		if r := gjson.Parse(s); r.Type == gjson.String {
			return hasQuotaCode(r.String())
		}
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return false
	}
	body := s[start:]
	if !gjson.Valid(body) {
		return false
	}
	for _, path := range []string{"error.code", "code", "error.type", "type"} {
		if quotaCodes[gjson.Get(body, path).String()] {
			return true
		}
	}
	return false
}
