package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pocket-chat-server/internal/agent"
)

// State 一次转发的状态
//
//	INIT -> STREAMING -> DONE | FALLBACK | ABORTED | ERRORED
type State string

const (
	StateInit      State = "init"
	StateStreaming State = "streaming"
	StateDone      State = "done"
	StateFallback  State = "fallback"
	StateAborted   State = "aborted"
	StateErrored   State = "errored"
)

const defaultPersistTimeout = 10 * time.Second

// Opener 打开模型输出流
type Opener func(ctx context.Context) (agent.Stream, error)

// Reply 需要保存的助手回复
type Reply struct {
	Text  string
	State State // StateDone / StateFallback / StateAborted
}

// PersistFunc 保存助手回复
type PersistFunc func(ctx context.Context, reply Reply) error

// Run 一次转发的输入
type Run struct {
	Writer   *Writer
	Open     Opener
	Persist  PersistFunc
	UserText string // 最后一条用户消息，用于额度耗尽时的回复
}

// Bridge 把模型流转成 SSE
// 每一帧携带截至当前的完整文本（累积值，不是增量）
type Bridge struct {
	logger         *slog.Logger
	persistTimeout time.Duration
}

// NewBridge 创建 Bridge
func NewBridge(logger *slog.Logger) *Bridge {
	return &Bridge{logger: logger, persistTimeout: defaultPersistTimeout}
}

// Run 执行一次转发
// 只有在还没有写出任何字节时才返回错误（打开模型流失败且不是额度问题），
// 调用方据此返回普通的 HTTP 错误；其他情况都已经在 SSE 中处理完毕
func (b *Bridge) Run(ctx context.Context, r Run) (State, error) {
	defer r.Writer.Close()

	stream, err := r.Open(ctx)
	if err != nil {
		switch {
		case agent.IsQuota(err):
			b.logger.WarnContext(ctx, "agent quota exceeded before streaming", "error", err)
			return b.fallback(ctx, r), nil
		case ctx.Err() != nil || agent.IsClientAbort(err):
			return StateAborted, nil
		default:
			return StateErrored, err
		}
	}
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		if ctx.Err() != nil {
			return b.abort(ctx, r, reply.String()), nil
		}
		reply.WriteString(stream.Text())
		if err := r.Writer.WriteText(reply.String()); err != nil {
			b.logger.DebugContext(ctx, "client write failed", "error", err)
			return b.abort(ctx, r, reply.String()), nil
		}
	}

	if err := stream.Err(); err != nil {
		switch {
		case agent.IsQuota(err):
			b.logger.WarnContext(ctx, "agent quota exceeded while streaming", "error", err)
			return b.fallback(ctx, r), nil
		case ctx.Err() != nil || agent.IsClientAbort(err):
			return b.abort(ctx, r, reply.String()), nil
		default:
			b.logger.ErrorContext(ctx, "agent stream failed", "error", err)
			_ = r.Writer.WriteError(err.Error())
			return StateErrored, nil
		}
	}

	if ctx.Err() != nil {
		return b.abort(ctx, r, reply.String()), nil
	}
	if err := r.Writer.WriteDone(); err != nil {
		return b.abort(ctx, r, reply.String()), nil
	}
	b.persistBestEffort(ctx, r.Persist, Reply{Text: reply.String(), State: StateDone})
	return StateDone, nil
}

// fallback 写入一条额度耗尽的回复并保存
// 客户端已经断开时仍然保存，刷新后可以看到
func (b *Bridge) fallback(ctx context.Context, r Run) State {
	text := FallbackMessage(r.UserText)
	if err := r.Writer.WriteText(text); err == nil {
		_ = r.Writer.WriteDone()
	}
	b.persistBestEffort(ctx, r.Persist, Reply{Text: text, State: StateFallback})
	return StateFallback
}

// abort 停止写入，已累积的文本尽力保存
func (b *Bridge) abort(ctx context.Context, r Run, text string) State {
	b.logger.InfoContext(ctx, "chat stream aborted", "chars", len(text))
	b.persistBestEffort(ctx, r.Persist, Reply{Text: text, State: StateAborted})
	return StateAborted
}

// persistBestEffort 保存助手回复，失败只记日志
// 请求可能已被取消，这里使用脱离取消信号、带超时的 context
func (b *Bridge) persistBestEffort(ctx context.Context, persist PersistFunc, reply Reply) {
	if persist == nil || reply.Text == "" {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.persistTimeout)
	defer cancel()

	start := time.Now()
	if err := persist(pctx, reply); err != nil {
		b.logger.ErrorContext(ctx, "persist assistant message failed",
			"error", err,
			"state", reply.State,
			"chars", len(reply.Text),
			"elapsed", time.Since(start),
		)
		return
	}
	b.logger.DebugContext(ctx, "assistant message persisted", "state", reply.State, "chars", len(reply.Text), "elapsed", time.Since(start))
}
