package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
)

// ErrWriterClosed 写入已关闭的 Writer
var ErrWriterClosed = errors.New("sse writer closed")

// 帧类型
const (
	FrameText  = "text"
	FrameError = "error"
)

var doneFrame = []byte("data: [DONE]\n\n")

// Frame 一条 SSE 数据帧
type Frame struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Writer 向 HTTP 响应写 SSE 帧
// 第一次写入时才提交 200 和响应头，在此之前调用方仍然可以返回普通的 JSON 错误
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	closed  bool
}

// NewWriter 创建 Writer
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// Started 是否已经提交了响应头
func (w *Writer) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// WriteText 写入文本帧
func (w *Writer) WriteText(text string) error {
	return w.WriteFrame(Frame{Type: FrameText, Value: text})
}

// WriteError 写入错误帧
func (w *Writer) WriteError(message string) error {
	return w.WriteFrame(Frame{Type: FrameError, Value: message})
}

// WriteFrame 写入 data: <json>\n\n 并立即 flush
func (w *Writer) WriteFrame(f Frame) error {
	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode 会追加一个 \n
	if err := enc.Encode(f); err != nil {
		return err
	}
	buf.WriteByte('\n')
	return w.write(buf.Bytes())
}

// WriteDone 写入结束标记 data: [DONE]
func (w *Writer) WriteDone() error {
	return w.write(doneFrame)
}

// Close 结束写入，重复调用无副作用
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *Writer) write(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	if !w.started {
		h := w.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		w.w.WriteHeader(http.StatusOK)
		w.started = true
	}

	if _, err := w.w.Write(p); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
