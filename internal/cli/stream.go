package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"pocket-chat-server/internal/relay"
)

// ErrStreamIncomplete 连接在 [DONE] 之前结束
var ErrStreamIncomplete = errors.New("回复未完整结束")

// maxFrameSize 单帧最大长度，帧里是完整的累计回复
const maxFrameSize = 4 * 1024 * 1024

// ReadStream 逐帧读取 SSE 回复，直到 [DONE]
// 只处理 data: 行，空行分隔帧
func ReadStream(r io.Reader, fn func(frame relay.Frame) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}

		var frame relay.Frame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return fmt.Errorf("无法解析的回复帧: %w", err)
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ErrStreamIncomplete
}

// DeltaPrinter 把累计文本转换成增量输出
type DeltaPrinter struct {
	w       io.Writer
	printed string
}

// NewDeltaPrinter 创建 DeltaPrinter
func NewDeltaPrinter(w io.Writer) *DeltaPrinter {
	return &DeltaPrinter{w: w}
}

// Print 输出 full 中尚未输出的部分
// full 不以已输出内容为前缀时另起一行输出全文
func (p *DeltaPrinter) Print(full string) {
	if suffix, ok := strings.CutPrefix(full, p.printed); ok {
		fmt.Fprint(p.w, suffix)
	} else {
		fmt.Fprint(p.w, "\n"+full)
	}
	p.printed = full
}
