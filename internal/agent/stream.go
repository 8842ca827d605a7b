package agent

// eventStream SDK 返回的 SSE 事件流
// openai-go 和 anthropic-sdk-go 的 ssestream.Stream 都满足这个接口
type eventStream[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

// chunkStream 把厂商事件流转换为纯文本流，跳过不含文本的事件
type chunkStream[T any] struct {
	provider string
	src      eventStream[T]
	text     func(T) string

	current string
	primed  bool // 打开时预读的事件尚未消费
	done    bool
}

// openChunkStream 预读第一个事件
// SDK 在第一次 Next 时才真正发出 HTTP 请求，预读让鉴权和额度错误作为打开错误返回
func openChunkStream[T any](provider string, src eventStream[T], text func(T) string) (*chunkStream[T], error) {
	s := &chunkStream[T]{provider: provider, src: src, text: text}
	if src.Next() {
		s.primed = true
		return s, nil
	}
	if err := src.Err(); err != nil {
		_ = src.Close()
		return nil, NewProviderError(provider, err)
	}
	s.done = true
	return s, nil
}

func (s *chunkStream[T]) Next() bool {
	for !s.done {
		if s.primed {
			s.primed = false
		} else if !s.src.Next() {
			s.done = true
			break
		}
		if t := s.text(s.src.Current()); t != "" {
			s.current = t
			return true
		}
	}
	return false
}

func (s *chunkStream[T]) Text() string {
	return s.current
}

func (s *chunkStream[T]) Err() error {
	if err := s.src.Err(); err != nil {
		return NewProviderError(s.provider, err)
	}
	return nil
}

func (s *chunkStream[T]) Close() error {
	return s.src.Close()
}
