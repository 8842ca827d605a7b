package relay

// FallbackNotice 额度耗尽时返回给用户的固定提示
const FallbackNotice = "The AI service has reached its usage quota and can't respond right now. Your message has been saved; please try again later."

// FallbackMessage 生成额度耗尽时的助手回复
// 有用户消息时在提示后附上 "You said:\n" 和原文
func FallbackMessage(userText string) string {
	if userText == "" {
		return FallbackNotice
	}
	return FallbackNotice + "\n\nYou said:\n" + userText
}
