package notifier

// TextNotifier 是最小的文本推送接口。
type TextNotifier interface {
	SendText(text string) error
}

// Nop 丢弃所有消息，未启用通知时使用。
type Nop struct{}

func (Nop) SendText(string) error { return nil }
