package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdriven/internal/filter"
	"newsdriven/internal/logger"
	"newsdriven/internal/risk"
	"newsdriven/internal/types"
)

const defaultQueueSize = 128

// Reporter 把交易事件渲染成消息并异步推送；队列满时丢弃并告警。
type Reporter struct {
	out   TextNotifier
	queue chan string
	now   func() time.Time
}

func NewReporter(out TextNotifier, queueSize int) *Reporter {
	if out == nil {
		out = Nop{}
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Reporter{out: out, queue: make(chan string, queueSize), now: time.Now}
}

// Run 发送排队的消息直到 ctx 结束。发送失败只记录日志。
func (r *Reporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-r.queue:
			if err := r.out.SendText(text); err != nil {
				logger.Warnf("[notify] send failed: %v", err)
			}
		}
	}
}

func (r *Reporter) enqueue(msg StructuredMessage) {
	msg.Timestamp = r.now()
	select {
	case r.queue <- msg.RenderMarkdown():
	default:
		logger.Warnf("[notify] queue full, dropping %q", msg.Title)
	}
}

func (r *Reporter) OnFiltered(sig types.Signal, v filter.Verdict) {
	if !v.Passed {
		return
	}
	r.enqueue(StructuredMessage{
		Icon:  "📡",
		Title: fmt.Sprintf("信号 %s %s", sig.Symbol, sideLabel(sig.Side)),
		Sections: []MessageSection{
			{Title: "来源", Lines: []string{"作者: " + sig.Source.Author, "消息: " + preview(sig.Source.Text, 200)}},
			{Title: "判定", Lines: []string{fmt.Sprintf("置信度: %.1f", sig.Confidence), v.Reason}},
		},
	})
}

func (r *Reporter) OnOpened(sig types.Signal, pos types.Position, fill types.OrderFill) {
	lines := []string{
		fmt.Sprintf("数量: %.8f", pos.Quantity),
		fmt.Sprintf("开仓价: %.8f", pos.EntryPrice),
		fmt.Sprintf("止损: %.2f%%", pos.Strategy.StopLossPct*100),
	}
	for i, tier := range pos.Strategy.TakeProfit {
		lines = append(lines, fmt.Sprintf("止盈%d: +%.2f%% 平 %.0f%%", i+1, tier.ThresholdPct*100, tier.CloseFraction*100))
	}
	footer := "订单: " + fill.OrderID
	if fill.DryRun {
		footer += " (dry-run)"
	}
	r.enqueue(StructuredMessage{
		Icon:     "✅",
		Title:    fmt.Sprintf("开仓 %s %s", pos.Symbol, sideLabel(pos.Side)),
		Sections: []MessageSection{{Title: "持仓 " + pos.ID, Lines: lines}},
		Footer:   footer,
	})
}

func (r *Reporter) OnFailed(sig types.Signal, err error) {
	r.enqueue(StructuredMessage{
		Icon:     "⚠️",
		Title:    fmt.Sprintf("未下单 %s %s", sig.Symbol, sideLabel(sig.Side)),
		Sections: []MessageSection{{Lines: []string{errText(err)}}},
	})
}

func (r *Reporter) OnExit(evt risk.ExitEvent) {
	icon, title := "🎯", "止盈"
	if evt.Decision.Reason == types.ReasonStopLoss {
		icon, title = "🛑", "止损"
	}
	if evt.Err != nil {
		r.enqueue(StructuredMessage{
			Icon:     "⚠️",
			Title:    fmt.Sprintf("%s平仓失败 %s", title, evt.Position.Symbol),
			Sections: []MessageSection{{Title: "持仓 " + evt.PositionID, Lines: []string{errText(evt.Err)}}},
		})
		return
	}
	r.enqueue(StructuredMessage{
		Icon:  icon,
		Title: fmt.Sprintf("%s %s %s", title, evt.Position.Symbol, sideLabel(evt.Position.Side)),
		Sections: []MessageSection{{Title: "持仓 " + evt.PositionID, Lines: []string{
			fmt.Sprintf("价格: %.8f", evt.Price),
			fmt.Sprintf("平仓数量: %.8f", evt.ClosedQty),
			fmt.Sprintf("剩余: %.8f", evt.Position.RemainingQty),
			fmt.Sprintf("本次盈亏: %.4f", evt.PnL),
			fmt.Sprintf("累计盈亏: %.4f", evt.Position.RealizedPnL),
		}}},
	})
}

func sideLabel(s types.Side) string {
	if s == types.SideShort {
		return "做空"
	}
	return "做多"
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}
