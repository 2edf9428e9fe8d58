package types

// OrderFill 是一笔市价单的成交回报。Price 为 0 表示交易所未返回均价。
type OrderFill struct {
	OrderID  string  `json:"order_id"`
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	DryRun   bool    `json:"dry_run,omitempty"`
}
