package model

// PoolMeta describes a V3 pool as read from chain. Address through TickSpacing are
// immutable; Registered, Liquidity and Slot0 are filled only for one-off reports.
type PoolMeta struct {
	Address     string     `json:"address,omitempty"`
	Registered  string     `json:"registered,omitempty"`
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	Fee         uint32     `json:"fee"`
	TickSpacing int32      `json:"tick_spacing,omitempty"`
	Liquidity   string     `json:"liquidity,omitempty"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
}

// PoolSlot0 is the price part of slot0.
type PoolSlot0 struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
	Unlocked     bool   `json:"unlocked"`
}

// TokenMeta is ERC20 metadata used to render amounts.
type TokenMeta struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
	Decimals uint8  `json:"decimals"`
}
