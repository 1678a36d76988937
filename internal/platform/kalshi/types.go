package kalshi

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiMarket represents a market as returned by the Kalshi REST API.
// Prices are in cents (0-100).
type KalshiMarket struct {
	Ticker      string  `json:"ticker"`
	EventTicker string  `json:"event_ticker"`
	Title       string  `json:"title"`
	Subtitle    string  `json:"subtitle"`
	Status      string  `json:"status"` // "active", "open", "closed", "settled", "finalized"
	YesBid      float64 `json:"yes_bid"`
	YesAsk      float64 `json:"yes_ask"`
	NoBid       float64 `json:"no_bid"`
	NoAsk       float64 `json:"no_ask"`
	LastPrice   float64 `json:"last_price"`
	Volume      int64   `json:"volume"`
	Volume24H   int64   `json:"volume_24h"`
	Liquidity   *int64  `json:"liquidity,omitempty"` // cents
	Category    string  `json:"category"`
	CloseTime   string  `json:"close_time"`
	Result      string  `json:"result"` // "yes", "no", "" (unsettled)
}

// MarketsQuery selects a page of markets.
type MarketsQuery struct {
	Limit  int
	Cursor string
	Status string // "open" for tradeable markets
}

// MarketsPage is one page of GET /markets.
type MarketsPage struct {
	Markets []KalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
