package model

// Market represents an exchange and the index symbol tracking it.
// Only LastDate changes after creation.
type Market struct {
	ID        int64  `json:"id" db:"id"`
	Code      string `json:"code" db:"code"`
	Name      string `json:"name" db:"name"`
	IndexCode string `json:"index_code" db:"index_code"`
	LastDate  Date   `json:"last_date" db:"last_date"`
}

// SymbolType holds the trading parameters shared by symbols of one kind.
// Rows are referenced, never mutated at runtime.
type SymbolType struct {
	ID           int64 `json:"id" db:"id"`
	Tick         Price `json:"tick" db:"tick"`
	TickValue    Price `json:"tick_value" db:"tick_value"`
	Precision    int   `json:"precision" db:"precision"`
	MinTradeUnit int64 `json:"min_trade_unit" db:"min_trade_unit"`
	MaxTradeUnit int64 `json:"max_trade_unit" db:"max_trade_unit"`
}

// OpenEndDate marks a symbol that is still listed.
const OpenEndDate Date = 99999999

// Symbol is one listed security. Rows are append-only history: delisting
// flips Valid and sets EndDate, the row itself is never deleted.
type Symbol struct {
	ID        int64  `json:"id" db:"id"`
	MarketID  int64  `json:"market_id" db:"market_id"`
	Code      string `json:"code" db:"code"`
	Name      string `json:"name" db:"name"`
	TypeID    int64  `json:"type_id" db:"type_id"`
	Valid     bool   `json:"valid" db:"valid"`
	StartDate Date   `json:"start_date" db:"start_date"`
	EndDate   Date   `json:"end_date" db:"end_date"`
}

// WeightAdjustment is one corporate action record, amounts per ten shares.
// Append-only, ordered by ex-date per symbol.
type WeightAdjustment struct {
	ID          int64 `json:"id" db:"id"`
	SymbolID    int64 `json:"symbol_id" db:"symbol_id"`
	ExDate      Date  `json:"ex_date" db:"ex_date"`
	BonusShares int64 `json:"bonus_shares" db:"bonus_shares"`
	RightsIssue int64 `json:"rights_issue" db:"rights_issue"`
	RightsPrice Price `json:"rights_price" db:"rights_price"`
	Dividend    Price `json:"dividend" db:"dividend"`
}

// Catalog is the metadata snapshot produced by a bulk load.
type Catalog struct {
	Markets  []Market
	Types    []SymbolType
	Symbols  []Symbol
	Weights  []WeightAdjustment
	Holidays []Date
}
