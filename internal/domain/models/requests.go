package models

// Requests for the HTTP endpoints. Defined in domain for consistency and reuse.

type HistoryRequest struct {
	Symbol    string `param:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" validate:"required,oneof=M1 M5 M15 M30 H1"`
	Start     string `query:"start" validate:"required"`
	End       string `query:"end" validate:"required"`
}

type OverlayRequest struct {
	Symbol    string `param:"symbol" validate:"required"`
	Date      string `param:"date" validate:"required,datetime=2006-01-02"`
	Timeframe string `param:"timeframe" validate:"required"`
}
