package models

// Requests for the signals HTTP endpoints. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	TF string `param:"tf" query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h 1d 3d 1w 1M"`
}

type SignalRequest struct {
	Symbol string `param:"symbol" query:"symbol" json:"symbol" validate:"required"`
	TF     string `param:"tf" query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h 1d 3d 1w 1M"`
}

type HistoryRequest struct {
	Symbol string `param:"symbol" query:"symbol" json:"symbol" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=200"`
}
