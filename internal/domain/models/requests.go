package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type AnalyzeRequest struct {
	Symbol1 string `query:"symbol1" json:"symbol1" validate:"required"`
	Symbol2 string `query:"symbol2" json:"symbol2" validate:"required"`
	Days    int    `query:"days" json:"days" default:"90" validate:"gte=15,lte=1000"`
	Cutoff  string `query:"cutoff" json:"cutoff,omitempty"`
}

type TradeRequest struct {
	Pair string `json:"pair" validate:"required"`
}

type HistoryRequest struct {
	Pair  string `query:"pair" json:"pair,omitempty"`
	Limit int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

// AnalyzeResult bundles the verdict and divergence profile for one pair.
// Spread is the hedged log-spread series the numbers were computed from;
// it is not serialized.
type AnalyzeResult struct {
	Verdict FitnessVerdict    `json:"verdict"`
	Profile DivergenceProfile `json:"profile"`
	Spread  []float64         `json:"-"`
}
