package models

// Requests for forecasting HTTP endpoints. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Explain bool `query:"explain" json:"explain" default:"false"`
}

type TrainRequest struct {
	Strategy string `query:"strategy" json:"strategy" default:"fresh" validate:"oneof=fresh reuse"`
	Trials   int    `query:"trials" json:"trials" default:"25" validate:"gte=1,lte=500"`
}

type SummariesRequest struct {
	Days int `query:"days" json:"days" default:"120" validate:"gte=1,lte=1825"`
}
