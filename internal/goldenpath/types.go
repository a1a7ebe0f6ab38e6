package goldenpath

import "time"

// RawPathRow is one session's navigation path within one bucket, as read
// from the purchase golden-path rollup.
type RawPathRow struct {
	PeriodType     string
	PeriodStart    time.Time
	StoreID        string
	Path           []string
	PurchasedItems []string
}

// Item is one mined golden path.
type Item struct {
	Sequence    []string `json:"sequence"`
	Support     int      `json:"support"`
	SuccessRate float64  `json:"successRate"`
	Coverage    float64  `json:"coverage"`
}

// ItemPaths attributes golden paths to one purchased item.
type ItemPaths struct {
	Item          string `json:"item"`
	TotalSessions int    `json:"totalSessions"`
	Top           []Item `json:"top"`
}

// Bucket is the engine's output for one (period_type, period_start,
// store_id) bucket. Recomputed fully on every run.
type Bucket struct {
	PeriodType      string      `json:"period_type"`
	PeriodStart     time.Time   `json:"period_start"`
	StoreID         string      `json:"store_id"`
	TotalSessions   int         `json:"totalSessions"`
	SuccessSessions int         `json:"successSessions"`
	Top             []Item      `json:"top"`
	TopByItem       []ItemPaths `json:"topByItem"`
}

// session is a reconstructed visitor session, alive only for one mining
// pass.
type session struct {
	seq       []string
	purchased []string
	ok        bool
}
