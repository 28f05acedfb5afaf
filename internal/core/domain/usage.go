package domain

import "time"

// Period is a rolling aggregation window for usage reporting.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAll     Period = "all"
)

// ParsePeriod resolves a period name, defaulting to weekly.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAll:
		return Period(s)
	default:
		return PeriodWeekly
	}
}

// Cutoff returns the start of the period relative to now. The zero time is
// returned for PeriodAll, meaning no cutoff.
func (p Period) Cutoff(now time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return now.AddDate(0, 0, -1)
	case PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case PeriodMonthly:
		return now.AddDate(0, 0, -30)
	default:
		return time.Time{}
	}
}

// UsageRecord is one row of the cost ledger: a single model invocation with
// its token counts and computed cost. Append-only; never mutated.
type UsageRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Operation    string    `json:"operation"`
	Backend      string    `json:"backend"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
}

// UsageBucket accumulates records for one grouping key.
type UsageBucket struct {
	Count        int     `json:"count"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// add folds a record into the bucket.
func (b *UsageBucket) add(r UsageRecord) {
	b.Count++
	b.InputTokens += r.InputTokens
	b.OutputTokens += r.OutputTokens
	b.Cost += r.Cost
}

// UsageSummary is the aggregation of usage records over a period, grouped
// by operation and by model.
type UsageSummary struct {
	Period       Period                 `json:"period"`
	Count        int                    `json:"count"`
	InputTokens  int                    `json:"input_tokens"`
	OutputTokens int                    `json:"output_tokens"`
	TotalCost    float64                `json:"total_cost"`
	ByOperation  map[string]UsageBucket `json:"by_operation"`
	ByModel      map[string]UsageBucket `json:"by_model"`
}

// Summarize aggregates records into a summary. Records are assumed to be
// pre-filtered to the period; grouping never double-counts a record.
func Summarize(period Period, records []UsageRecord) UsageSummary {
	s := UsageSummary{
		Period:      period,
		ByOperation: make(map[string]UsageBucket),
		ByModel:     make(map[string]UsageBucket),
	}
	for _, r := range records {
		s.Count++
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		s.TotalCost += r.Cost

		op := s.ByOperation[r.Operation]
		op.add(r)
		s.ByOperation[r.Operation] = op

		m := s.ByModel[r.Model]
		m.add(r)
		s.ByModel[r.Model] = m
	}
	return s
}

// ModelPricing is the configured price per 1000 tokens for one model.
// Pricing is configuration, never a hardcoded constant: models absent from
// the pricing table cost zero.
type ModelPricing struct {
	InputPer1K  float64 `toml:"input_per_1k" json:"input_per_1k"`
	OutputPer1K float64 `toml:"output_per_1k" json:"output_per_1k"`
}

// Cost computes the cost of one invocation under this pricing.
func (p ModelPricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*p.InputPer1K + float64(outputTokens)/1000*p.OutputPer1K
}
