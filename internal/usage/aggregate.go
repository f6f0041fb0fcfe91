package usage

import (
	"math"
	"time"
)

// Bucket is the additive core of an aggregation: plain sums over a set of
// records. ByModel and ByHour reuse it one level deep.
type Bucket struct {
	Requests            int64   `json:"requests"`
	InputTokens         int64   `json:"inputTokens"`
	OutputTokens        int64   `json:"outputTokens"`
	CacheCreationTokens int64   `json:"cacheCreationTokens"`
	CacheReadTokens     int64   `json:"cacheReadTokens"`
	TotalTokens         int64   `json:"totalTokens"`
	Cost                float64 `json:"cost"`
	Errors              int64   `json:"errors"`
}

func (b *Bucket) add(rec *Record) {
	b.Requests++
	b.InputTokens += rec.InputTokens
	b.OutputTokens += rec.OutputTokens
	b.CacheCreationTokens += rec.CacheCreationTokens
	b.CacheReadTokens += rec.CacheReadTokens
	b.TotalTokens += rec.TotalTokens
	b.Cost += rec.TotalCost
	if rec.StatusCode >= 400 {
		b.Errors++
	}
}

// Aggregation is a Bucket plus derived figures and the byModel/byHour
// breakdowns.
type Aggregation struct {
	Bucket
	AvgInputTokens  float64            `json:"avgInputTokens"`
	AvgOutputTokens float64            `json:"avgOutputTokens"`
	ErrorRate       int                `json:"errorRate"`
	ByModel         map[string]*Bucket `json:"byModel"`
	ByHour          map[string]*Bucket `json:"byHour"`
}

// aggregate sums records into a fresh Aggregation. A nil or empty input
// yields the zero aggregation with empty maps.
func aggregate(records []*Record) *Aggregation {
	agg := &Aggregation{
		ByModel: make(map[string]*Bucket),
		ByHour:  make(map[string]*Bucket),
	}

	for _, rec := range records {
		agg.add(rec)

		model := rec.Model
		if model == "" {
			model = "unknown"
		}
		mb, ok := agg.ByModel[model]
		if !ok {
			mb = &Bucket{}
			agg.ByModel[model] = mb
		}
		mb.add(rec)

		hour := "00"
		if ts, err := time.Parse(TimestampLayout, rec.Timestamp); err == nil {
			hour = ts.UTC().Format("15")
		}
		hb, ok := agg.ByHour[hour]
		if !ok {
			hb = &Bucket{}
			agg.ByHour[hour] = hb
		}
		hb.add(rec)
	}

	if agg.Requests > 0 {
		agg.AvgInputTokens = float64(agg.InputTokens) / float64(agg.Requests)
		agg.AvgOutputTokens = float64(agg.OutputTokens) / float64(agg.Requests)
		agg.ErrorRate = int(math.Round(float64(agg.Errors) / float64(agg.Requests) * 100))
	}
	return agg
}
