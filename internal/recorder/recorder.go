// Package recorder keeps a history of digest runs and the analyses they
// produced.
package recorder

import (
	"context"
	"time"

	"StockPulse/internal/model"
)

// AnalysisSnapshot is one symbol's analysis at the time of a digest.
type AnalysisSnapshot struct {
	Time           time.Time
	Symbol         string
	Price          float64
	ChangePercent  float64
	Factors        []model.FactorScore
	TotalScore     float64
	Recommendation model.Recommendation
	RiskLevel      model.RiskLevel
	TargetPrice    float64
	Origin         string
}

// DigestEvent records one digest run.
type DigestEvent struct {
	Time      time.Time
	Symbols   int
	Analyzed  int
	Headlines int
	Sent      bool
	Error     string
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordAnalysis(ctx context.Context, snap *AnalysisSnapshot) error
	RecordDigest(ctx context.Context, evt *DigestEvent) error
	// RecentAnalyses returns up to limit snapshots for symbol, newest first.
	RecentAnalyses(ctx context.Context, symbol string, limit int) ([]AnalysisSnapshot, error)
	Close() error
}
