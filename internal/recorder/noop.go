package recorder

import "context"

// NoopRecorder is used when no history database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordAnalysis(context.Context, *AnalysisSnapshot) error { return nil }
func (n *NoopRecorder) RecordDigest(context.Context, *DigestEvent) error        { return nil }
func (n *NoopRecorder) Close() error                                            { return nil }

func (n *NoopRecorder) RecentAnalyses(context.Context, string, int) ([]AnalysisSnapshot, error) {
	return nil, nil
}
