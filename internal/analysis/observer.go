package analysis

import "time"

// Observer receives aggregate outcomes. metrics.Recorder implements it.
type Observer interface {
	RecordAnalysis(status string, elapsed time.Duration)
	RecordRefresh(total, omitted int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordAnalysis(string, time.Duration)   {}
func (nopObserver) RecordRefresh(int, int, time.Duration) {}
