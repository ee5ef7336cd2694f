package observability

import "time"

// Recorder receives the service-level measurements. Implementations must be
// safe for concurrent use.
type Recorder interface {
	ObserveSearch(searchType string, duration time.Duration, hits int)
	ObserveTraversal(strategy string, nodes int, truncated bool)
	ObserveSync(success, failure, conflicts int, duration time.Duration)
	ObserveIndexOperation(operation string, err error)
	IncProviderFailure(provider string, transient bool)
}

// NopRecorder drops everything.
type NopRecorder struct{}

func (NopRecorder) ObserveSearch(string, time.Duration, int) {}
func (NopRecorder) ObserveTraversal(string, int, bool)       {}
func (NopRecorder) ObserveSync(int, int, int, time.Duration) {}
func (NopRecorder) ObserveIndexOperation(string, error)      {}
func (NopRecorder) IncProviderFailure(string, bool)          {}

// Recorders fans measurements out to several recorders.
type Recorders []Recorder

func (rs Recorders) ObserveSearch(searchType string, d time.Duration, hits int) {
	for _, r := range rs {
		r.ObserveSearch(searchType, d, hits)
	}
}

func (rs Recorders) ObserveTraversal(strategy string, nodes int, truncated bool) {
	for _, r := range rs {
		r.ObserveTraversal(strategy, nodes, truncated)
	}
}

func (rs Recorders) ObserveSync(success, failure, conflicts int, d time.Duration) {
	for _, r := range rs {
		r.ObserveSync(success, failure, conflicts, d)
	}
}

func (rs Recorders) ObserveIndexOperation(operation string, err error) {
	for _, r := range rs {
		r.ObserveIndexOperation(operation, err)
	}
}

func (rs Recorders) IncProviderFailure(provider string, transient bool) {
	for _, r := range rs {
		r.IncProviderFailure(provider, transient)
	}
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
