package agent

import "time"

// Turn outcomes reported to the Recorder.
const (
	OutcomeOK         = "ok"
	OutcomeDegraded   = "degraded"
	OutcomeModelError = "model_error"
)

// Recorder receives agent telemetry. metrics.Collector implements it.
type Recorder interface {
	ObserveModelCall(provider string, d time.Duration, err error)
	ObserveAction(action string, ok bool)
	ObserveTurn(outcome string, rounds int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveModelCall(string, time.Duration, error) {}
func (nopRecorder) ObserveAction(string, bool)                    {}
func (nopRecorder) ObserveTurn(string, int)                       {}
