package ratelimit

// Recorder receives the outcome of every admission check. Implementations must
// be safe for concurrent use; they are called outside the ledger lock.
type Recorder interface {
	RecordAdmission(guard string, admitted bool)
	// RecordError reports a check that could not consult its ledger. It is
	// never reported as a denial as well.
	RecordError(guard string)
}

// NoopRecorder discards every observation, so the hot path never checks for nil.
type NoopRecorder struct{}

func (NoopRecorder) RecordAdmission(string, bool) {}

func (NoopRecorder) RecordError(string) {}
