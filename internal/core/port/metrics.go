package port

// MetricsSink receives authentication counters. The surrounding
// application owns its lifecycle; usecases call it synchronously.
type MetricsSink interface {
	LoginAttempt(userType, method, outcome string)
	CodeSent(userType string)
	QrcodePoll(state string)
}
