package entity

// Run source constants
const (
	SourceAPI = "API"
	SourceCLI = "CLI"
)

// Notification status constants for ScreeningRun
const (
	NotifyStatusSkipped = "SKIPPED"
	NotifyStatusSent    = "SENT"
	NotifyStatusFailed  = "FAILED"
)
