package domain

// DefaultSummaryPrompt is prepended to the transcript before it is sent to the model.
const DefaultSummaryPrompt = "Summarize this in a shortened form: "

// Cycle is one capture, transcribe, summarize and speak pass.
type Cycle struct {
	ID         string
	Transcript string
	Summary    string
}
