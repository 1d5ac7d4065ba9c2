package workflow

// Trigger represents an event that moves an evaluation forward
type Trigger string

const (
	TriggerValidate Trigger = "VALIDATE"
	TriggerExtract  Trigger = "EXTRACT"
	TriggerCheck    Trigger = "CHECK"
	TriggerFinish   Trigger = "FINISH"
	TriggerAbort    Trigger = "ABORT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
