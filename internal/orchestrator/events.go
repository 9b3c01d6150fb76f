package orchestrator

// Event is a client turn entering the state machine. The set is closed: a
// resume, an answer, or a code submission. Each stage accepts exactly one
// event kind; everything else is an invalid transition.
type Event interface {
	eventName() string
}

// ResumeSubmitted starts the interview from CREATED.
type ResumeSubmitted struct {
	Text string
}

// AnswerSubmitted is a candidate answer during QUESTIONING.
type AnswerSubmitted struct {
	Text string
}

// CodeSubmitted is the solution for the coding challenge.
type CodeSubmitted struct {
	Code string
}

func (ResumeSubmitted) eventName() string { return "resume_submitted" }
func (AnswerSubmitted) eventName() string { return "answer_submitted" }
func (CodeSubmitted) eventName() string   { return "code_submitted" }
