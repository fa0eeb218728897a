package batch

// State is one canonical job state tag. Every backend must map its native
// vocabulary onto these before a job record is surfaced.
type State string

// Good states: terminal success.
const (
	StateComplete    State = "complete"
	StateCompleted   State = "completed"
	StateSpecialExit State = "special_exit"
)

// Active states: still progressing.
const (
	StateConfiguring State = "configuring"
	StateCompleting  State = "completing"
	StatePending     State = "pending"
	StateHeld        State = "held"
	StateRunning     State = "running"
	StateSubmitted   State = "submitted"
)

// Bad states: terminal failure.
const (
	StateBootFail    State = "boot_fail"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
	StateKilled      State = "killed"
	StateNodeFail    State = "node_fail"
	StateTimeout     State = "timeout"
	StateDisappeared State = "disappeared"
)

// Uncertain states: paused or ambiguous.
const (
	StatePreempted State = "preempted"
	StateStopped   State = "stopped"
	StateSuspended State = "suspended"
)

type stateClass int

const (
	classGood stateClass = iota
	classActive
	classBad
	classUncertain
)

var stateClasses = map[State]stateClass{
	StateComplete:    classGood,
	StateCompleted:   classGood,
	StateSpecialExit: classGood,

	StateConfiguring: classActive,
	StateCompleting:  classActive,
	StatePending:     classActive,
	StateHeld:        classActive,
	StateRunning:     classActive,
	StateSubmitted:   classActive,

	StateBootFail:    classBad,
	StateCancelled:   classBad,
	StateFailed:      classBad,
	StateKilled:      classBad,
	StateNodeFail:    classBad,
	StateTimeout:     classBad,
	StateDisappeared: classBad,

	StatePreempted: classUncertain,
	StateStopped:   classUncertain,
	StateSuspended: classUncertain,
}

// Known reports whether s belongs to the canonical vocabulary.
func (s State) Known() bool {
	_, ok := stateClasses[s]
	return ok
}

// Good reports terminal success.
func (s State) Good() bool { return stateClasses[s] == classGood && s.Known() }

// Active reports that the job is still progressing.
func (s State) Active() bool { return s.Known() && stateClasses[s] == classActive }

// Bad reports terminal failure.
func (s State) Bad() bool { return s.Known() && stateClasses[s] == classBad }

// Uncertain reports a paused or ambiguous state.
func (s State) Uncertain() bool { return s.Known() && stateClasses[s] == classUncertain }

// Done reports any terminal state, good or bad.
func (s State) Done() bool { return s.Good() || s.Bad() }

// AllStates returns the full canonical vocabulary.
func AllStates() []State {
	out := make([]State, 0, len(stateClasses))
	for s := range stateClasses {
		out = append(out, s)
	}
	return out
}
