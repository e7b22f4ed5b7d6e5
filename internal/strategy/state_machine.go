package strategy

// SideMachine tracks one side through Absent, Resting and Drifted. It is
// owned by a single cycle loop and carries no lock.
type SideMachine struct {
	State SideState
}

func NewSideMachine() *SideMachine {
	return &SideMachine{State: StateAbsent}
}

func (s *SideMachine) Apply(event Event) SideState {
	s.State = nextState(s.State, event)
	return s.State
}

func nextState(current SideState, event Event) SideState {
	switch current {
	case StateAbsent:
		switch event {
		case EventPlaced, EventInBand:
			return StateResting
		case EventOutOfBand:
			return StateDrifted
		}
	case StateResting:
		switch event {
		case EventOutOfBand:
			return StateDrifted
		case EventGone, EventCancelled:
			return StateAbsent
		}
	case StateDrifted:
		switch event {
		case EventCancelled, EventGone:
			return StateAbsent
		case EventInBand:
			return StateResting
		}
	}
	return current
}
