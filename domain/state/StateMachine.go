package state

import (
	"maintflow/bizerror"
	"maintflow/domain"
)

type Category uint

const (
	InBacklog Category = iota
	InProcess
	InApproval
	Done
	// Closed is terminal without completion, no completion time is stamped.
	Closed
)

type State struct {
	Name     domain.State `json:"name"`
	Category Category     `json:"category"`
	// Approval marks states whose entry is an approval act by the acting user.
	Approval bool `json:"approval"`
	// Roles restricts who may move an entity into this state, empty means anyone.
	Roles []string `json:"roles,omitempty"`
}

type Transition struct {
	Name string       `json:"name"`
	From domain.State `json:"from"`
	To   domain.State `json:"to"`
}

// StateMachine is stateless, states are listed in workflow order and transitions only move forward.
type StateMachine struct {
	Kind        domain.Kind  `json:"kind"`
	States      []State      `json:"states"`
	Transitions []Transition `json:"transitions"`
}

func NewStateMachine(kind domain.Kind, states []State, transitions []Transition) (*StateMachine, error) {
	sm := &StateMachine{Kind: kind, States: states, Transitions: transitions}
	if err := sm.check(); err != nil {
		return nil, err
	}
	return sm, nil
}

func (sm *StateMachine) check() error {
	if len(sm.States) == 0 {
		return bizerror.Configurationf("machine %s has no states", sm.Kind)
	}
	seen := map[domain.State]bool{}
	for _, s := range sm.States {
		if s.Name == "" {
			return bizerror.Configurationf("machine %s has a state without name", sm.Kind)
		}
		if seen[s.Name] {
			return bizerror.Configurationf("machine %s declares state %s twice", sm.Kind, s.Name)
		}
		seen[s.Name] = true
	}
	for _, t := range sm.Transitions {
		from, to := sm.index(t.From), sm.index(t.To)
		if from < 0 || to < 0 {
			return bizerror.Configurationf("machine %s transition %s references unknown state", sm.Kind, t.Name)
		}
		if to <= from {
			return bizerror.Configurationf("machine %s transition %s moves backwards", sm.Kind, t.Name)
		}
	}
	return nil
}

func (sm *StateMachine) index(name domain.State) int {
	for i, s := range sm.States {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (sm *StateMachine) Initial() State {
	return sm.States[0]
}

func (sm *StateMachine) State(name domain.State) (State, bool) {
	if i := sm.index(name); i >= 0 {
		return sm.States[i], true
	}
	return State{}, false
}

func (sm *StateMachine) AvailableTransitions(fromState domain.State, toState domain.State) []Transition {
	r := []Transition{}
	for _, transition := range sm.Transitions {
		if (fromState == "" || fromState == transition.From) && (toState == "" || toState == transition.To) {
			r = append(r, transition)
		}
	}
	return r
}

// Restrict limits entry into the named state to the given roles.
func (sm *StateMachine) Restrict(name domain.State, roles ...string) error {
	i := sm.index(name)
	if i < 0 {
		return bizerror.Configurationf("machine %s has no state %s", sm.Kind, name)
	}
	sm.States[i].Roles = append([]string{}, roles...)
	return nil
}
