package state

import (
	"time"

	"maintflow/bizerror"
	"maintflow/domain"
)

type ValidatorTraits interface {
	Validate(kind domain.Kind, current, requested domain.State, actor domain.Actor, now time.Time) (*Decision, error)
	Machine(kind domain.Kind) (*StateMachine, error)
}

// Decision is the outcome of an accepted transition request.
type Decision struct {
	From  domain.State
	To    domain.State
	NoOp  bool
	Patch *domain.EntityPatch
}

// Validator holds one machine per kind. It never writes and is safe for concurrent use once built.
type Validator struct {
	machines map[domain.Kind]*StateMachine
}

func NewValidator(machines ...*StateMachine) (*Validator, error) {
	v := &Validator{machines: map[domain.Kind]*StateMachine{}}
	for _, m := range machines {
		if !m.Kind.Valid() {
			return nil, bizerror.Configurationf("unknown kind %q", m.Kind)
		}
		if _, dup := v.machines[m.Kind]; dup {
			return nil, bizerror.Configurationf("kind %s declared twice", m.Kind)
		}
		if err := m.check(); err != nil {
			return nil, err
		}
		v.machines[m.Kind] = m
	}
	for _, k := range domain.Kinds {
		if _, ok := v.machines[k]; !ok {
			return nil, bizerror.Configurationf("kind %s has no machine", k)
		}
	}
	return v, nil
}

func (v *Validator) Machine(kind domain.Kind) (*StateMachine, error) {
	m, ok := v.machines[kind]
	if !ok {
		return nil, bizerror.ErrUnknownKind
	}
	return m, nil
}

func (v *Validator) Validate(kind domain.Kind, current, requested domain.State, actor domain.Actor, now time.Time) (*Decision, error) {
	invalid := &bizerror.ErrInvalidTransition{Kind: string(kind), Current: string(current), Requested: string(requested)}
	m, ok := v.machines[kind]
	if !ok {
		return nil, invalid
	}
	target, ok := m.State(requested)
	if !ok {
		return nil, invalid
	}
	if _, ok := m.State(current); !ok {
		return nil, invalid
	}
	if current == requested {
		return &Decision{From: current, To: requested, NoOp: true}, nil
	}
	if len(m.AvailableTransitions(current, requested)) == 0 {
		return nil, invalid
	}
	if !permitted(target, actor.Role) {
		return nil, bizerror.ErrForbidden
	}

	now = now.UTC()
	patch := &domain.EntityPatch{
		State:      requested,
		UpdateTime: now,
		Log: domain.TransitionLog{FromState: current, ToState: requested,
			ActorID: actor.ID, ActorRole: actor.Role, Time: now},
	}
	if target.Category == InProcess {
		patch.StartTime = &now
	}
	if target.Approval {
		patch.Approval = &domain.ApprovalRecord{State: requested, ApproverID: actor.ID, ApproverRole: actor.Role, ApproveTime: now}
	}
	if target.Category == Done {
		patch.CompleteTime = &now
	}
	return &Decision{From: current, To: requested, Patch: patch}, nil
}

func permitted(s State, role string) bool {
	if len(s.Roles) == 0 {
		return true
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}
