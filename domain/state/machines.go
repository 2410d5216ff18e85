package state

import "maintflow/domain"

func tieredApproval(kind domain.Kind) *StateMachine {
	return &StateMachine{
		Kind: kind,
		States: []State{
			{Name: domain.StatePending, Category: InBacklog},
			{Name: domain.StateTier1Approved, Category: InApproval, Approval: true},
			{Name: domain.StateTier2Approved, Category: InApproval, Approval: true},
			{Name: domain.StateTier3Approved, Category: Done, Approval: true},
		},
		Transitions: []Transition{
			{Name: "approve-tier1", From: domain.StatePending, To: domain.StateTier1Approved},
			{Name: "approve-tier2", From: domain.StateTier1Approved, To: domain.StateTier2Approved},
			{Name: "approve-tier3", From: domain.StateTier2Approved, To: domain.StateTier3Approved},
		},
	}
}

// DefaultMachines returns fresh copies of the compiled-in machines, one per kind.
func DefaultMachines() []*StateMachine {
	return []*StateMachine{
		{
			Kind: domain.KindTaskBudget,
			States: []State{
				{Name: domain.StatePending, Category: InBacklog},
				{Name: domain.StateInProgress, Category: InProcess},
				{Name: domain.StateCompleted, Category: Done},
				{Name: domain.StateCancelled, Category: Closed},
			},
			Transitions: []Transition{
				{Name: "begin", From: domain.StatePending, To: domain.StateInProgress},
				{Name: "finish", From: domain.StateInProgress, To: domain.StateCompleted},
				{Name: "cancel", From: domain.StatePending, To: domain.StateCancelled},
				{Name: "abort", From: domain.StateInProgress, To: domain.StateCancelled},
			},
		},
		tieredApproval(domain.KindMeasurementApproval),
		{
			Kind: domain.KindQuotationReview,
			States: []State{
				{Name: domain.StatePending, Category: InBacklog},
				{Name: domain.StateReviewed, Category: InApproval, Approval: true},
				{Name: domain.StateApproved, Category: Done, Approval: true},
			},
			Transitions: []Transition{
				{Name: "review", From: domain.StatePending, To: domain.StateReviewed},
				{Name: "approve", From: domain.StateReviewed, To: domain.StateApproved},
			},
		},
		tieredApproval(domain.KindCutApproval),
		{
			Kind: domain.KindContractLegalReview,
			States: []State{
				{Name: domain.StatePendingReview, Category: InBacklog},
				{Name: domain.StateApproved, Category: Done, Approval: true},
			},
			Transitions: []Transition{
				{Name: "approve", From: domain.StatePendingReview, To: domain.StateApproved},
			},
		},
	}
}
