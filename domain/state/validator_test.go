package state_test

import (
	"errors"
	"time"

	"maintflow/bizerror"
	"maintflow/domain"
	"maintflow/domain/state"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Validator", func() {
	var (
		validator *state.Validator
		actor     = domain.Actor{ID: types.ID(7), Role: "director"}
		now       = time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("COT", -5*3600))
	)

	BeforeEach(func() {
		var err error
		validator, err = state.NewValidator(state.DefaultMachines()...)
		Expect(err).To(BeNil())
	})

	expectInvalid := func(kind domain.Kind, current, requested domain.State) {
		d, err := validator.Validate(kind, current, requested, actor, now)
		Expect(d).To(BeNil())
		var invalid *bizerror.ErrInvalidTransition
		Expect(errors.As(err, &invalid)).To(BeTrue())
		Expect(invalid.Current).To(Equal(string(current)))
		Expect(invalid.Requested).To(Equal(string(requested)))
	}

	It("should fail when a kind has no machine", func() {
		_, err := state.NewValidator(state.DefaultMachines()[1:]...)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("TASK_BUDGET"))
	})

	It("should accept immediate successors of every machine", func() {
		for _, m := range state.DefaultMachines() {
			for _, t := range m.Transitions {
				d, err := validator.Validate(m.Kind, t.From, t.To, actor, now)
				Expect(err).To(BeNil())
				Expect(d.NoOp).To(BeFalse())
				Expect(d.Patch.State).To(Equal(t.To))
				Expect(d.Patch.Log.FromState).To(Equal(t.From))
				Expect(d.Patch.Log.ToState).To(Equal(t.To))
			}
		}
	})

	It("should treat requested == current as no-op", func() {
		d, err := validator.Validate(domain.KindMeasurementApproval, domain.StateTier1Approved, domain.StateTier1Approved, actor, now)
		Expect(err).To(BeNil())
		Expect(d.NoOp).To(BeTrue())
		Expect(d.Patch).To(BeNil())
	})

	It("should reject skipped, backward, foreign and unknown kind transitions", func() {
		expectInvalid(domain.KindMeasurementApproval, domain.StatePending, domain.StateTier2Approved)
		expectInvalid(domain.KindMeasurementApproval, domain.StateTier2Approved, domain.StateTier1Approved)
		expectInvalid(domain.KindTaskBudget, domain.StateCompleted, domain.StateCancelled)
		expectInvalid(domain.KindTaskBudget, domain.StateCancelled, domain.StatePending)
		expectInvalid(domain.KindQuotationReview, domain.StatePending, domain.StateTier1Approved)
		expectInvalid(domain.KindContractLegalReview, domain.StatePending, domain.StateApproved)
		expectInvalid("UNKNOWN", domain.StatePending, domain.StateApproved)
	})

	It("should never accept a transition back to an earlier state", func() {
		for _, m := range state.DefaultMachines() {
			for i := range m.States {
				for j := 0; j < i; j++ {
					expectInvalid(m.Kind, m.States[i].Name, m.States[j].Name)
				}
			}
		}
	})

	It("should record approver when entering an approval state", func() {
		d, err := validator.Validate(domain.KindMeasurementApproval, domain.StatePending, domain.StateTier1Approved, actor, now)
		Expect(err).To(BeNil())
		Expect(d.Patch.Approval).NotTo(BeNil())
		Expect(d.Patch.Approval.ApproverID).To(Equal(types.ID(7)))
		Expect(d.Patch.Approval.ApproverRole).To(Equal("director"))
		Expect(d.Patch.Approval.State).To(Equal(domain.StateTier1Approved))
		Expect(d.Patch.Approval.ApproveTime.Location()).To(Equal(time.UTC))
		Expect(d.Patch.Approval.ApproveTime.Equal(now)).To(BeTrue())
		Expect(d.Patch.StartTime).To(BeNil())
		Expect(d.Patch.CompleteTime).To(BeNil())
	})

	It("should stamp start and completion times", func() {
		d, err := validator.Validate(domain.KindTaskBudget, domain.StatePending, domain.StateInProgress, actor, now)
		Expect(err).To(BeNil())
		Expect(d.Patch.StartTime).NotTo(BeNil())
		Expect(d.Patch.CompleteTime).To(BeNil())
		Expect(d.Patch.Approval).To(BeNil())

		d, err = validator.Validate(domain.KindTaskBudget, domain.StateInProgress, domain.StateCompleted, actor, now)
		Expect(err).To(BeNil())
		Expect(d.Patch.StartTime).To(BeNil())
		Expect(d.Patch.CompleteTime).NotTo(BeNil())

		d, err = validator.Validate(domain.KindCutApproval, domain.StateTier2Approved, domain.StateTier3Approved, actor, now)
		Expect(err).To(BeNil())
		Expect(d.Patch.CompleteTime).NotTo(BeNil())
		Expect(d.Patch.Approval).NotTo(BeNil())
	})

	It("should not stamp completion when cancelling", func() {
		d, err := validator.Validate(domain.KindTaskBudget, domain.StateInProgress, domain.StateCancelled, actor, now)
		Expect(err).To(BeNil())
		Expect(d.To).To(Equal(domain.StateCancelled))
		Expect(d.Patch.CompleteTime).To(BeNil())
		Expect(d.Patch.StartTime).To(BeNil())
		Expect(d.Patch.Approval).To(BeNil())
	})

	It("should enforce approver roles when configured", func() {
		machines := state.DefaultMachines()
		Expect(machines[1].Restrict(domain.StateTier1Approved, "resident")).To(Succeed())
		restricted, err := state.NewValidator(machines...)
		Expect(err).To(BeNil())

		_, err = restricted.Validate(domain.KindMeasurementApproval, domain.StatePending, domain.StateTier1Approved, actor, now)
		Expect(err).To(Equal(bizerror.ErrForbidden))

		d, err := restricted.Validate(domain.KindMeasurementApproval, domain.StatePending, domain.StateTier1Approved,
			domain.Actor{ID: 8, Role: "resident"}, now)
		Expect(err).To(BeNil())
		Expect(d.Patch.Approval.ApproverRole).To(Equal("resident"))
	})
})
