package workflow_test

import (
	"context"
	"errors"
	"sync"

	"maintflow/bizerror"
	"maintflow/domain"
	"maintflow/domain/state"
	"maintflow/domain/threshold"
	"maintflow/domain/workflow"
	"maintflow/event"
	"maintflow/notify"
	"maintflow/store"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("WorkflowManager", func() {
	var (
		ctx       = context.Background()
		records   *spyStore
		transport *recordingTransport
		manager   *workflow.WorkflowManager
		events    []*event.TransitionEvent
		creator   = domain.Actor{ID: 1, Role: "site_engineer"}
		approver  = domain.Actor{ID: 2, Role: "director"}
	)

	BeforeEach(func() {
		records = &spyStore{MemoryStore: store.NewMemoryStore()}
		transport = &recordingTransport{}

		validator, err := state.NewValidator(state.DefaultMachines()...)
		Expect(err).To(BeNil())
		resolver, err := threshold.NewResolver(threshold.DefaultTables()...)
		Expect(err).To(BeNil())
		dispatcher, err := notify.NewDispatcher(transport, notify.Options{Locale: "en-US"})
		Expect(err).To(BeNil())
		manager = workflow.NewWorkflowManager(records, validator, resolver, dispatcher)

		events = nil
		event.InvokeHandlersFunc = func(e *event.TransitionEvent) []event.EventHandleResult {
			events = append(events, e)
			return nil
		}
	})

	create := func(kind domain.Kind, amount domain.Amount) *workflow.WorkflowResult {
		r, err := manager.CreateEntity(ctx, &domain.EntityCreation{Kind: kind, Amount: amount, Title: "bridge", SiteName: "north", Reference: "R-1"}, creator)
		Expect(err).To(BeNil())
		return r
	}
	transition := func(id types.ID, to domain.State) (*workflow.WorkflowResult, error) {
		return manager.ApplyTransition(ctx, &domain.TransitionRequest{EntityID: id, RequestedState: to,
			ActingUserID: approver.ID, ActingUserRole: approver.Role})
	}

	Describe("CreateEntity", func() {
		It("should notify only the engineer for a 3,000,000 task budget", func() {
			r := create(domain.KindTaskBudget, 3_000_000)
			Expect(r.NewState).To(Equal(domain.StatePending))
			Expect(r.Entity.ID).NotTo(BeZero())
			Expect(r.Notifications).To(HaveLen(1))
			Expect(r.Notifications[0].Recipient).To(Equal(threshold.SiteEngineer))
			Expect(r.Notifications[0].Outcome).To(Equal(notify.OutcomeSent))

			logs, err := manager.History(ctx, r.EntityID)
			Expect(err).To(BeNil())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].FromState).To(Equal(domain.State("")))
			Expect(logs[0].ToState).To(Equal(domain.StatePending))

			Expect(events).To(HaveLen(1))
			Expect(events[0].EventCategory).To(Equal(event.EventCategory(event.EventCategoryCreated)))
			Expect(events[0].NotificationsSent).To(Equal(1))
		})

		It("should escalate task budgets above the executive threshold", func() {
			r := create(domain.KindTaskBudget, 12_000_000)
			Expect(r.Notifications).To(HaveLen(3))
			Expect(r.Severity).To(Equal(string(threshold.SeverityCritical)))
		})

		It("should use the initial state of each kind", func() {
			Expect(create(domain.KindContractLegalReview, 1).NewState).To(Equal(domain.StatePendingReview))
			Expect(create(domain.KindContractLegalReview, 1).Notifications).To(BeEmpty())
			Expect(create(domain.KindQuotationReview, 1).Notifications).To(HaveLen(1))
			Expect(create(domain.KindCutApproval, 1).Notifications).To(HaveLen(1))
		})

		It("should reject unknown kind and negative amount", func() {
			_, err := manager.CreateEntity(ctx, &domain.EntityCreation{Kind: "NOPE", Title: "x"}, creator)
			Expect(err).To(Equal(bizerror.ErrUnknownKind))
			_, err = manager.CreateEntity(ctx, &domain.EntityCreation{Kind: domain.KindTaskBudget, Amount: -1, Title: "x"}, creator)
			Expect(err).To(Equal(bizerror.ErrInvalidAmount))
			Expect(transport.Sent()).To(BeEmpty())
		})
	})

	Describe("ApplyTransition", func() {
		It("should commit tier 1 of a 12,000,000 measurement and widen tier 2 recipients", func() {
			created := create(domain.KindMeasurementApproval, 12_000_000)
			Expect(created.Notifications).To(BeEmpty())

			r, err := transition(created.EntityID, domain.StateTier1Approved)
			Expect(err).To(BeNil())
			Expect(r.PreviousState).To(Equal(domain.StatePending))
			Expect(r.NewState).To(Equal(domain.StateTier1Approved))
			Expect(r.NoOp).To(BeFalse())
			Expect(r.Notifications).To(HaveLen(1))
			Expect(r.Notifications[0].Recipient).To(Equal(threshold.MaintenanceDirector))
			Expect(r.Entity.Approvals).To(HaveLen(1))
			Expect(r.Entity.Approvals[0].ApproverID).To(Equal(approver.ID))

			preview, err := manager.PreviewRecipients(domain.KindMeasurementApproval, domain.StateTier2Approved, 12_000_000)
			Expect(err).To(BeNil())
			Expect(preview.Recipients).To(HaveLen(3))

			r, err = transition(created.EntityID, domain.StateTier2Approved)
			Expect(err).To(BeNil())
			Expect(r.Notifications).To(HaveLen(3))

			entity, err := manager.DetailEntity(ctx, created.EntityID)
			Expect(err).To(BeNil())
			Expect(entity.State).To(Equal(domain.StateTier2Approved))
			Expect(entity.Approvals).To(HaveLen(2))
		})

		It("should reject skipping tiers without touching the store", func() {
			created := create(domain.KindMeasurementApproval, 12_000_000)
			r, err := transition(created.EntityID, domain.StateTier3Approved)
			Expect(r).To(BeNil())
			var invalid *bizerror.ErrInvalidTransition
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Current).To(Equal(string(domain.StatePending)))
			Expect(invalid.Requested).To(Equal(string(domain.StateTier3Approved)))
			Expect(records.updates).To(BeZero())
			Expect(transport.Sent()).To(BeEmpty())

			entity, _ := manager.DetailEntity(ctx, created.EntityID)
			Expect(entity.State).To(Equal(domain.StatePending))
		})

		It("should acknowledge a repeated request without write or dispatch", func() {
			created := create(domain.KindMeasurementApproval, 12_000_000)
			_, err := transition(created.EntityID, domain.StateTier1Approved)
			Expect(err).To(BeNil())
			sent := len(transport.Sent())
			updates := records.updates
			eventCount := len(events)

			r, err := transition(created.EntityID, domain.StateTier1Approved)
			Expect(err).To(BeNil())
			Expect(r.NoOp).To(BeTrue())
			Expect(r.Notifications).To(BeEmpty())
			Expect(transport.Sent()).To(HaveLen(sent))
			Expect(records.updates).To(Equal(updates))
			Expect(events).To(HaveLen(eventCount))
		})

		It("should stamp start and completion of task budgets without notifying", func() {
			created := create(domain.KindTaskBudget, 3_000_000)
			r, err := transition(created.EntityID, domain.StateInProgress)
			Expect(err).To(BeNil())
			Expect(r.Notifications).To(BeEmpty())
			Expect(r.Entity.StartTime).NotTo(BeNil())

			r, err = transition(created.EntityID, domain.StateCompleted)
			Expect(err).To(BeNil())
			Expect(r.Entity.CompleteTime).NotTo(BeNil())

			_, err = transition(created.EntityID, domain.StateCancelled)
			Expect(err).To(HaveOccurred())
		})

		It("should not roll back when every notification fails", func() {
			transport.SendFunc = func(ctx context.Context, msg notify.Message) error {
				return errors.New("smtp down")
			}
			created := create(domain.KindCutApproval, 12_000_000)
			Expect(created.Notifications[0].Outcome).To(Equal(notify.OutcomeFailed))

			r, err := transition(created.EntityID, domain.StateTier1Approved)
			Expect(err).To(BeNil())
			Expect(r.Notifications).To(HaveLen(2))
			for _, n := range r.Notifications {
				Expect(n.Outcome).To(Equal(notify.OutcomeFailed))
				Expect(n.Reason).To(Equal("smtp down"))
			}
			entity, _ := manager.DetailEntity(ctx, created.EntityID)
			Expect(entity.State).To(Equal(domain.StateTier1Approved))
			Expect(events[len(events)-1].NotificationsFailed).To(Equal(2))
		})

		It("should still notify when the caller context is cancelled after commit", func() {
			transport.SendFunc = func(ctx context.Context, msg notify.Message) error {
				return ctx.Err()
			}
			created := create(domain.KindMeasurementApproval, 12_000_000)

			cancelled, cancel := context.WithCancel(context.Background())
			cancel()
			r, err := manager.ApplyTransition(cancelled, &domain.TransitionRequest{EntityID: created.EntityID,
				RequestedState: domain.StateTier1Approved, ActingUserID: approver.ID, ActingUserRole: approver.Role})
			Expect(err).To(BeNil())
			Expect(r.NewState).To(Equal(domain.StateTier1Approved))
			Expect(r.Notifications).To(HaveLen(1))
			Expect(r.Notifications[0].Outcome).To(Equal(notify.OutcomeSent))
			Expect(r.Notifications[0].Reason).To(BeEmpty())
			Expect(events[len(events)-1].NotificationsSent).To(Equal(1))
		})

		It("should abort before dispatch when persistence fails", func() {
			created := create(domain.KindMeasurementApproval, 12_000_000)
			records.ConditionalUpdateFunc = func(ctx context.Context, id types.ID, expected domain.State, patch *domain.EntityPatch) (*domain.Entity, error) {
				return nil, errors.New("connection reset")
			}
			r, err := transition(created.EntityID, domain.StateTier1Approved)
			Expect(r).To(BeNil())
			var unavailable *bizerror.ErrStoreUnavailable
			Expect(errors.As(err, &unavailable)).To(BeTrue())
			Expect(transport.Sent()).To(BeEmpty())
		})

		It("should report unknown entities and bad requests", func() {
			_, err := transition(404, domain.StateTier1Approved)
			Expect(err).To(Equal(bizerror.ErrNotFound))

			_, err = transition(0, domain.StateTier1Approved)
			var badParam *bizerror.ErrBadParam
			Expect(errors.As(err, &badParam)).To(BeTrue())
		})

		It("should let one of two concurrent approvals win and turn the retry into a no-op", func() {
			created := create(domain.KindMeasurementApproval, 12_000_000)
			sentBefore := len(transport.Sent())

			var loaded sync.WaitGroup
			loaded.Add(2)
			records.getHook = func() {
				loaded.Done()
				loaded.Wait()
			}

			results := make([]*workflow.WorkflowResult, 2)
			errs := make([]error, 2)
			var done sync.WaitGroup
			for i := 0; i < 2; i++ {
				done.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer done.Done()
					results[i], errs[i] = transition(created.EntityID, domain.StateTier1Approved)
				}(i)
			}
			done.Wait()
			records.getHook = nil

			winner, loser := 0, 1
			if errs[0] != nil {
				winner, loser = 1, 0
			}
			Expect(errs[winner]).To(BeNil())
			Expect(results[winner].NoOp).To(BeFalse())
			Expect(results[winner].Notifications).To(HaveLen(1))
			Expect(errs[loser]).To(Equal(bizerror.ErrConcurrentModification))
			Expect(transport.Sent()).To(HaveLen(sentBefore + 1))

			retry, err := transition(created.EntityID, domain.StateTier1Approved)
			Expect(err).To(BeNil())
			Expect(retry.NoOp).To(BeTrue())
			Expect(retry.Notifications).To(BeEmpty())
			Expect(transport.Sent()).To(HaveLen(sentBefore + 1))
		})
	})

	Describe("queries", func() {
		It("should query entities and validate filters", func() {
			a := create(domain.KindTaskBudget, 1)
			create(domain.KindCutApproval, 1)
			list, err := manager.QueryEntities(ctx, domain.EntityQuery{Kind: domain.KindTaskBudget})
			Expect(err).To(BeNil())
			Expect(list).To(HaveLen(1))
			Expect(list[0].ID).To(Equal(a.EntityID))

			_, err = manager.QueryEntities(ctx, domain.EntityQuery{Kind: "NOPE"})
			Expect(err).To(Equal(bizerror.ErrUnknownKind))
		})

		It("should validate preview arguments", func() {
			_, err := manager.PreviewRecipients("NOPE", domain.StatePending, 1)
			Expect(err).To(Equal(bizerror.ErrUnknownKind))
			_, err = manager.PreviewRecipients(domain.KindTaskBudget, domain.StateTier1Approved, 1)
			Expect(err).To(Equal(bizerror.ErrUnknownState))
			_, err = manager.PreviewRecipients(domain.KindTaskBudget, domain.StatePending, -1)
			Expect(err).To(Equal(bizerror.ErrInvalidAmount))
		})
	})
})
