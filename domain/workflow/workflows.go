package workflow

import (
	"context"
	"errors"
	"time"

	"maintflow/bizerror"
	"maintflow/common"
	"maintflow/domain"
	"maintflow/domain/state"
	"maintflow/domain/threshold"
	"maintflow/event"
	"maintflow/notify"
	"maintflow/store"

	"github.com/fundwit/go-commons/types"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

// WorkflowResult is returned for every accepted request, Notifications is empty when nothing was due.
type WorkflowResult struct {
	EntityID      types.ID        `json:"entityId"`
	PreviousState domain.State    `json:"previousState"`
	NewState      domain.State    `json:"newState"`
	NoOp          bool            `json:"noop"`
	Severity      string          `json:"severity,omitempty"`
	Notifications []notify.Record `json:"notifications"`

	Entity *domain.Entity `json:"entity,omitempty"`
}

type WorkflowManagerTraits interface {
	CreateEntity(ctx context.Context, c *domain.EntityCreation, actor domain.Actor) (*WorkflowResult, error)
	ApplyTransition(ctx context.Context, req *domain.TransitionRequest) (*WorkflowResult, error)
	DetailEntity(ctx context.Context, id types.ID) (*domain.Entity, error)
	QueryEntities(ctx context.Context, q domain.EntityQuery) ([]domain.Entity, error)
	History(ctx context.Context, id types.ID) ([]domain.TransitionLog, error)
	PreviewRecipients(kind domain.Kind, reached domain.State, amount domain.Amount) (*threshold.Resolution, error)
}

type WorkflowManager struct {
	store      store.RecordStore
	validator  state.ValidatorTraits
	resolver   threshold.ResolverTraits
	dispatcher notify.DispatcherTraits

	idWorker *sonyflake.Sonyflake
	now      func() time.Time
}

func NewWorkflowManager(s store.RecordStore, v state.ValidatorTraits, r threshold.ResolverTraits, d notify.DispatcherTraits) *WorkflowManager {
	return &WorkflowManager{store: s, validator: v, resolver: r, dispatcher: d, idWorker: common.NewIDWorker(), now: time.Now}
}

func (m *WorkflowManager) CreateEntity(ctx context.Context, c *domain.EntityCreation, actor domain.Actor) (*WorkflowResult, error) {
	if !c.Kind.Valid() {
		return nil, bizerror.ErrUnknownKind
	}
	if c.Amount < 0 {
		return nil, bizerror.ErrInvalidAmount
	}
	machine, err := m.validator.Machine(c.Kind)
	if err != nil {
		return nil, err
	}
	initial := machine.Initial()

	now := m.now().UTC()
	entity := &domain.Entity{
		ID:         common.NextId(m.idWorker),
		Kind:       c.Kind,
		State:      initial.Name,
		Amount:     c.Amount,
		Title:      c.Title,
		SiteName:   c.SiteName,
		Reference:  c.Reference,
		CreatorID:  actor.ID,
		CreateTime: now,
		UpdateTime: now,
		Approvals:  []domain.ApprovalRecord{},
	}
	log := domain.TransitionLog{ToState: initial.Name, ActorID: actor.ID, ActorRole: actor.Role, Time: now}
	if err := m.store.Create(ctx, entity, log); err != nil {
		return nil, storeFailure(err)
	}
	logrus.WithFields(logrus.Fields{"entityId": entity.ID.String(), "kind": entity.Kind, "state": entity.State}).
		Info("workflow entity created")

	severity, records := m.notify(ctx, entity, initial.Name)
	m.publish(entity, "", initial.Name, actor, event.EventCategoryCreated, severity, records, now)

	return &WorkflowResult{EntityID: entity.ID, NewState: initial.Name, Severity: severity,
		Notifications: records, Entity: entity}, nil
}

// ApplyTransition validates the request against the current state, persists it with a conditional
// write and only then notifies the recipients of the reached state.
func (m *WorkflowManager) ApplyTransition(ctx context.Context, req *domain.TransitionRequest) (*WorkflowResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "workflow.apply_transition")
	defer span.Finish()

	if req.EntityID == 0 || req.RequestedState == "" {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("entityId and requestedState are required")}
	}
	entity, err := m.store.Get(ctx, req.EntityID)
	if err != nil {
		return nil, storeFailure(err)
	}

	fields := logrus.Fields{"entityId": entity.ID.String(), "kind": entity.Kind, "current": entity.State,
		"requested": req.RequestedState, "actorId": req.ActingUserID.String()}
	now := m.now()
	decision, err := m.validator.Validate(entity.Kind, entity.State, req.RequestedState, req.Actor(), now)
	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("transition rejected")
		return nil, err
	}
	if decision.NoOp {
		logrus.WithFields(fields).Info("transition acknowledged, state unchanged")
		return &WorkflowResult{EntityID: entity.ID, PreviousState: entity.State, NewState: entity.State, NoOp: true,
			Notifications: []notify.Record{}, Entity: entity}, nil
	}

	updated, err := m.store.ConditionalUpdate(ctx, entity.ID, decision.From, decision.Patch)
	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("transition not persisted")
		return nil, storeFailure(err)
	}
	logrus.WithFields(fields).Info("transition committed")

	severity, records := m.notify(ctx, updated, decision.To)
	m.publish(updated, decision.From, decision.To, req.Actor(), event.EventCategoryTransitioned, severity, records, decision.Patch.UpdateTime)

	return &WorkflowResult{EntityID: updated.ID, PreviousState: decision.From, NewState: decision.To,
		Severity: severity, Notifications: records, Entity: updated}, nil
}

// notify never fails the caller, the state change is already committed. Dispatch outlives the
// caller's cancellation, each send is still bounded by the dispatcher's send timeout.
func (m *WorkflowManager) notify(ctx context.Context, entity *domain.Entity, reached domain.State) (string, []notify.Record) {
	ctx = context.WithoutCancel(ctx)
	if !m.resolver.HasTable(entity.Kind, reached) {
		return "", []notify.Record{}
	}
	resolution, err := m.resolver.Resolve(entity.Kind, entity.Amount, reached)
	if err != nil {
		logrus.WithError(err).WithField("entityId", entity.ID.String()).Error("recipient resolution failed")
		return "", []notify.Record{}
	}
	if resolution.Empty() {
		return string(resolution.Severity), []notify.Record{}
	}
	snapshot := notify.Snapshot{
		EntityID:  entity.ID,
		Kind:      entity.Kind,
		State:     reached,
		Amount:    entity.Amount,
		Title:     entity.Title,
		SiteName:  entity.SiteName,
		Reference: entity.Reference,
		Severity:  string(resolution.Severity),
	}
	records := m.dispatcher.Dispatch(ctx, resolution.Recipients, m.dispatcher.Template(entity.Kind, reached), snapshot)
	return string(resolution.Severity), records
}

func (m *WorkflowManager) publish(entity *domain.Entity, from, to domain.State, actor domain.Actor, category event.EventCategory,
	severity string, records []notify.Record, at time.Time) {
	ev := &event.TransitionEvent{
		EntityID: entity.ID, Kind: entity.Kind, Title: entity.Title, Amount: entity.Amount,
		FromState: from, ToState: to, ActorID: actor.ID, ActorRole: actor.Role,
		EventCategory: category, Severity: severity, Timestamp: at.UTC(),
	}
	for _, r := range records {
		if r.Outcome == notify.OutcomeSent {
			ev.NotificationsSent++
		} else {
			ev.NotificationsFailed++
		}
	}
	event.InvokeHandlersFunc(ev)
}

func (m *WorkflowManager) DetailEntity(ctx context.Context, id types.ID) (*domain.Entity, error) {
	entity, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	return entity, nil
}

func (m *WorkflowManager) QueryEntities(ctx context.Context, q domain.EntityQuery) ([]domain.Entity, error) {
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, bizerror.ErrUnknownKind
	}
	entities, err := m.store.Query(ctx, q)
	if err != nil {
		return nil, storeFailure(err)
	}
	return entities, nil
}

func (m *WorkflowManager) History(ctx context.Context, id types.ID) ([]domain.TransitionLog, error) {
	logs, err := m.store.History(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	return logs, nil
}

// PreviewRecipients resolves who would be notified without sending anything.
func (m *WorkflowManager) PreviewRecipients(kind domain.Kind, reached domain.State, amount domain.Amount) (*threshold.Resolution, error) {
	machine, err := m.validator.Machine(kind)
	if err != nil {
		return nil, err
	}
	if _, ok := machine.State(reached); !ok {
		return nil, bizerror.ErrUnknownState
	}
	return m.resolver.Resolve(kind, amount, reached)
}

// storeFailure keeps known store errors and classifies anything else as an unavailable store.
func storeFailure(err error) error {
	var unavailable *bizerror.ErrStoreUnavailable
	if errors.Is(err, bizerror.ErrNotFound) || errors.Is(err, bizerror.ErrConcurrentModification) || errors.As(err, &unavailable) {
		return err
	}
	return &bizerror.ErrStoreUnavailable{Cause: err}
}
