package domain

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

// Kind selects the state machine and recipient tables that govern an entity.
type Kind string

const (
	KindTaskBudget          Kind = "TASK_BUDGET"
	KindMeasurementApproval Kind = "MEASUREMENT_APPROVAL"
	KindQuotationReview     Kind = "QUOTATION_REVIEW"
	KindCutApproval         Kind = "CUT_APPROVAL"
	KindContractLegalReview Kind = "CONTRACT_LEGAL_REVIEW"
)

var Kinds = []Kind{KindTaskBudget, KindMeasurementApproval, KindQuotationReview, KindCutApproval, KindContractLegalReview}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

type State string

const (
	StatePending       State = "PENDING"
	StateTier1Approved State = "TIER1_APPROVED"
	StateTier2Approved State = "TIER2_APPROVED"
	StateTier3Approved State = "TIER3_APPROVED"
	StateInProgress    State = "IN_PROGRESS"
	StateCompleted     State = "COMPLETED"
	StateCancelled     State = "CANCELLED"
	StateReviewed      State = "REVIEWED"
	StateApproved      State = "APPROVED"
	StatePendingReview State = "PENDING_REVIEW"
)

// Amount is a non-negative monetary value in the smallest unit of the deployment currency.
type Amount int64

type Entity struct {
	ID     types.ID `json:"id"`
	Kind   Kind     `json:"kind" sql:"type:VARCHAR(64) NOT NULL"`
	State  State    `json:"state" sql:"type:VARCHAR(64) NOT NULL;index"`
	Amount Amount   `json:"amount" sql:"type:BIGINT NOT NULL"`

	Title     string `json:"title"`
	SiteName  string `json:"siteName"`
	Reference string `json:"reference"`

	CreatorID    types.ID   `json:"creatorId"`
	CreateTime   time.Time  `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime   time.Time  `json:"updateTime" sql:"type:DATETIME(6) NOT NULL"`
	StartTime    *time.Time `json:"startTime,omitempty" sql:"type:DATETIME(6)"`
	CompleteTime *time.Time `json:"completeTime,omitempty" sql:"type:DATETIME(6)"`

	Approvals []ApprovalRecord `json:"approvals" gorm:"-"`
}

func (e *Entity) TableName() string {
	return "workflow_entities"
}

// ApprovalRecord is the approver stamp left on an entity when it enters an approval tier.
type ApprovalRecord struct {
	ID           uint      `json:"-" gorm:"primary_key"`
	EntityID     types.ID  `json:"entityId" sql:"index"`
	State        State     `json:"state"`
	ApproverID   types.ID  `json:"approverId"`
	ApproverRole string    `json:"approverRole"`
	ApproveTime  time.Time `json:"approveTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (r *ApprovalRecord) TableName() string {
	return "approval_records"
}

// TransitionLog is the audit row written with every committed state change, creation included.
type TransitionLog struct {
	ID        uint      `json:"-" gorm:"primary_key"`
	EntityID  types.ID  `json:"entityId" sql:"index"`
	FromState State     `json:"fromState"`
	ToState   State     `json:"toState"`
	ActorID   types.ID  `json:"actorId"`
	ActorRole string    `json:"actorRole"`
	Time      time.Time `json:"time" sql:"type:DATETIME(6) NOT NULL"`
}

func (l *TransitionLog) TableName() string {
	return "transition_logs"
}

// EntityPatch describes what a validated transition writes.
type EntityPatch struct {
	State        State
	UpdateTime   time.Time
	StartTime    *time.Time
	CompleteTime *time.Time
	Approval     *ApprovalRecord
	Log          TransitionLog
}

type Actor struct {
	ID   types.ID `json:"id"`
	Role string   `json:"role"`
}

type TransitionRequest struct {
	EntityID       types.ID `json:"entityId" validate:"required"`
	RequestedState State    `json:"requestedState" validate:"required"`
	ActingUserID   types.ID `json:"-"`
	ActingUserRole string   `json:"-"`
}

func (r *TransitionRequest) Actor() Actor {
	return Actor{ID: r.ActingUserID, Role: r.ActingUserRole}
}

type EntityCreation struct {
	Kind      Kind   `json:"kind" validate:"required"`
	Amount    Amount `json:"amount" validate:"min=0"`
	Title     string `json:"title" validate:"required"`
	SiteName  string `json:"siteName"`
	Reference string `json:"reference"`
}

type EntityQuery struct {
	Kind  Kind  `json:"kind" form:"kind"`
	State State `json:"state" form:"state"`
}

type Recipient struct {
	Role  string `json:"role" mapstructure:"role" validate:"required"`
	Email string `json:"email" mapstructure:"email" validate:"required,email"`
	Name  string `json:"name" mapstructure:"name"`
}
