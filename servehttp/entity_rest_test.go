package servehttp_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"maintflow/bizerror"
	"maintflow/domain"
	"maintflow/domain/workflow"
	"maintflow/notify"
	"maintflow/servehttp"
	"maintflow/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("EntityRestAPI", func() {
	var (
		router      *gin.Engine
		managerMock *workflowManagerMock
	)

	BeforeEach(func() {
		router = gin.Default()
		router.Use(bizerror.ErrorHandling())
		managerMock = &workflowManagerMock{}
		servehttp.RegisterEntityRestAPI(router, managerMock, testinfra.WithSecCtx(testinfra.BuildSecCtx(7, "site_engineer")))
	})

	Describe("handleCreate", func() {
		It("should create entity as the session user", func() {
			var creation *domain.EntityCreation
			var actor domain.Actor
			managerMock.CreateEntityFunc = func(ctx context.Context, c *domain.EntityCreation, a domain.Actor) (*workflow.WorkflowResult, error) {
				creation, actor = c, a
				return &workflow.WorkflowResult{EntityID: 100, NewState: domain.StatePending, Notifications: []notify.Record{}}, nil
			}

			req := httptest.NewRequest(http.MethodPost, servehttp.PathEntities,
				bytes.NewReader([]byte(`{"kind":"TASK_BUDGET","amount":12000000,"title":"roof repair","siteName":"north"}`)))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusCreated))
			Expect(body).To(MatchJSON(`{"entityId":"100","previousState":"","newState":"PENDING","noop":false,"notifications":[]}`))

			Expect(*creation).To(Equal(domain.EntityCreation{Kind: domain.KindTaskBudget, Amount: 12000000, Title: "roof repair", SiteName: "north"}))
			Expect(actor).To(Equal(domain.Actor{ID: 7, Role: "site_engineer"}))
		})

		It("should failed when validation failed", func() {
			req := httptest.NewRequest(http.MethodPost, servehttp.PathEntities,
				bytes.NewReader([]byte(`{"kind":"TASK_BUDGET","amount":-1,"title":"roof repair"}`)))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"Key: 'EntityCreation.Amount' Error:Field validation for 'Amount' failed on the 'min' tag","data":null}`))
		})

		It("should reject unknown kind", func() {
			managerMock.CreateEntityFunc = func(ctx context.Context, c *domain.EntityCreation, a domain.Actor) (*workflow.WorkflowResult, error) {
				return nil, bizerror.ErrUnknownKind
			}
			req := httptest.NewRequest(http.MethodPost, servehttp.PathEntities,
				bytes.NewReader([]byte(`{"kind":"PAYROLL","amount":1,"title":"x"}`)))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"workflow.unknown_kind","message":"unknown workflow kind","data":null}`))
		})
	})

	Describe("handleQuery", func() {
		It("should pass filters to manager", func() {
			var query domain.EntityQuery
			managerMock.QueryEntitiesFunc = func(ctx context.Context, q domain.EntityQuery) ([]domain.Entity, error) {
				query = q
				return []domain.Entity{}, nil
			}
			req := httptest.NewRequest(http.MethodGet, servehttp.PathEntities+"?kind=CUT_APPROVAL&state=PENDING", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`[]`))
			Expect(query).To(Equal(domain.EntityQuery{Kind: domain.KindCutApproval, State: domain.StatePending}))
		})

		It("should be able to handle error", func() {
			managerMock.QueryEntitiesFunc = func(ctx context.Context, q domain.EntityQuery) ([]domain.Entity, error) {
				return nil, errors.New("a mocked error")
			}
			req := httptest.NewRequest(http.MethodGet, servehttp.PathEntities, nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"a mocked error","data":null}`))
		})
	})

	Describe("handleDetail", func() {
		It("should return entity", func() {
			var queried types.ID
			managerMock.DetailEntityFunc = func(ctx context.Context, id types.ID) (*domain.Entity, error) {
				queried = id
				return &domain.Entity{ID: id, Kind: domain.KindCutApproval, Title: "cut 1", Amount: 300, State: domain.StatePending}, nil
			}
			req := httptest.NewRequest(http.MethodGet, servehttp.PathEntities+"/100", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(queried.String()).To(Equal("100"))
			Expect(body).To(ContainSubstring(`"title":"cut 1"`))
			Expect(body).To(ContainSubstring(`"state":"PENDING"`))
		})

		It("should be able to handle exception of invalid id", func() {
			req := httptest.NewRequest(http.MethodGet, servehttp.PathEntities+"/abc", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'abc'","data":null}`))
		})

		It("should return not found", func() {
			managerMock.DetailEntityFunc = func(ctx context.Context, id types.ID) (*domain.Entity, error) {
				return nil, bizerror.ErrNotFound
			}
			req := httptest.NewRequest(http.MethodGet, servehttp.PathEntities+"/100", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(body).To(MatchJSON(`{"code":"common.record_not_found","message":"record not found","data":null}`))
		})
	})

	Describe("handleHistory", func() {
		It("should return transition logs", func() {
			ts := time.Date(2021, 6, 1, 8, 0, 0, 0, time.UTC)
			managerMock.HistoryFunc = func(ctx context.Context, id types.ID) ([]domain.TransitionLog, error) {
				return []domain.TransitionLog{{EntityID: id, FromState: domain.StatePending, ToState: domain.StateCancelled,
					ActorID: 7, ActorRole: "site_engineer", Time: ts}}, nil
			}
			req := httptest.NewRequest(http.MethodGet, servehttp.PathEntities+"/100/history", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring(`"toState":"CANCELLED"`))
			Expect(body).To(ContainSubstring(`"actorId":"7"`))
		})
	})
})
