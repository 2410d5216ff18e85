package servehttp_test

import (
	"net/http"
	"net/http/httptest"

	"maintflow/bizerror"
	"maintflow/domain"
	"maintflow/domain/threshold"
	"maintflow/servehttp"
	"maintflow/testinfra"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("RecipientRestAPI", func() {
	var (
		router      *gin.Engine
		managerMock *workflowManagerMock
	)

	BeforeEach(func() {
		router = gin.Default()
		router.Use(bizerror.ErrorHandling())
		managerMock = &workflowManagerMock{}
		servehttp.RegisterRecipientRestAPI(router, managerMock)
	})

	It("should preview recipients", func() {
		var kind domain.Kind
		var reached domain.State
		var amount domain.Amount
		managerMock.PreviewRecipientsFunc = func(k domain.Kind, s domain.State, a domain.Amount) (*threshold.Resolution, error) {
			kind, reached, amount = k, s, a
			return &threshold.Resolution{Tier: 2, Severity: threshold.SeverityHigh,
				Recipients: []domain.Recipient{{Role: "site_engineer", Email: "site@maintflow.example"}}}, nil
		}

		req := httptest.NewRequest(http.MethodGet, servehttp.PathRecipients+"?kind=TASK_BUDGET&state=PENDING&amount=6000000", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"tier":2,"severity":"HIGH","recipients":[{"role":"site_engineer","email":"site@maintflow.example","name":""}]}`))
		Expect(kind).To(Equal(domain.KindTaskBudget))
		Expect(reached).To(Equal(domain.StatePending))
		Expect(amount).To(Equal(domain.Amount(6000000)))
	})

	It("should reject malformed amount", func() {
		req := httptest.NewRequest(http.MethodGet, servehttp.PathRecipients+"?kind=TASK_BUDGET&state=PENDING&amount=ten", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid amount 'ten'","data":null}`))
	})

	It("should reject negative amount", func() {
		managerMock.PreviewRecipientsFunc = func(k domain.Kind, s domain.State, a domain.Amount) (*threshold.Resolution, error) {
			return nil, bizerror.ErrInvalidAmount
		}
		req := httptest.NewRequest(http.MethodGet, servehttp.PathRecipients+"?kind=TASK_BUDGET&state=PENDING&amount=-5", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"workflow.invalid_amount","message":"amount must not be negative","data":null}`))
	})
})
