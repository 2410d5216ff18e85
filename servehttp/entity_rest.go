package servehttp

import (
	"net/http"

	"maintflow/bizerror"
	"maintflow/domain"
	"maintflow/domain/workflow"
	"maintflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const PathEntities = "/v1/entities"

func RegisterEntityRestAPI(r *gin.Engine, m workflow.WorkflowManagerTraits, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathEntities, middleWares...)

	handler := &entityHandler{manager: m, validator: validator.New()}
	g.POST("", handler.handleCreate)
	g.GET("", handler.handleQuery)
	g.GET("/:id", handler.handleDetail)
	g.GET("/:id/history", handler.handleHistory)
}

type entityHandler struct {
	manager   workflow.WorkflowManagerTraits
	validator *validator.Validate
}

func (h *entityHandler) handleCreate(c *gin.Context) {
	creation := domain.EntityCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	secCtx := session.FindSecurityContext(c)
	if secCtx == nil {
		panic(bizerror.ErrUnauthenticated)
	}

	result, err := h.manager.CreateEntity(c.Request.Context(), &creation, secCtx.Actor())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, result)
}

func (h *entityHandler) handleQuery(c *gin.Context) {
	query := domain.EntityQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	entities, err := h.manager.QueryEntities(c.Request.Context(), query)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, entities)
}

func (h *entityHandler) handleDetail(c *gin.Context) {
	entity, err := h.manager.DetailEntity(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, entity)
}

func (h *entityHandler) handleHistory(c *gin.Context) {
	logs, err := h.manager.History(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, logs)
}
