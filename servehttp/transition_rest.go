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

const PathTransitions = "/v1/transitions"

func RegisterTransitionRestAPI(r *gin.Engine, m workflow.WorkflowManagerTraits, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathTransitions, middleWares...)

	handler := &transitionHandler{manager: m, validator: validator.New()}
	g.POST("", handler.handleApply)
}

type transitionHandler struct {
	manager   workflow.WorkflowManagerTraits
	validator *validator.Validate
}

func (h *transitionHandler) handleApply(c *gin.Context) {
	req := domain.TransitionRequest{}
	err := c.ShouldBindBodyWith(&req, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(req); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	secCtx := session.FindSecurityContext(c)
	if secCtx == nil {
		panic(bizerror.ErrUnauthenticated)
	}
	req.ActingUserID = secCtx.Identity.ID
	req.ActingUserRole = secCtx.Identity.Role

	result, err := h.manager.ApplyTransition(c.Request.Context(), &req)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}
