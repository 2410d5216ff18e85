package servehttp

import (
	"net/http"

	"maintflow/domain"
	"maintflow/domain/workflow"

	"github.com/gin-gonic/gin"
)

const PathRecipients = "/v1/recipients"

func RegisterRecipientRestAPI(r *gin.Engine, m workflow.WorkflowManagerTraits, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathRecipients, middleWares...)
	g.GET("", func(c *gin.Context) {
		kind := domain.Kind(c.Query("kind"))
		reached := domain.State(c.Query("state"))
		amount := domain.Amount(queryAmount(c, "amount"))

		resolution, err := m.PreviewRecipients(kind, reached, amount)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, resolution)
	})
}
