package indices

import (
	"fmt"
	"net/http"

	"maintflow/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

var SearchTransitionsFunc = SearchTransitions

// RegisterAuditRestAPI exposes the indexed audit trail of an entity.
func RegisterAuditRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/entities", middleWares...)
	g.GET("/:id/audit", func(c *gin.Context) {
		id, err := types.ParseID(c.Param("id"))
		if err != nil {
			panic(&bizerror.ErrBadParam{Cause: fmt.Errorf("invalid id '%s'", c.Param("id"))})
		}
		events, err := SearchTransitionsFunc(c.Request.Context(), id)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, events)
	})
}
