package servehttp

import (
	"net/http"

	"maintflow/common"

	"github.com/gin-gonic/gin"
)

func RegisterIndexRestAPI(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": common.GetServiceName(), "instance": common.GetServiceInstance()})
	})
}
