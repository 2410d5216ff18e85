package servehttp

import (
	"fmt"
	"strconv"

	"maintflow/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

func pathID(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: fmt.Errorf("invalid id '%s'", c.Param(name))})
	}
	return id
}

func queryAmount(c *gin.Context, name string) int64 {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: fmt.Errorf("invalid amount '%s'", raw)})
	}
	return v
}
