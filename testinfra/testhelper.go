package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"

	"maintflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// ExecuteRequest serves req with router and returns status, body and the raw response.
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, string(body), resp
}

// BuildSecCtx build security context
func BuildSecCtx(uid types.ID, role string) *session.Context {
	return &session.Context{Token: "mock-token", Identity: session.Identity{ID: uid, Name: "user" + uid.String(), Role: role}}
}

// WithSecCtx returns a middleware that installs secCtx the way the auth filter would.
func WithSecCtx(secCtx *session.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.SaveSecurityContext(c, secCtx)
		c.Next()
	}
}
