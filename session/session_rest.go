package session

import (
	"net/http"
	"time"

	"maintflow/bizerror"

	"github.com/gin-gonic/gin"
)

const PathSessions = "/v1/sessions"

// RegisterSessionRestAPI lets an authenticated caller open a cookie session, inspect it and close it.
func RegisterSessionRestAPI(r *gin.Engine, authFilter gin.HandlerFunc) {
	g := r.Group(PathSessions)
	g.POST("", authFilter, handleSignIn)
	g.GET("", authFilter, handleCurrent)
	g.DELETE("", handleSignOut)
}

func handleSignIn(c *gin.Context) {
	secCtx := FindSecurityContext(c)
	if secCtx == nil {
		panic(bizerror.ErrUnauthenticated)
	}
	issued := IssueToken(secCtx.Identity)
	c.SetCookie(KeySecToken, issued.Token, int(TokenExpiration/time.Second), "/", "", false, true)
	c.JSON(http.StatusOK, issued)
}

func handleCurrent(c *gin.Context) {
	secCtx := FindSecurityContext(c)
	if secCtx == nil {
		panic(bizerror.ErrUnauthenticated)
	}
	c.JSON(http.StatusOK, secCtx)
}

// handleSignOut drops issued sessions only, static tokens stay valid.
func handleSignOut(c *gin.Context) {
	token, _ := c.Cookie(KeySecToken) // ErrNoCookie
	if token != "" {
		if _, expiration, found := TokenCache.GetWithExpiration(token); found && !expiration.IsZero() {
			TokenCache.Delete(token)
		}
	}
	c.SetCookie(KeySecToken, "", -1, "/", "", false, true)
	c.AbortWithStatus(http.StatusNoContent)
}
