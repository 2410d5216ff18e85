package session

import (
	"strings"
	"time"

	"maintflow/bizerror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const TokenExpiration = 24 * time.Hour

var TokenCache = cache.New(TokenExpiration, 1*time.Minute)

const KeySecCtx = "SecCtx"
const KeySecToken = "sec_token"

// StaticToken binds a fixed token to an identity, used by service accounts and development setups.
type StaticToken struct {
	Token    string   `mapstructure:"token" validate:"required"`
	Identity Identity `mapstructure:"identity"`
}

// RegisterStaticTokens puts non expiring tokens into the token cache.
func RegisterStaticTokens(tokens []StaticToken) {
	for _, t := range tokens {
		TokenCache.Set(t.Token, &Context{Token: t.Token, Identity: t.Identity, SigningTime: time.Now()}, cache.NoExpiration)
	}
}

// IssueToken signs a new expiring session for the identity.
func IssueToken(identity Identity) *Context {
	secCtx := &Context{Token: uuid.New().String(), Identity: identity, SigningTime: time.Now()}
	TokenCache.Set(secCtx.Token, secCtx, cache.DefaultExpiration)
	return secCtx
}

func FindSecurityContext(ctx *gin.Context) *Context {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return nil
	}
	secCtx, ok := value.(*Context)
	if !ok || secCtx.Token == "" {
		return nil
	}
	return secCtx
}

func SimpleAuthFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := requestToken(ctx)
		if token == "" {
			panic(bizerror.ErrUnauthenticated)
		}
		securityContextValue, found := TokenCache.Get(token)
		if !found {
			panic(bizerror.ErrUnauthenticated)
		}
		secCtx, ok := securityContextValue.(*Context)
		if !ok {
			panic(bizerror.ErrUnauthenticated)
		}
		SaveSecurityContext(ctx, secCtx)
		ctx.Next()
	}
}

func requestToken(ctx *gin.Context) string {
	if header := ctx.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	token, err := ctx.Cookie(KeySecToken)
	if err != nil {
		return ""
	}
	return token
}

func SaveSecurityContext(ctx *gin.Context, secCtx *Context) {
	if secCtx != nil && secCtx.Token != "" {
		ctx.Set(KeySecCtx, secCtx)
	}
}
