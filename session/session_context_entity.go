package session

import (
	"time"

	"maintflow/domain"

	"github.com/fundwit/go-commons/types"
)

type Context struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`

	SigningTime time.Time `json:"-"`
}

type Identity struct {
	ID   types.ID `json:"id" mapstructure:"id" validate:"required"`
	Name string   `json:"name" mapstructure:"name"`
	Role string   `json:"role" mapstructure:"role" validate:"required"`
}

func (c *Context) Actor() domain.Actor {
	return domain.Actor{ID: c.Identity.ID, Role: c.Identity.Role}
}
