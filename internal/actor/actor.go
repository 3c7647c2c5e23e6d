// Package actor identifies who initiated a lifecycle operation. Every
// cancel/void/swap/consent call takes an explicit Actor instead of reading an
// ambient current user.
package actor

import "github.com/bwmarrin/snowflake"

type Type string

const (
	TypeUser     Type = "user"
	TypeAPIUser  Type = "api_user"
	TypeInternal Type = "internal"
)

type Actor struct {
	Type      Type
	UserID    *snowflake.ID
	APIUserID *snowflake.ID
}

func User(id snowflake.ID) Actor {
	return Actor{Type: TypeUser, UserID: &id}
}

func APIUser(id snowflake.ID) Actor {
	return Actor{Type: TypeAPIUser, APIUserID: &id}
}

func Internal() Actor {
	return Actor{Type: TypeInternal}
}

// AuthorID returns the id recorded on history notes. Internal actors author
// as 0.
func (a Actor) AuthorID() snowflake.ID {
	switch {
	case a.UserID != nil:
		return *a.UserID
	case a.APIUserID != nil:
		return *a.APIUserID
	default:
		return 0
	}
}

// IsExternal reports whether a human or API caller initiated the operation,
// as opposed to an internal worker.
func (a Actor) IsExternal() bool {
	return a.Type == TypeUser || a.Type == TypeAPIUser
}
