package models

import "github.com/google/uuid"

// User is the caller identity the gateway needs for routing decisions:
// who they are (node ownership checks) and whether they hold the admin
// flag (node/credential management). Accounts themselves live in the
// surrounding suite; the gateway only consumes its tokens.
type User struct {
	ID      uuid.UUID
	Email   string
	IsAdmin bool
}
