package auth

import "errors"

// ErrForbidden is returned when a verified caller may not perform an action.
var ErrForbidden = errors.New("forbidden")

// Action names a mutating operation subject to authorization.
type Action string

const (
	ActionGameCreate    Action = "game:create"
	ActionGameUpdate    Action = "game:update"
	ActionGameDelete    Action = "game:delete"
	ActionGameCover     Action = "game:cover"
	ActionLibraryAdd    Action = "library:add"
	ActionLibraryRemove Action = "library:remove"
)

// Policy decides whether verified claims allow an action.
type Policy struct {
	// CatalogAdminOnly restricts catalog writes to admins.
	CatalogAdminOnly bool
}

// Authorize returns nil when claims may perform action and ErrForbidden otherwise.
// Library actions always target the caller's own library.
func (p Policy) Authorize(claims Claims, action Action) error {
	if claims.UserID < 1 {
		return ErrForbidden
	}

	switch action {
	case ActionGameCreate, ActionGameUpdate, ActionGameDelete, ActionGameCover:
		if p.CatalogAdminOnly && !claims.IsAdmin {
			return ErrForbidden
		}
		return nil
	case ActionLibraryAdd, ActionLibraryRemove:
		return nil
	default:
		return ErrForbidden
	}
}
