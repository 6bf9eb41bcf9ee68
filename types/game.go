package types

import "time"

// Game represents an entry in the public game catalog.
type Game struct {
	// ID is the unique identifier of the game.
	ID int `json:"id" db:"id"`

	// Title is the display name of the game. It is always non-empty.
	Title string `json:"title" db:"title"`

	// Description is a free-form summary of the game.
	Description string `json:"description" db:"description"`

	// Price is the list price. It is never negative and defaults to 0.
	Price float64 `json:"price" db:"price"`

	// CoverURL points at the cover image, either an external URL supplied
	// by the client or an object uploaded through the cover endpoint.
	CoverURL string `json:"coverUrl" db:"cover_url"`

	// Genre is a free-form genre label.
	Genre string `json:"genre" db:"genre"`

	// ReleaseDate is the release day of the game, if known.
	ReleaseDate *time.Time `json:"releaseDate" db:"release_date"`

	// CreatedBy references the user who created the record, if any.
	CreatedBy *int `json:"createdBy" db:"created_by"`

	// CreatedAt is the timestamp at which the game was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the game.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// GamePatch carries a partial update for a game. Nil fields are left untouched.
type GamePatch struct {
	Title       *string
	Description *string
	Price       *float64
	CoverURL    *string
	Genre       *string

	// ReleaseDate is applied when SetReleaseDate is true; a nil value clears it.
	ReleaseDate    *time.Time
	SetReleaseDate bool
}

// Apply copies the non-nil fields of the patch onto game.
func (p GamePatch) Apply(game *Game) {
	if p.Title != nil {
		game.Title = *p.Title
	}
	if p.Description != nil {
		game.Description = *p.Description
	}
	if p.Price != nil {
		game.Price = *p.Price
	}
	if p.CoverURL != nil {
		game.CoverURL = *p.CoverURL
	}
	if p.Genre != nil {
		game.Genre = *p.Genre
	}
	if p.SetReleaseDate {
		game.ReleaseDate = p.ReleaseDate
	}
}
