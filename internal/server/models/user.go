package models

import "time"

// User is the stored account. PasswordHash and RefreshTokenHash never leave
// the server; use Public for anything sent to a client.
type User struct {
	ID               string
	Email            string
	FirstName        string
	LastName         string
	PasswordHash     string
	RefreshTokenHash string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicUser is the projection of User that transports may return.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
