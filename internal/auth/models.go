package auth

import "time"

// User is the backend's user document as returned by /auth/login,
// /auth/signup and /auth/me.
type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// Record is what a Store persists between agent restarts.
type Record struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func (r Record) Empty() bool { return r.Token == "" }

// authPayload is the "data" object of login and signup responses.
type authPayload struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
