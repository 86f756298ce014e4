package auth

import (
	"context"
	"errors"
)

type ctxKey int

const ctxUser ctxKey = iota

// ErrNoSession is returned when no logged-in user is available.
var ErrNoSession = errors.New("auth: no session")

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxUser, u)
}

func UserFrom(ctx context.Context) (User, error) {
	if u, ok := ctx.Value(ctxUser).(User); ok && u.ID != "" {
		return u, nil
	}
	return User{}, ErrNoSession
}

// UserID returns the logged-in user's id from ctx.
func UserID(ctx context.Context) (string, error) {
	u, err := UserFrom(ctx)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}
