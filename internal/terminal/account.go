package terminal

import (
	"context"

	"github.com/examsaathi/backend/internal/config"
	"github.com/examsaathi/backend/internal/kvstore"
	"github.com/examsaathi/backend/internal/model"
)

// Account is the signed-in user kept in the local store, the record a
// browser client keeps under its user key plus the API token.
type Account struct {
	model.User
	Token string `json:"token,omitempty"`
}

// SaveAccount stores the signed-in user.
func SaveAccount(ctx context.Context, store kvstore.Store, acc Account) error {
	return kvstore.SetJSON(ctx, store, config.CacheKey.UserKey(), acc)
}

// LoadAccount returns the stored user, ok=false when nobody is signed in.
func LoadAccount(ctx context.Context, store kvstore.Store) (Account, bool, error) {
	var acc Account
	ok, err := kvstore.GetJSON(ctx, store, config.CacheKey.UserKey(), &acc)
	if err != nil || !ok {
		return Account{}, false, err
	}
	return acc, true, nil
}

// Logout forgets the stored user.
func Logout(ctx context.Context, store kvstore.Store) error {
	return store.Delete(ctx, config.CacheKey.UserKey())
}
