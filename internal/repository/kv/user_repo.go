package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/repository"
	"github.com/and161185/signflow/internal/storage"
)

// UserRepo implements repository.UserRepository. Users are keyed by normalized email,
// so the uniqueness check and the insert are one guarded write.
type UserRepo struct{ p storage.Provider }

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo constructs a user repository.
func NewUserRepo(p storage.Provider) *UserRepo { return &UserRepo{p: p} }

func userKey(email string) string {
	return usersPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new user.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if _, err := r.p.Put(ctx, userKey(u.Email), b, 0); err != nil {
		if errors.Is(err, errs.ErrConcurrentModification) {
			return errs.ErrAlreadyExists
		}
		return storageErr("create user", err)
	}
	return nil
}

// GetByEmail loads a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	rec, err := r.p.Get(ctx, userKey(email))
	if err != nil {
		return nil, storageErr("get user", err)
	}
	var u model.User
	if err := json.Unmarshal(rec.Value, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w: %w", errs.ErrStorage, err)
	}
	return &u, nil
}
