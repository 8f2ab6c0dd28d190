package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/account-service/internal/domain"
	"github.com/viralforge/account-service/internal/ports"
)

// UserRepository is a process-local credential store with the same uniqueness
// guarantees as the Postgres adapter. It backs the "memory" storage driver and tests.
type UserRepository struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]domain.User
	outbox *OutboxRepository
}

func NewUserRepository(outbox *OutboxRepository) *UserRepository {
	if outbox == nil {
		outbox = NewOutboxRepository()
	}
	return &UserRepository{
		users:  make(map[uuid.UUID]domain.User),
		outbox: outbox,
	}
}

func (r *UserRepository) GetByLogin(_ context.Context, login string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Login == login })
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *UserRepository) GetByActivationKey(_ context.Context, key string) (domain.User, error) {
	if key == "" {
		return domain.User{}, domain.ErrNotFound
	}
	return r.find(func(u domain.User) bool { return u.ActivationKey == key })
}

func (r *UserRepository) GetByResetKey(_ context.Context, key string) (domain.User, error) {
	if key == "" {
		return domain.User{}, domain.ErrNotFound
	}
	return r.find(func(u domain.User) bool { return u.ResetKey == key })
}

func (r *UserRepository) CountByIPCreatedBetween(_ context.Context, ip string, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, u := range r.users {
		if u.IPAddress != ip {
			continue
		}
		if u.CreatedDate.Before(from) || u.CreatedDate.After(to) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *UserRepository) CreateWithOutboxTx(ctx context.Context, user domain.User, event ports.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return domain.ErrDuplicateLogin
	}
	if err := r.checkUniqueLocked(user); err != nil {
		return err
	}
	r.users[user.ID] = cloneUser(user)
	r.outbox.enqueue(event)
	return nil
}

func (r *UserRepository) UpdateWithOutboxTx(ctx context.Context, user domain.User, event ports.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	if err := r.checkUniqueLocked(user); err != nil {
		return err
	}
	r.users[user.ID] = cloneUser(user)
	r.outbox.enqueue(event)
	return nil
}

// All returns a snapshot ordered by creation date.
func (r *UserRepository) All() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedDate.Before(out[j].CreatedDate) })
	return out
}

func (r *UserRepository) checkUniqueLocked(user domain.User) error {
	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if existing.Login == user.Login {
			return domain.ErrDuplicateLogin
		}
		if existing.Email == user.Email {
			return domain.ErrDuplicateEmail
		}
	}
	return nil
}

func (r *UserRepository) find(match func(domain.User) bool) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func cloneUser(u domain.User) domain.User {
	out := u
	if u.ResetDate != nil {
		t := *u.ResetDate
		out.ResetDate = &t
	}
	out.Authorities = append([]string(nil), u.Authorities...)
	return out
}
