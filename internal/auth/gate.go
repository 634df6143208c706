package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"sync"

	"github.com/meeter/meeter/internal/model"
	"github.com/meeter/meeter/internal/repository"
)

// ErrUnauthorized is returned when no strategy admits the presented key.
var ErrUnauthorized = errors.New("unauthorized")

// Strategy admits a key or declines it.
// A declined key returns (nil, nil); errors are reserved for failures.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, key string) (*model.Identity, error)
}

// Gate evaluates strategies in order; the first to admit the key wins.
type Gate struct {
	strategies []Strategy
}

// NewGate builds a gate from strategies; nil entries are skipped.
func NewGate(strategies ...Strategy) *Gate {
	g := &Gate{}
	for _, s := range strategies {
		if s != nil {
			g.strategies = append(g.strategies, s)
		}
	}
	return g
}

// Strategies returns the names of the configured strategies in order.
func (g *Gate) Strategies() []string {
	names := make([]string, 0, len(g.strategies))
	for _, s := range g.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Authenticate resolves key to an identity or returns ErrUnauthorized.
func (g *Gate) Authenticate(ctx context.Context, key string) (*model.Identity, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}

	for _, s := range g.strategies {
		id, err := s.Authenticate(ctx, key)
		if err != nil {
			return nil, err
		}
		if id != nil {
			id.Key = key
			return id, nil
		}
	}

	return nil, ErrUnauthorized
}

// MasterKey admits the process-wide master key as an admin identity.
type MasterKey struct {
	key string
}

// NewMasterKey returns nil when key is empty, which disables the strategy.
func NewMasterKey(key string) Strategy {
	if key == "" {
		return nil
	}
	return &MasterKey{key: key}
}

// Name implements Strategy.
func (m *MasterKey) Name() string { return "master_key" }

// Authenticate implements Strategy.
func (m *MasterKey) Authenticate(ctx context.Context, key string) (*model.Identity, error) {
	if constantTimeEqual(key, m.key) {
		return &model.Identity{Role: model.RoleAdmin}, nil
	}
	return nil, nil
}

// maxConcurrentVerifications bounds the Argon2id work in flight.
// Each verification holds argon2Memory KiB.
const maxConcurrentVerifications = 2

// verifyKey is swapped in tests to count hash verifications.
var verifyKey = VerifyKey

// MasterKeyHash admits a key matching an Argon2id hash as an admin identity.
// Place it after cheaper strategies: every declined key costs one verification.
// The digest of the last verified key is kept so repeat requests skip Argon2.
type MasterKeyHash struct {
	hash string
	sem  chan struct{}

	mu       sync.RWMutex
	verified [sha256.Size]byte
	known    bool
}

// NewMasterKeyHash returns nil when hash is empty, which disables the strategy.
func NewMasterKeyHash(hash string) Strategy {
	if hash == "" {
		return nil
	}
	return &MasterKeyHash{
		hash: hash,
		sem:  make(chan struct{}, maxConcurrentVerifications),
	}
}

// Name implements Strategy.
func (m *MasterKeyHash) Name() string { return "master_key_hash" }

// Authenticate implements Strategy.
func (m *MasterKeyHash) Authenticate(ctx context.Context, key string) (*model.Identity, error) {
	digest := sha256.Sum256([]byte(key))

	m.mu.RLock()
	hit := m.known && subtle.ConstantTimeCompare(digest[:], m.verified[:]) == 1
	m.mu.RUnlock()
	if hit {
		return &model.Identity{Role: model.RoleAdmin}, nil
	}

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	ok, err := verifyKey(key, m.hash)
	<-m.sem
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	m.mu.Lock()
	m.verified = digest
	m.known = true
	m.mu.Unlock()

	return &model.Identity{Role: model.RoleAdmin}, nil
}

// MachineKey admits a fixed machine key as a machine identity.
type MachineKey struct {
	key string
}

// NewMachineKey returns nil when key is empty, which disables the strategy.
func NewMachineKey(key string) Strategy {
	if key == "" {
		return nil
	}
	return &MachineKey{key: key}
}

// Name implements Strategy.
func (m *MachineKey) Name() string { return "machine_key" }

// Authenticate implements Strategy.
func (m *MachineKey) Authenticate(ctx context.Context, key string) (*model.Identity, error) {
	if constantTimeEqual(key, m.key) {
		return &model.Identity{Role: model.RoleMachine}, nil
	}
	return nil, nil
}

// UserFinder looks users up by a named field.
type UserFinder interface {
	FindUserBy(ctx context.Context, field repository.Field, value string) (*model.User, error)
}

// UserKey admits keys that belong to a registered user.
type UserKey struct {
	users UserFinder
}

// NewUserKey creates a UserKey strategy.
func NewUserKey(users UserFinder) *UserKey {
	return &UserKey{users: users}
}

// Name implements Strategy.
func (u *UserKey) Name() string { return "user_key" }

// Authenticate implements Strategy.
func (u *UserKey) Authenticate(ctx context.Context, key string) (*model.Identity, error) {
	user, err := u.users.FindUserBy(ctx, repository.FieldAPIKey, key)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &model.Identity{Role: model.RoleUser, User: user}, nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
