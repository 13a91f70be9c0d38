package identity

import (
	"sort"
	"sync"
	"time"
)

// Lockout policy defaults.
const (
	DefaultMaxFailures     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// account is the internal per-user record.
type account struct {
	user         User
	passwordHash string
	failures     int
	lockedUntil  time.Time
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// MaxFailures is the number of consecutive failed logins that
	// triggers a lockout. Zero selects DefaultMaxFailures.
	MaxFailures int

	// LockoutDuration is how long a locked account stays locked.
	// Zero selects DefaultLockoutDuration.
	LockoutDuration time.Duration

	// Hasher verifies and produces password hashes. Nil selects bcrypt
	// at the default cost.
	Hasher PasswordHasher

	// Now is the clock, overridable in tests. Nil selects time.Now.
	Now func() time.Time
}

func (c *RegistryConfig) applyDefaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = DefaultLockoutDuration
	}
	if c.Hasher == nil {
		c.Hasher = NewBcryptHasher(0)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Registry is an in-memory account store with login lockout.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	accounts map[string]*account

	maxFailures int
	lockout     time.Duration
	hasher      PasswordHasher
	now         func() time.Time

	// dummyHash keeps credential verification roughly constant-time
	// for unknown usernames.
	dummyHash string
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	cfg.applyDefaults()

	dummy, err := cfg.Hasher.Hash("registry-dummy-password-1")
	if err != nil {
		return nil, err
	}

	return &Registry{
		accounts:    make(map[string]*account),
		maxFailures: cfg.MaxFailures,
		lockout:     cfg.LockoutDuration,
		hasher:      cfg.Hasher,
		now:         cfg.Now,
		dummyHash:   dummy,
	}, nil
}

// Register creates a new account. An empty role defaults to RoleReader.
func (r *Registry) Register(username, password string, role Role) (User, error) {
	if role == "" {
		role = RoleReader
	}
	if !role.Valid() {
		return User{}, ErrInvalidRole
	}
	return r.register(username, password, role)
}

// EnsureAdmin creates an admin account if it does not already exist.
// An existing account keeps its current password and role.
func (r *Registry) EnsureAdmin(username, password string) (User, bool, error) {
	r.mu.Lock()
	if acc, ok := r.accounts[username]; ok {
		u := acc.user
		r.mu.Unlock()
		return u, false, nil
	}
	r.mu.Unlock()

	u, err := r.register(username, password, RoleAdmin)
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func (r *Registry) register(username, password string, role Role) (User, error) {
	if err := ValidateUsername(username); err != nil {
		return User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return User{}, err
	}

	// Hash outside the lock; bcrypt is slow.
	hash, err := r.hasher.Hash(password)
	if err != nil {
		return User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[username]; ok {
		return User{}, ErrUsernameTaken
	}

	u := User{
		Username:  username,
		Role:      role,
		CreatedAt: r.now().UTC(),
	}
	r.accounts[username] = &account{user: u, passwordHash: hash}
	return u, nil
}

// Authenticate verifies a username/password pair.
//
// Unknown usernames and wrong passwords both return
// ErrInvalidCredentials. Repeated failures lock the account. The
// attempt that trips the lock still reads as a credential failure
// (the *LockedError it returns unwraps to ErrInvalidCredentials);
// attempts against a locked account return a bare *LockedError.
func (r *Registry) Authenticate(username, password string) (User, error) {
	now := r.now()

	r.mu.Lock()
	acc, ok := r.accounts[username]
	if ok && now.Before(acc.lockedUntil) {
		lockedUntil := acc.lockedUntil
		r.mu.Unlock()
		// Burn a verification so timing does not reveal the lock.
		_ = r.hasher.Verify(r.dummyHash, password)
		return User{}, &LockedError{Username: username, Until: lockedUntil}
	}
	var hash string
	if ok {
		hash = acc.passwordHash
	} else {
		hash = r.dummyHash
	}
	r.mu.Unlock()

	// Verify outside the lock; bcrypt is slow. Unknown users burn a
	// dummy verification so timing does not reveal account existence.
	verifyErr := r.hasher.Verify(hash, password)

	if !ok {
		return User{}, ErrInvalidCredentials
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the lock; a parallel attempt may have locked the
	// account while we were verifying.
	if now.Before(acc.lockedUntil) {
		return User{}, &LockedError{Username: username, Until: acc.lockedUntil}
	}

	if verifyErr != nil {
		acc.failures++
		if acc.failures >= r.maxFailures {
			acc.failures = 0
			acc.lockedUntil = now.Add(r.lockout)
			return User{}, &LockedError{Username: username, Until: acc.lockedUntil, Triggered: true}
		}
		return User{}, ErrInvalidCredentials
	}

	acc.failures = 0
	acc.lockedUntil = time.Time{}
	acc.user.LastLoginAt = now.UTC()
	return acc.user, nil
}

// Lookup returns the account with the given username.
func (r *Registry) Lookup(username string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return acc.user, nil
}

// List returns all accounts sorted by creation time.
func (r *Registry) List() []User {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]User, 0, len(r.accounts))
	for _, acc := range r.accounts {
		users = append(users, acc.user)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Username < users[j].Username
	})
	return users
}

// Count returns the number of registered accounts.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}
