package mockapi

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameNotUnique = errors.New("username already taken")
)

// user is the stored account. Only userResponse is sent over the wire.
type user struct {
	ID           int64
	Username     string
	Name         string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	BirthDate    string // YYYY-MM-DD, empty when not set
}

type userResponse struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt"`
	BirthDate *string `json:"birthDate"`
}

func (u user) response() userResponse {
	res := userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Status:    u.Status,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.BirthDate != "" {
		birthDate := u.BirthDate
		res.BirthDate = &birthDate
	}
	return res
}

// Repository is the in-memory user table. Ids are assigned sequentially from 1.
type Repository struct {
	mu     sync.RWMutex
	users  map[int64]*user
	nextID int64
	now    func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		users:  make(map[int64]*user),
		nextID: 1,
		now:    time.Now,
	}
}

// CanonicalUsername trims the username and converts it to NFC so visually identical names compare equal
func CanonicalUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

func (r *Repository) Create(username, name, passwordHash string) (user, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username = CanonicalUsername(username)

	if r.usernameTaken(username, 0) {
		return user{}, ErrUsernameNotUnique
	}

	u := &user{
		ID:           r.nextID,
		Username:     username,
		Name:         name,
		PasswordHash: passwordHash,
		Status:       StatusOffline,
		CreatedAt:    r.now(),
	}
	r.users[u.ID] = u
	r.nextID++
	return *u, nil
}

func (r *Repository) GetByID(id int64) (user, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return user{}, ErrUserNotFound
	}
	return *u, nil
}

func (r *Repository) GetByUsername(username string) (user, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username = CanonicalUsername(username)
	for _, u := range r.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return user{}, ErrUserNotFound
}

// List returns all users ordered by id
func (r *Repository) List() []user {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]user, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}
	slices.SortFunc(users, func(a, b user) int {
		return int(a.ID - b.ID)
	})
	return users
}

// Update applies the non-nil fields
func (r *Repository) Update(id int64, username, birthDate *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if username != nil {
		canonical := CanonicalUsername(*username)
		if r.usernameTaken(canonical, id) {
			return ErrUsernameNotUnique
		}
		u.Username = canonical
	}
	if birthDate != nil {
		u.BirthDate = *birthDate
	}
	return nil
}

func (r *Repository) SetStatus(id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Status = status
	return nil
}

// usernameTaken must be called with the lock held
func (r *Repository) usernameTaken(username string, exceptID int64) bool {
	for _, u := range r.users {
		if u.Username == username && u.ID != exceptID {
			return true
		}
	}
	return false
}
