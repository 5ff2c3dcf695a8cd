package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/seprediction/backend/internal/models"
	"golang.org/x/sys/unix"
)

const legacyJoinedLayout = "2006-01-02"

// fileUser is the on-disk user record
type fileUser struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// Fields of the older flat format, read once and never written back
	LegacyPassword string `json:"password,omitempty"`
	LegacyJoined   string `json:"joined,omitempty"`
}

// fileDocument is the on-disk layout of the users file
type fileDocument struct {
	NextID int                  `json:"next_id"`
	Users  map[string]*fileUser `json:"users"`
}

// userFileRepository implements the credential store on a single JSON file.
//
// All reads and writes go through one mutex and every mutation is written to a
// temporary file and renamed over the original, so a crash never leaves a torn file.
type userFileRepository struct {
	mu     sync.RWMutex
	path   string
	nextID int
	users  map[string]*models.User
}

// NewUserFileRepository loads the users file, creating an empty store when it does not exist
func NewUserFileRepository(path string) (*userFileRepository, error) {
	r := &userFileRepository{
		path:   path,
		nextID: 1,
		users:  make(map[string]*models.User),
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

// Create inserts a new user and assigns the next id. Ids are never reused.
func (r *userFileRepository) Create(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Email]; exists {
		return models.ErrUserExists
	}

	stored := *user
	stored.ID = r.nextID
	r.users[stored.Email] = &stored
	r.nextID++

	if err := r.save(); err != nil {
		delete(r.users, stored.Email)
		r.nextID--
		return err
	}

	user.ID = stored.ID
	return nil
}

// GetByEmail retrieves a user by normalized email
func (r *userFileRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}

	copied := *user
	return &copied, nil
}

// GetByID retrieves a user by id
func (r *userFileRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}

	return nil, models.ErrUserNotFound
}

// UpdateStatus moves a non-admin user from one approval status to another.
// It fails with models.ErrInvalidTransition when the stored status is no longer from.
func (r *userFileRepository) UpdateStatus(ctx context.Context, email string, from, to models.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return models.ErrUserNotFound
	}
	if user.IsAdmin() {
		return models.ErrForbidden
	}
	if current := user.EffectiveStatus(); current != from {
		return fmt.Errorf("%w: status is %s, expected %s", models.ErrInvalidTransition, current, from)
	}

	previous := user.Status
	user.Status = to

	if err := r.save(); err != nil {
		user.Status = previous
		return err
	}

	return nil
}

// UpdatePasswordHash replaces the stored digest while it still equals oldHash
func (r *userFileRepository) UpdatePasswordHash(ctx context.Context, email, oldHash, newHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok || user.PasswordHash != oldHash {
		return models.ErrUserNotFound
	}

	user.PasswordHash = newHash

	if err := r.save(); err != nil {
		user.PasswordHash = oldHash
		return err
	}

	return nil
}

// Delete removes a non-admin user and returns the removed record
func (r *userFileRepository) Delete(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	if user.IsAdmin() {
		return nil, models.ErrForbidden
	}

	delete(r.users, email)

	if err := r.save(); err != nil {
		r.users[email] = user
		return nil, err
	}

	return user, nil
}

// ListNonAdmin returns every non-admin user ordered by registration time
func (r *userFileRepository) ListNonAdmin(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.users))
	for _, user := range r.users {
		if !user.IsAdmin() {
			users = append(users, *user)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})

	return users, nil
}

// CountAdmins returns the number of admin accounts
func (r *userFileRepository) CountAdmins(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, user := range r.users {
		if user.IsAdmin() {
			count++
		}
	}

	return count, nil
}

// GetAdmin returns the bootstrap admin (the admin with the lowest id)
func (r *userFileRepository) GetAdmin(ctx context.Context) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	admin := r.bootstrapAdmin()
	if admin == nil {
		return nil, models.ErrUserNotFound
	}

	copied := *admin
	return &copied, nil
}

// UpdateAdmin changes the bootstrap admin credentials
func (r *userFileRepository) UpdateAdmin(ctx context.Context, update models.AdminUpdate) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	admin := r.bootstrapAdmin()
	if admin == nil {
		return nil, models.ErrUserNotFound
	}

	updated := *admin
	if update.Name != "" {
		updated.Name = update.Name
	}
	if update.Email != "" {
		updated.Email = update.Email
	}
	if update.PasswordHash != "" {
		updated.PasswordHash = update.PasswordHash
	}

	if updated.Email != admin.Email {
		if _, taken := r.users[updated.Email]; taken {
			return nil, models.ErrUserExists
		}
	}

	delete(r.users, admin.Email)
	r.users[updated.Email] = &updated

	if err := r.save(); err != nil {
		delete(r.users, updated.Email)
		r.users[admin.Email] = admin
		return nil, err
	}

	copied := updated
	return &copied, nil
}

// bootstrapAdmin must be called with the lock held
func (r *userFileRepository) bootstrapAdmin() *models.User {
	var admin *models.User
	for _, user := range r.users {
		if user.IsAdmin() && (admin == nil || user.ID < admin.ID) {
			admin = user
		}
	}
	return admin
}

// load reads the users file. Both the current layout and the older flat email map are accepted.
func (r *userFileRepository) load() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read users file: %w", models.ErrStore, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: users file is corrupt: %w", models.ErrStore, err)
	}

	doc := fileDocument{}
	if _, ok := raw["users"]; ok {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%w: users file is corrupt: %w", models.ErrStore, err)
		}
	} else {
		legacy := make(map[string]*fileUser)
		if err := json.Unmarshal(data, &legacy); err != nil {
			return fmt.Errorf("%w: users file is corrupt: %w", models.ErrStore, err)
		}
		doc.Users = legacy
	}

	records := make([]*models.User, 0, len(doc.Users))
	for key, record := range doc.Users {
		if record == nil {
			continue
		}
		user, err := record.toModel(key)
		if err != nil {
			return fmt.Errorf("%w: users file is corrupt: %w", models.ErrStore, err)
		}
		if _, dup := r.users[user.Email]; dup {
			return fmt.Errorf("%w: users file has duplicate email %q", models.ErrStore, user.Email)
		}
		r.users[user.Email] = user
		records = append(records, user)
	}

	maxID := 0
	for _, user := range records {
		if user.ID > maxID {
			maxID = user.ID
		}
	}

	r.nextID = doc.NextID
	if r.nextID <= maxID {
		r.nextID = maxID + 1
	}

	// Older files derived ids from the user count, so a delete followed by a
	// registration repeats an id. The earliest registration keeps it.
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Email < b.Email
	})

	seen := make(map[int]struct{}, len(records))
	renumbered := false
	for _, user := range records {
		if _, taken := seen[user.ID]; taken || user.ID <= 0 {
			user.ID = r.nextID
			r.nextID++
			renumbered = true
		}
		seen[user.ID] = struct{}{}
	}

	if renumbered {
		return r.save()
	}

	return nil
}

// save must be called with the write lock held
func (r *userFileRepository) save() error {
	doc := fileDocument{
		NextID: r.nextID,
		Users:  make(map[string]*fileUser, len(r.users)),
	}
	for email, user := range r.users {
		doc.Users[email] = &fileUser{
			ID:           user.ID,
			Name:         user.Name,
			Email:        user.Email,
			PasswordHash: user.PasswordHash,
			Role:         string(user.Role),
			Status:       string(user.Status),
			CreatedAt:    user.CreatedAt,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode users: %w", models.ErrStore, err)
	}

	return writeFileAtomic(r.path, data)
}

// writeFileAtomic writes data to a temp file next to path and renames it over path
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", models.ErrStore, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to write %s: %w", models.ErrStore, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to sync %s: %w", models.ErrStore, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to close %s: %w", models.ErrStore, path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to replace %s: %w", models.ErrStore, path, err)
	}

	return nil
}

func (f *fileUser) toModel(key string) (*models.User, error) {
	email := models.NormalizeEmail(f.Email)
	if email == "" {
		email = models.NormalizeEmail(key)
	}

	role, err := models.ParseRole(f.Role)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", email, err)
	}
	status, err := models.ParseStatus(f.Status)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", email, err)
	}

	user := &models.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        email,
		PasswordHash: f.PasswordHash,
		Role:         role,
		Status:       status,
		CreatedAt:    f.CreatedAt,
	}
	if user.PasswordHash == "" {
		user.PasswordHash = f.LegacyPassword
	}
	if user.CreatedAt.IsZero() && f.LegacyJoined != "" {
		if joined, err := time.Parse(legacyJoinedLayout, f.LegacyJoined); err == nil {
			user.CreatedAt = joined
		}
	}

	return user, nil
}

// FileLock is an advisory lock that keeps a second process from writing the same users file
type FileLock struct {
	file *os.File
}

// AcquireFileLock takes an exclusive lock on path+".lock" without blocking
func AcquireFileLock(path string) (*FileLock, error) {
	lockPath := path + ".lock"

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("users file %s is in use by another process", path)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", lockPath, err)
	}

	return &FileLock{file: f}, nil
}

// Release unlocks and closes the lock file
func (l *FileLock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("failed to unlock: %w", err)
	}
	return l.file.Close()
}
