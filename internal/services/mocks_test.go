package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seprediction/backend/internal/auth/service"
	"github.com/seprediction/backend/internal/models"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// testHasher uses the minimum bcrypt cost to keep tests fast
var testHasher = service.NewPasswordHasher(bcrypt.MinCost)

// fakeUserStore is an in-memory credential store used by the service tests
type fakeUserStore struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*models.User

	// err, when set, is returned by every method
	err error
	// updateErr, when set, is returned by UpdateStatus only
	updateErr error
	// updateCalls counts UpdateStatus calls that reached the store
	updateCalls int
	// beforeUpdate, when set, runs at the start of UpdateStatus outside the lock
	beforeUpdate func(email string, to models.Status)
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{nextID: 1, users: make(map[string]*models.User)}
	for _, u := range users {
		copied := *u
		if copied.ID == 0 {
			copied.ID = s.nextID
		}
		if copied.ID >= s.nextID {
			s.nextID = copied.ID + 1
		}
		s.users[copied.Email] = &copied
	}
	return s
}

func (s *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[user.Email]; ok {
		return models.ErrUserExists
	}
	user.ID = s.nextID
	s.nextID++
	copied := *user
	s.users[user.Email] = &copied
	return nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *fakeUserStore) UpdateStatus(ctx context.Context, email string, from, to models.Status) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate(email, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.err != nil {
		return s.err
	}
	if s.updateErr != nil {
		return s.updateErr
	}
	u, ok := s.users[email]
	if !ok {
		return models.ErrUserNotFound
	}
	if u.IsAdmin() {
		return models.ErrForbidden
	}
	if u.EffectiveStatus() != from {
		return models.ErrInvalidTransition
	}
	u.Status = to
	return nil
}

func (s *fakeUserStore) UpdatePasswordHash(ctx context.Context, email, oldHash, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[email]
	if !ok || u.PasswordHash != oldHash {
		return models.ErrUserNotFound
	}
	u.PasswordHash = newHash
	return nil
}

func (s *fakeUserStore) passwordHash(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return u.PasswordHash
	}
	return ""
}

func (s *fakeUserStore) Delete(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	if u.IsAdmin() {
		return nil, models.ErrForbidden
	}
	delete(s.users, email)
	return u, nil
}

func (s *fakeUserStore) ListNonAdmin(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var users []models.User
	for _, u := range s.users {
		if !u.IsAdmin() {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *fakeUserStore) CountAdmins(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	count := 0
	for _, u := range s.users {
		if u.IsAdmin() {
			count++
		}
	}
	return count, nil
}

func (s *fakeUserStore) status(email string) models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return u.Status
	}
	return ""
}

// fakeSessionRepository is an in-memory session store used by the service tests
type fakeSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]models.Session

	createErr error
	getErr    error
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{sessions: make(map[string]models.Session)}
}

func (r *fakeSessionRepository) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *fakeSessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return &s, nil
}

func (r *fakeSessionRepository) Update(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return models.ErrSessionNotFound
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *fakeSessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepository) DeleteByUser(ctx context.Context, userID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeSessionRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// mockSessionInvalidator is a testify mock of SessionInvalidator
type mockSessionInvalidator struct {
	mock.Mock
}

func (m *mockSessionInvalidator) InvalidateUser(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func adminSession() *models.Session {
	return &models.Session{
		ID:         "admin-session",
		UserID:     1,
		Email:      "admin@gmail.com",
		Name:       "Admin",
		Role:       models.RoleAdmin,
		Durability: models.DurabilityEphemeral,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func userSession(userID int, email string) *models.Session {
	return &models.Session{
		ID:         "user-session",
		UserID:     userID,
		Email:      email,
		Name:       "Ann",
		Role:       models.RoleUser,
		Durability: models.DurabilityEphemeral,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func seedUser(id int, email string, role models.Role, status models.Status, password string) *models.User {
	hash, err := testHasher.Hash(password)
	if err != nil {
		panic(err)
	}
	return &models.User{
		ID:           id,
		Name:         "User " + email,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		CreatedAt:    time.Date(2025, 3, id, 9, 0, 0, 0, time.UTC),
	}
}
