package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/seprediction/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "name", "email", "password_hash", "role", "status", "created_at"}

var testJoined = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// setupUserTestRepository creates a user repository with a mock database
func setupUserTestRepository(t *testing.T) (*userRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewUserRepository(db)

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

func TestNewUserRepository(t *testing.T) {
	db := &sql.DB{}

	repo := NewUserRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestUserRepository_Create(t *testing.T) {
	newUser := func() *models.User {
		return &models.User{
			Name:         "Ann",
			Email:        "ann@x.com",
			PasswordHash: "hash",
			Role:         models.RoleUser,
			Status:       models.StatusPending,
			CreatedAt:    testJoined,
		}
	}

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
		expectedID    int
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs("Ann", "ann@x.com", "hash", "user", "Pending", testJoined).
					WillReturnResult(sqlmock.NewResult(7, 1))
			},
			expectedID: 7,
		},
		{
			name: "duplicate email",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs("Ann", "ann@x.com", "hash", "user", "Pending", testJoined).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ann@x.com' for key 'email'"})
			},
			expectedError: models.ErrUserExists,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnError(errors.New("connection refused"))
			},
			expectedError: models.ErrStore,
		},
		{
			name: "error getting last insert id",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnResult(sqlmock.NewErrorResult(errors.New("last insert id error")))
			},
			expectedError: models.ErrStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			user := newUser()
			err := repo.Create(context.Background(), user)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Zero(t, user.ID)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedID, user.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(sqlmock.Sqlmock)
		expectedError  error
		expectedStatus models.Status
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(userRowColumns).
					AddRow(2, "Ann", "ann@x.com", "hash", "user", "Pending", testJoined)
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnRows(rows)
			},
			expectedStatus: models.StatusPending,
		},
		{
			name: "legacy record without status is active",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(userRowColumns).
					AddRow(2, "Ann", "ann@x.com", "hash", "user", nil, testJoined)
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnRows(rows)
			},
			expectedStatus: models.StatusActive,
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnError(sql.ErrNoRows)
			},
			expectedError: models.ErrUserNotFound,
		},
		{
			name: "unknown role",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(userRowColumns).
					AddRow(2, "Ann", "ann@x.com", "hash", "superuser", "Active", testJoined)
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnRows(rows)
			},
			expectedError: models.ErrStore,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnError(errors.New("database error"))
			},
			expectedError: models.ErrStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			user, err := repo.GetByEmail(context.Background(), "ann@x.com")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 2, user.ID)
				assert.Equal(t, models.RoleUser, user.Role)
				assert.Equal(t, tt.expectedStatus, user.Status)
				assert.Equal(t, testJoined, user.CreatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	repo, mock, cleanup := setupUserTestRepository(t)
	defer cleanup()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(1, "Admin", "admin@gmail.com", "hash", "admin", "Active", testJoined)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).
		WithArgs(1).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	user, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())

	_, err = repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateStatus(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users\s+SET status = \?\s+WHERE email = \? AND status = \? AND role <> 'admin'`).
					WithArgs("Active", "ann@x.com", "Pending").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "user not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs("Active", "ann@x.com", "Pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT role, status FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnError(sql.ErrNoRows)
			},
			expectedError: models.ErrUserNotFound,
		},
		{
			name: "admin target",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs("Active", "ann@x.com", "Pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT role, status FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnRows(sqlmock.NewRows([]string{"role", "status"}).AddRow("admin", "Active"))
			},
			expectedError: models.ErrForbidden,
		},
		{
			name: "status changed concurrently",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs("Active", "ann@x.com", "Pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT role, status FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnRows(sqlmock.NewRows([]string{"role", "status"}).AddRow("user", "Rejected"))
			},
			expectedError: models.ErrInvalidTransition,
		},
		{
			name: "update error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs("Active", "ann@x.com", "Pending").
					WillReturnError(errors.New("lock wait timeout"))
			},
			expectedError: models.ErrStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			err := repo.UpdateStatus(context.Background(), "ann@x.com", models.StatusPending, models.StatusActive)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Delete(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnRows(sqlmock.NewRows(userRowColumns).
						AddRow(2, "Ann", "ann@x.com", "hash", "user", "Active", testJoined))
				mock.ExpectExec(`DELETE FROM users WHERE id = \?`).
					WithArgs(2).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "admin target",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnRows(sqlmock.NewRows(userRowColumns).
						AddRow(1, "Admin", "ann@x.com", "hash", "admin", "Active", testJoined))
			},
			expectedError: models.ErrForbidden,
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnError(sql.ErrNoRows)
			},
			expectedError: models.ErrUserNotFound,
		},
		{
			name: "concurrently deleted",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \?`).
					WithArgs("ann@x.com").
					WillReturnRows(sqlmock.NewRows(userRowColumns).
						AddRow(2, "Ann", "ann@x.com", "hash", "user", "Active", testJoined))
				mock.ExpectExec(`DELETE FROM users WHERE id = \?`).
					WithArgs(2).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedError: models.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			user, err := repo.Delete(context.Background(), "ann@x.com")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 2, user.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_ListNonAdmin(t *testing.T) {
	repo, mock, cleanup := setupUserTestRepository(t)
	defer cleanup()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(2, "Ann", "ann@x.com", "hash", "user", "Pending", testJoined).
		AddRow(3, "Bob", "bob@x.com", "hash", "user", "Rejected", testJoined.Add(time.Hour))
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE role <> 'admin'`).WillReturnRows(rows)

	users, err := repo.ListNonAdmin(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ann@x.com", users[0].Email)
	assert.Equal(t, models.StatusRejected, users[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CountAdmins(t *testing.T) {
	repo, mock, cleanup := setupUserTestRepository(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE role = 'admin'`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE role = 'admin'`).
		WillReturnError(errors.New("database error"))

	count, err := repo.CountAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.CountAdmins(context.Background())
	assert.ErrorIs(t, err, models.ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateAdmin(t *testing.T) {
	adminRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(userRowColumns).
			AddRow(1, "Admin", "admin@gmail.com", "old-hash", "admin", "Active", testJoined)
	}

	tests := []struct {
		name          string
		update        models.AdminUpdate
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
		expectedEmail string
	}{
		{
			name:   "password only keeps name and email",
			update: models.AdminUpdate{PasswordHash: "new-hash"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE role = 'admin' ORDER BY id LIMIT 1 FOR UPDATE`).
					WillReturnRows(adminRow())
				mock.ExpectExec(`UPDATE users SET name = \?, email = \?, password_hash = \? WHERE id = \?`).
					WithArgs("Admin", "admin@gmail.com", "new-hash", 1).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedEmail: "admin@gmail.com",
		},
		{
			name:   "email taken by another account",
			update: models.AdminUpdate{Email: "ann@x.com"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE role = 'admin'`).
					WillReturnRows(adminRow())
				mock.ExpectExec(`UPDATE users SET`).
					WithArgs("Admin", "ann@x.com", "old-hash", 1).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
				mock.ExpectRollback()
			},
			expectedError: models.ErrUserExists,
		},
		{
			name:   "no admin",
			update: models.AdminUpdate{Name: "Root"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT (.+) FROM users WHERE role = 'admin'`).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			expectedError: models.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			admin, err := repo.UpdateAdmin(context.Background(), tt.update)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, admin)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedEmail, admin.Email)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
