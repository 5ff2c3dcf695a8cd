package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seprediction/backend/internal/auth/service"
	"github.com/seprediction/backend/internal/models"
	"github.com/seprediction/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testHasher = service.NewPasswordHasher(bcrypt.MinCost)

// testPrompter answers from input and never touches the terminal
func testPrompter(input string, out *bytes.Buffer) *prompter {
	p := newPrompter(strings.NewReader(input), out)
	p.fd = -1
	return p
}

// setupStore creates a users file holding the bootstrap admin and one user
func setupStore(t *testing.T) (string, adminStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	repo, err := repositories.NewUserFileRepository(path)
	require.NoError(t, err)

	hash, err := testHasher.Hash("admin")
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), &models.User{
		Name: "Admin", Email: "admin@gmail.com", PasswordHash: hash,
		Role: models.RoleAdmin, Status: models.StatusActive, CreatedAt: now,
	}))
	require.NoError(t, repo.Create(context.Background(), &models.User{
		Name: "Alice", Email: "alice@x.com", PasswordHash: hash,
		Role: models.RoleUser, Status: models.StatusPending, CreatedAt: now,
	}))

	return path, repo
}

func TestChangeAdmin_UpdatesEverything(t *testing.T) {
	path, store := setupStore(t)
	var out bytes.Buffer

	err := changeAdmin(context.Background(), store, testHasher,
		testPrompter("yes\nRoot\n  Root@Example.com \ns3cret!\n", &out), &out)
	require.NoError(t, err)

	// Read back from disk
	reloaded, err := repositories.NewUserFileRepository(path)
	require.NoError(t, err)
	admin, err := reloaded.GetAdmin(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Root", admin.Name)
	assert.Equal(t, "root@example.com", admin.Email)
	assert.True(t, testHasher.Verify("s3cret!", admin.PasswordHash))
	_, err = reloaded.GetByEmail(context.Background(), "admin@gmail.com")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	assert.Contains(t, out.String(), "Admin credentials updated successfully!")
	assert.Contains(t, out.String(), "Password: (updated - 7 characters)")
}

func TestChangeAdmin_KeepsEmptyFields(t *testing.T) {
	_, store := setupStore(t)
	var out bytes.Buffer

	err := changeAdmin(context.Background(), store, testHasher, testPrompter("y\n\n\nnewpass\n", &out), &out)
	require.NoError(t, err)

	admin, err := store.GetAdmin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Admin", admin.Name)
	assert.Equal(t, "admin@gmail.com", admin.Email)
	assert.True(t, testHasher.Verify("newpass", admin.PasswordHash))
	assert.NotContains(t, out.String(), "  Password:  ")
}

func TestChangeAdmin_NoChange(t *testing.T) {
	tests := []struct {
		name            string
		input           string
		expectedMessage string
	}{
		{name: "declined", input: "no\n", expectedMessage: "Operation cancelled."},
		{name: "anything but yes", input: "sure\n", expectedMessage: "Operation cancelled."},
		{name: "all fields empty", input: "yes\n\n\n\n", expectedMessage: "No changes were made."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store := setupStore(t)
			before, err := store.GetAdmin(context.Background())
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, changeAdmin(context.Background(), store, testHasher, testPrompter(tt.input, &out), &out))

			after, err := store.GetAdmin(context.Background())
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Contains(t, out.String(), tt.expectedMessage)
		})
	}
}

func TestChangeAdmin_Errors(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		errorContains string
	}{
		{name: "email taken by a user", input: "yes\n\nalice@x.com\n\n", errorContains: "already used by another account"},
		{name: "invalid email", input: "yes\n\nnot-an-email\n\n", errorContains: "not a valid email address"},
		{name: "password too long", input: "yes\n\n\n" + strings.Repeat("x", 73) + "\n", errorContains: "hash password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store := setupStore(t)
			var out bytes.Buffer

			err := changeAdmin(context.Background(), store, testHasher, testPrompter(tt.input, &out), &out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)

			admin, err := store.GetAdmin(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "admin@gmail.com", admin.Email)
		})
	}
}

func TestChangeAdmin_NoAdmin(t *testing.T) {
	repo, err := repositories.NewUserFileRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	var out bytes.Buffer

	err = changeAdmin(context.Background(), repo, testHasher, testPrompter("", &out), &out)
	assert.ErrorIs(t, err, errNoAdmin)
}

func TestPrompter_Password(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return nil, errors.New("boom")
	}

	// Piped input never reaches the terminal reader
	var out bytes.Buffer
	pw, err := testPrompter("piped\n", &out).Password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "piped", pw)
}

func TestPrompter_LineEOF(t *testing.T) {
	var out bytes.Buffer
	p := testPrompter("last", &out)

	got, err := p.Line("Name: ")
	require.NoError(t, err)
	assert.Equal(t, "last", got)

	_, err = p.Line("Again: ")
	assert.Error(t, err)
}
