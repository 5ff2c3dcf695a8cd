package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/seprediction/backend/internal/models"
)

// mysqlDuplicateEntry is the server error number for a unique key violation
const mysqlDuplicateEntry = 1062

const userColumns = `id, name, email, password_hash, role, status, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// userRepository implements the credential store on MySQL
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{
		db: db,
	}
}

// Create inserts a new user. The unique index on email decides concurrent registrations.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, role, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		user.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return models.ErrUserExists
		}
		return fmt.Errorf("%w: failed to create user: %w", models.ErrStore, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert id: %w", models.ErrStore, err)
	}

	user.ID = int(id)
	return nil
}

// GetByEmail retrieves a user by normalized email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, wrapLookupError(err, "failed to get user by email")
	}

	return user, nil
}

// GetByID retrieves a user by id
func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapLookupError(err, "failed to get user by id")
	}

	return user, nil
}

// UpdateStatus moves a non-admin user from one approval status to another.
// The row only changes while it still holds from, so a concurrent transition is never overwritten.
func (r *userRepository) UpdateStatus(ctx context.Context, email string, from, to models.Status) error {
	query := `
		UPDATE users
		SET status = ?
		WHERE email = ? AND status = ? AND role <> 'admin'
	`

	result, err := r.db.ExecContext(ctx, query, string(to), email, string(from))
	if err != nil {
		return fmt.Errorf("%w: failed to update user status: %w", models.ErrStore, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %w", models.ErrStore, err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// Nothing matched: find out whether the user is gone, is an admin or has moved on
	var role, status string
	err = r.db.QueryRowContext(ctx, `SELECT role, status FROM users WHERE email = ? LIMIT 1`, email).Scan(&role, &status)
	if err != nil {
		return wrapLookupError(err, "failed to get user status")
	}
	if models.Role(role) == models.RoleAdmin {
		return models.ErrForbidden
	}

	return fmt.Errorf("%w: status is %s, expected %s", models.ErrInvalidTransition, status, from)
}

// UpdatePasswordHash replaces the stored digest while it still equals oldHash
func (r *userRepository) UpdatePasswordHash(ctx context.Context, email, oldHash, newHash string) error {
	query := `UPDATE users SET password_hash = ? WHERE email = ? AND password_hash = ?`

	result, err := r.db.ExecContext(ctx, query, newHash, email, oldHash)
	if err != nil {
		return fmt.Errorf("%w: failed to update password hash: %w", models.ErrStore, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %w", models.ErrStore, err)
	}

	// The user is gone or the password was changed meanwhile
	if rowsAffected == 0 {
		return models.ErrUserNotFound
	}

	return nil
}

// Delete removes a non-admin user and returns the removed record
func (r *userRepository) Delete(ctx context.Context, email string) (*models.User, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		return nil, models.ErrForbidden
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ? AND role <> 'admin'`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to delete user: %w", models.ErrStore, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get rows affected: %w", models.ErrStore, err)
	}

	if rowsAffected == 0 {
		return nil, models.ErrUserNotFound
	}

	return user, nil
}

// ListNonAdmin returns every non-admin user ordered by registration time
func (r *userRepository) ListNonAdmin(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role <> 'admin' ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list users: %w", models.ErrStore, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan user: %w", models.ErrStore, err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating users: %w", models.ErrStore, err)
	}

	return users, nil
}

// CountAdmins returns the number of admin accounts
func (r *userRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count admins: %w", models.ErrStore, err)
	}

	return count, nil
}

// GetAdmin returns the bootstrap admin (the oldest admin record)
func (r *userRepository) GetAdmin(ctx context.Context) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = 'admin' ORDER BY id LIMIT 1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query))
	if err != nil {
		return nil, wrapLookupError(err, "failed to get admin")
	}

	return user, nil
}

// UpdateAdmin changes the bootstrap admin credentials inside a transaction
func (r *userRepository) UpdateAdmin(ctx context.Context, update models.AdminUpdate) (*models.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", models.ErrStore, err)
	}
	defer tx.Rollback()

	query := `SELECT ` + userColumns + ` FROM users WHERE role = 'admin' ORDER BY id LIMIT 1 FOR UPDATE`
	admin, err := scanUser(tx.QueryRowContext(ctx, query))
	if err != nil {
		return nil, wrapLookupError(err, "failed to lock admin")
	}

	if update.Name != "" {
		admin.Name = update.Name
	}
	if update.Email != "" {
		admin.Email = update.Email
	}
	if update.PasswordHash != "" {
		admin.PasswordHash = update.PasswordHash
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ? WHERE id = ?`,
		admin.Name, admin.Email, admin.PasswordHash, admin.ID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, models.ErrUserExists
		}
		return nil, fmt.Errorf("%w: failed to update admin: %w", models.ErrStore, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %w", models.ErrStore, err)
	}

	return admin, nil
}

// scanUser reads one users row and validates the enum columns
func scanUser(row rowScanner) (*models.User, error) {
	var (
		user   models.User
		role   string
		status sql.NullString
	)

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&status,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if user.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	if user.Status, err = models.ParseStatus(status.String); err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}

	return &user, nil
}

func wrapLookupError(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrUserNotFound
	}
	return fmt.Errorf("%w: %s: %w", models.ErrStore, msg, err)
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
