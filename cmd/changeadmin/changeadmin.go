package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/seprediction/backend/internal/auth/service"
	"github.com/seprediction/backend/internal/models"
)

// adminStore is what the tool needs from the credential store
type adminStore interface {
	GetAdmin(ctx context.Context) (*models.User, error)
	UpdateAdmin(ctx context.Context, update models.AdminUpdate) (*models.User, error)
}

var errNoAdmin = errors.New("no admin user found")

var rule = strings.Repeat("=", 60)

// changeAdmin walks the operator through replacing the admin name, email and password.
// Empty answers keep the current value.
func changeAdmin(ctx context.Context, store adminStore, hasher *service.PasswordHasher, p *prompter, out io.Writer) error {
	admin, err := store.GetAdmin(ctx)
	if errors.Is(err, models.ErrUserNotFound) {
		fmt.Fprintln(out, "No admin user found in the store!")
		return errNoAdmin
	}
	if err != nil {
		return fmt.Errorf("failed to read admin: %w", err)
	}

	fmt.Fprintln(out, "Current admin information:")
	fmt.Fprintf(out, "  Name:  %s\n", admin.Name)
	fmt.Fprintf(out, "  Email: %s\n\n", admin.Email)

	proceed, err := p.Confirm("Do you want to change admin credentials? (yes/no): ")
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Fprintln(out, "Operation cancelled.")
		return nil
	}

	fmt.Fprintf(out, "\n%s\nEnter new admin credentials:\n%s\n", rule, rule)

	name, err := p.Line("Enter new admin name (press Enter to keep current): ")
	if err != nil {
		return err
	}
	email, err := p.Line("Enter new admin email (press Enter to keep current): ")
	if err != nil {
		return err
	}
	password, err := p.Password("Enter new admin password (press Enter to skip): ")
	if err != nil {
		return err
	}

	update := models.AdminUpdate{Name: name}
	if email != "" {
		update.Email = models.NormalizeEmail(email)
		if !models.IsValidEmail(update.Email) {
			return fmt.Errorf("%q is not a valid email address", email)
		}
	}
	if password != "" {
		update.PasswordHash, err = hasher.Hash(password)
		if err != nil {
			return err
		}
	}

	if update.IsEmpty() {
		fmt.Fprintln(out, "No changes were made.")
		return nil
	}

	updated, err := store.UpdateAdmin(ctx, update)
	if errors.Is(err, models.ErrUserExists) {
		return fmt.Errorf("email %s is already used by another account", update.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", err)
	}

	fmt.Fprintf(out, "\n%s\nAdmin credentials updated successfully!\n%s\n\n", rule, rule)
	fmt.Fprintln(out, "New admin information:")
	fmt.Fprintf(out, "  Name:  %s\n", updated.Name)
	fmt.Fprintf(out, "  Email: %s\n", updated.Email)
	if password != "" {
		fmt.Fprintf(out, "  Password: (updated - %d characters)\n", len([]rune(password)))
	}
	fmt.Fprintln(out, "\nYou can now login with these new credentials!")

	return nil
}
