package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/auth"
	"github.com/spigell/hireloop/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account, prompting for anything not given by flags",
	Run: withStore(func(ctx context.Context, st *store.Store, logger *zap.Logger) error {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		return createUser(ctx, st, logger)
	}),
}

var newUser struct {
	email string
	name  string
	role  string
}

func init() {
	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)

	userCreateCmd.Flags().StringVar(&newUser.email, "email", "", "account email")
	userCreateCmd.Flags().StringVar(&newUser.name, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&newUser.role, "role", "", "admin or candidate")
}

func createUser(ctx context.Context, st *store.Store, logger *zap.Logger) error {
	email, err := promptIfEmpty(newUser.email, promptui.Prompt{
		Label:    "Email",
		Validate: validateEmail,
	})
	if err != nil {
		return err
	}

	name, err := promptIfEmpty(newUser.name, promptui.Prompt{Label: "Name"})
	if err != nil {
		return err
	}

	role := newUser.role
	if role == "" {
		sel := promptui.Select{
			Label: "Role",
			Items: []string{store.RoleAdmin, store.RoleCandidate},
		}
		if _, role, err = sel.Run(); err != nil {
			return err
		}
	}
	if !store.ValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	password, err := (&promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: auth.ValidatePassword,
	}).Run()
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	u, err := st.CreateUser(ctx, &store.User{
		Email:        email,
		Name:         name,
		Role:         role,
		Onboarded:    role == store.RoleAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	logger.Info("account created",
		zap.String("user_id", u.ID),
		zap.String("email", u.Email),
		zap.String("role", u.Role),
	)
	return nil
}

func promptIfEmpty(value string, p promptui.Prompt) (string, error) {
	if value = strings.TrimSpace(value); value != "" {
		if p.Validate != nil {
			if err := p.Validate(value); err != nil {
				return "", err
			}
		}
		return value, nil
	}
	return p.Run()
}

func validateEmail(s string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return errors.New("not a valid email address")
	}
	return nil
}
