// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/authcore/authcore/internal/auth"
)

// UserBackend wraps the account operations the user commands drive.
type UserBackend interface {
	Register(ctx context.Context, email, password string) (*auth.Identity, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Verify(ctx context.Context, bearer string) (*auth.Identity, error)
	SetActive(ctx context.Context, email string, active bool) (*auth.Identity, error)
	RequestReset(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, token, newPassword string) error
	Close()
}

// UserDeps contains injectable dependencies for the user commands.
// All fields with nil values will use their default implementations.
type UserDeps struct {
	// BackendFactory opens the services for the resolved configuration.
	// Default: openStack
	BackendFactory func(cmd *cobra.Command) (UserBackend, error)

	// SecretReader reads a password or token. Default: readSecret
	SecretReader func(cmd *cobra.Command, prompt string) (string, error)
}

func (d *UserDeps) withDefaults() *UserDeps {
	if d == nil {
		d = &UserDeps{}
	}
	if d.BackendFactory == nil {
		d.BackendFactory = openUserBackend
	}
	if d.SecretReader == nil {
		d.SecretReader = readSecret
	}
	return d
}

// NewUserCmd creates the user command tree.
func NewUserCmd() *cobra.Command {
	return newUserCmd(nil)
}

func newUserCmd(deps *UserDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage identities and credentials",
		Long: `Create identities, toggle their active flag, issue tokens and run the
password reset flow. Passwords and reset tokens are read from the terminal
without echo, or from standard input when it is not a terminal.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create EMAIL",
		Short: "Register a new identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserBackend(cmd, deps, func(d *UserDeps, b UserBackend) error {
				password, err := d.SecretReader(cmd, "Password: ")
				if err != nil {
					return err
				}
				identity, err := b.Register(cmd.Context(), args[0], password)
				if err != nil {
					return err //nolint:wrapcheck // already coded
				}
				cmd.Printf("Created identity %s (%s)\n", identity.ID, identity.Email)
				return nil
			})
		},
	})

	cmd.AddCommand(newSetActiveCmd(deps, "activate", true))
	cmd.AddCommand(newSetActiveCmd(deps, "deactivate", false))

	cmd.AddCommand(&cobra.Command{
		Use:   "login EMAIL",
		Short: "Authenticate and print a token pair as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserBackend(cmd, deps, func(d *UserDeps, b UserBackend) error {
				password, err := d.SecretReader(cmd, "Password: ")
				if err != nil {
					return err
				}
				pair, err := b.Login(cmd.Context(), args[0], password)
				if err != nil {
					return err //nolint:wrapcheck // already coded
				}
				return writeTokenPair(cmd.OutOrStdout(), pair)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check an access token and print its identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withUserBackend(cmd, deps, func(d *UserDeps, b UserBackend) error {
				bearer, err := d.SecretReader(cmd, "Access token: ")
				if err != nil {
					return err
				}
				identity, err := b.Verify(cmd.Context(), bearer)
				if err != nil {
					return err //nolint:wrapcheck // already coded
				}
				cmd.Printf("Valid access token for %s (%s)\n", identity.ID, identity.Email)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "request-reset EMAIL",
		Short: "Start a password reset",
		Long: `Start a password reset for EMAIL. The reset token is delivered through
the configured notification backend. The command reports success whether
or not the address is registered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserBackend(cmd, deps, func(_ *UserDeps, b UserBackend) error {
				if err := b.RequestReset(cmd.Context(), args[0]); err != nil {
					return err //nolint:wrapcheck // already coded
				}
				cmd.Println("If the address is registered, a reset token has been sent")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "confirm-reset",
		Short: "Complete a password reset with a delivered token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withUserBackend(cmd, deps, func(d *UserDeps, b UserBackend) error {
				token, err := d.SecretReader(cmd, "Reset token: ")
				if err != nil {
					return err
				}
				password, err := d.SecretReader(cmd, "New password: ")
				if err != nil {
					return err
				}
				if err := b.ConfirmReset(cmd.Context(), token, password); err != nil {
					return err //nolint:wrapcheck // already coded
				}
				cmd.Println("Password updated")
				return nil
			})
		},
	})

	return cmd
}

func newSetActiveCmd(deps *UserDeps, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserBackend(cmd, deps, func(_ *UserDeps, b UserBackend) error {
				identity, err := b.SetActive(cmd.Context(), args[0], active)
				if err != nil {
					return err //nolint:wrapcheck // already coded
				}
				cmd.Printf("Identity %s (%s) active=%t\n", identity.ID, identity.Email, identity.Active)
				return nil
			})
		},
	}
}

func withUserBackend(cmd *cobra.Command, deps *UserDeps, fn func(*UserDeps, UserBackend) error) error {
	d := deps.withDefaults()
	b, err := d.BackendFactory(cmd)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(d, b)
}

type tokenPairJSON struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	AccessExpiresAt  string `json:"access_expires_at"`
	RefreshExpiresAt string `json:"refresh_expires_at"`
}

func writeTokenPair(w io.Writer, pair *auth.TokenPair) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	//nolint:wrapcheck // output write
	return enc.Encode(tokenPairJSON{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        pair.TokenType,
		AccessExpiresAt:  pair.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC().Format(time.RFC3339),
	})
}

// readSecret prompts without echo on a terminal, otherwise reads one line
// from the command's input.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.PrintErr(prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		cmd.PrintErrln()
		if err != nil {
			return "", oops.Code("INPUT_READ_FAILED").Wrap(err)
		}
		return string(b), nil
	}
	return readLine(in)
}

// readLine returns the next line of r without its line ending. It reads a
// byte at a time so consecutive calls on one reader see consecutive lines.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			if sb.Len() == 0 {
				return "", oops.Code("INPUT_READ_FAILED").Wrapf(err, "no input")
			}
			break
		}
		if err != nil {
			return "", oops.Code("INPUT_READ_FAILED").Wrap(err)
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}

// userBackend adapts the wired stack to UserBackend.
type userBackend struct {
	*stack
}

func openUserBackend(cmd *cobra.Command) (UserBackend, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	s, err := openStack(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	return userBackend{s}, nil
}

func (b userBackend) Register(ctx context.Context, email, password string) (*auth.Identity, error) {
	return b.auth.Register(ctx, email, password) //nolint:wrapcheck // already coded
}

func (b userBackend) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	return b.auth.Login(ctx, email, password) //nolint:wrapcheck // already coded
}

func (b userBackend) Verify(ctx context.Context, bearer string) (*auth.Identity, error) {
	return b.auth.RequireActiveBearer(ctx, bearer, auth.TokenTypeAccess) //nolint:wrapcheck // already coded
}

func (b userBackend) SetActive(ctx context.Context, email string, active bool) (*auth.Identity, error) {
	return b.setActive(ctx, email, active)
}

func (b userBackend) RequestReset(ctx context.Context, email string) error {
	return b.resets.RequestReset(ctx, email) //nolint:wrapcheck // already coded
}

func (b userBackend) ConfirmReset(ctx context.Context, token, newPassword string) error {
	return b.resets.ConfirmReset(ctx, token, newPassword) //nolint:wrapcheck // already coded
}
