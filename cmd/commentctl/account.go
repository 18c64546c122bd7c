package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/UkralStul/commentsync/internal/auth"
)

// accountCommand - группа команд управления сессией.
func accountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "Auth session and account management",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Get a token from the comment server and remember it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User id",
						Required: true,
						Sources:  cli.EnvVars("COMMENTS_USER"),
					},
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Display name shown next to comments",
					},
				},
				Action: runAccountLogin,
			},
			{
				Name:   "logout",
				Usage:  "Delete current session",
				Action: runAccountLogout,
			},
			{
				Name:   "status",
				Usage:  "Show who is logged in",
				Action: runAccountStatus,
			},
		},
	}
}

func runAccountLogin(ctx context.Context, cmd *cli.Command) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	sess, err := auth.Login(ctx, e.client, e.cfg.ServerURL, cmd.String("user"), cmd.String("name"))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "Logged in as %s (%s) on %s\n", sess.DisplayName, sess.UserID, sess.ServerURL)
	return nil
}

func runAccountLogout(ctx context.Context, cmd *cli.Command) error {
	if err := auth.WipeSession(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, "Logged out")
	return nil
}

func runAccountStatus(ctx context.Context, cmd *cli.Command) error {
	sess, err := auth.LoadSessionFile()
	if errors.Is(err, auth.ErrNoAuthSession) {
		return fmt.Errorf("not logged in (run: commentctl account login --user <id>)")
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "User:   %s\n", sess.UserID)
	fmt.Fprintf(w, "Name:   %s\n", sess.DisplayName)
	fmt.Fprintf(w, "Server: %s\n", sess.ServerURL)
	fmt.Fprintf(w, "Since:  %s\n", sess.LoggedInAt.Format(time.RFC3339))
	return nil
}
