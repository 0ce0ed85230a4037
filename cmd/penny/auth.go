package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pennyhq/penny-companion/internal/common"
)

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the Penny API and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, manager, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if email == "" {
				email, err = promptLine("Email: ")
				if err != nil {
					return err
				}
			}
			if password == "" {
				password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}

			sess, err := manager.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			fmt.Printf("Logged in as %s (hourly rate $%.2f, balance $%.2f)\n",
				sess.User.FullName, sess.User.HourlyRate, sess.User.Balance)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, manager, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, manager, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sess, err := manager.Current(cmd.Context())
			if err != nil {
				if errors.Is(err, common.ErrNotLoggedIn) {
					fmt.Println("Not logged in. Run `penny login` first.")
					return nil
				}
				return err
			}

			fmt.Printf("Logged in as %s\n", sess.User.FullName)
			fmt.Printf("  Hourly rate: $%.2f\n", sess.User.HourlyRate)
			fmt.Printf("  Balance:     $%.2f\n", sess.User.Balance)
			return nil
		},
	}
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
