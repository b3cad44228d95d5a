package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/letterdesk/internal/api"
	"github.com/pbaille/letterdesk/internal/client"
	"github.com/pbaille/letterdesk/internal/config"
	"github.com/pbaille/letterdesk/internal/console"
	"github.com/pbaille/letterdesk/internal/logging"
	"github.com/pbaille/letterdesk/internal/queue"
	"github.com/pbaille/letterdesk/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	dbPath   string
	apiURL   string
	logLevel string

	cfg config.Config
	log zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "desk",
		Short:        "Cover letter management console",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(envFile)
			if err != nil {
				return err
			}
			// Flags win over environment
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if apiURL != "" {
				cfg.APIURL = apiURL
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log = logging.Console(cfg.LogLevel)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (serve)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(refineCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		if client.IsSessionExpired(err) {
			fmt.Fprintln(os.Stderr, "Run 'desk login' to sign in.")
		}
		os.Exit(1)
	}
}

func tokenFile() *client.TokenFile {
	return client.NewTokenFile(cfg.TokenFile)
}

func newClient() *client.Client {
	return client.New(cfg.APIURL, tokenFile(), log)
}

// newConsole wires the console to the API; an expired session drops the
// stored token so the next command asks for a login.
func newConsole() *console.Console {
	tokens := tokenFile()
	return console.New(newClient(), console.Options{
		NotificationTTL: cfg.NotificationTTL,
		Log:             log,
		OnSessionExpired: console.ExpiryFunc(func() {
			if err := tokens.Clear(); err != nil {
				log.Warn().Err(err).Msg("clear token")
			}
			fmt.Fprintln(os.Stderr, "Session expired. Run 'desk login' to sign in again.")
		}),
	})
}

// printNotice prints the notification the last action left on display
func printNotice(c *console.Console) {
	n := c.Notifications().Current()
	if n.Message == "" {
		return
	}
	if n.IsError {
		fmt.Fprintln(os.Stderr, n.Message)
		return
	}
	fmt.Println(n.Message)
}

func loginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Print("Password: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimSpace(line)
			}

			token, err := newClient().Login(cmd.Context(), password)
			if err != nil {
				return err
			}
			if err := tokenFile().Save(token); err != nil {
				return err
			}

			fmt.Println("Logged in.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password (prompted when empty)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tokenFile().Clear(); err != nil {
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
		Short: "Check the API is reachable and the session is valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Health(cmd.Context()); err != nil {
				return fmt.Errorf("api %s: %w", cfg.APIURL, err)
			}
			fmt.Printf("API: %s up\n", cfg.APIURL)

			if _, err := tokenFile().Token(cmd.Context()); err != nil {
				fmt.Println("Session: logged out")
				return nil
			}
			fmt.Println("Session: logged in")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Addr = addr
			}
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
				return fmt.Errorf("create db dir: %w", err)
			}

			s, err := store.New(cfg.DBPath)
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			var q queue.Queue
			if cfg.RedisAddr != "" {
				rq, err := queue.NewRedis(context.Background(), cfg.RedisAddr)
				if err != nil {
					return err
				}
				q = rq
			} else {
				log.Warn().Msg("DESK_REDIS_ADDR not set, job endpoints disabled")
			}
			if cfg.AdminPassword == "" {
				log.Warn().Msg("DESK_ADMIN_PASSWORD not set, logins will fail")
			}

			server := api.New(s, q, api.Options{
				Addr:          cfg.Addr,
				JWTSecret:     []byte(cfg.JWTSecret),
				AdminPassword: cfg.AdminPassword,
				TokenTTL:      cfg.TokenTTL,
				GenerateQueue: cfg.GenerateQueue,
				EmailQueue:    cfg.EmailQueue,
			}, logging.New(os.Stderr, cfg.LogLevel))
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address")
	return cmd
}
