package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stopransomware/victimfeed/internal/config"
	"github.com/stopransomware/victimfeed/internal/database"
	"github.com/stopransomware/victimfeed/internal/feed"
	"github.com/stopransomware/victimfeed/internal/gateway"
	"github.com/stopransomware/victimfeed/internal/mailer"
	"github.com/stopransomware/victimfeed/internal/notify"
	"github.com/stopransomware/victimfeed/internal/scheduler"
	"github.com/stopransomware/victimfeed/internal/server"
	"github.com/stopransomware/victimfeed/internal/snapshot"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "victimfeed",
	Short:   "Ransomware victim feed aggregator",
	Long:    "victimfeed proxies, normalizes, and serves ransomware victim data, and notifies subscribers about new victims in their countries.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(subscriptionsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("victimfeed", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/victimfeed/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the upstream API, SMTP, and scheduling.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Subscriptions:")
		fmt.Printf("  Total: %d\n", stats.TotalSubscriptions)
		fmt.Printf("  Active: %d\n", stats.ActiveSubscriptions)
		fmt.Printf("  Signup attempts (24h): %d\n", stats.AttemptsLast24h)

		watermark, ok, err := db.GetWatermark()
		if err != nil {
			return fmt.Errorf("reading watermark: %w", err)
		}
		fmt.Println("\nNotifications:")
		if ok {
			fmt.Printf("  Watermark: %s\n", watermark.Format(time.RFC3339))
		} else {
			fmt.Println("  Watermark: not established (first cycle pending)")
		}
		return nil
	},
}

// --- fetch command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a snapshot from the upstream API once",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newFeedClient()
		store := snapshot.NewStore(client)

		fmt.Println("Fetching snapshot...")
		snap := store.Refresh(cmd.Context())

		fmt.Println("\nSnapshot complete:")
		fmt.Printf("  All victims: %d\n", len(snap.AllVictims))
		fmt.Printf("  Recent victims: %d\n", len(snap.RecentVictims))
		fmt.Printf("  Groups: %d\n", len(snap.Groups))

		if len(snap.Errors) > 0 {
			fmt.Println("\nSlot errors:")
			var slots []string
			for slot := range snap.Errors {
				slots = append(slots, slot)
			}
			sort.Strings(slots)
			for _, slot := range slots {
				e := snap.Errors[slot]
				label := ""
				if e.Restricted {
					label = " (upstream restriction)"
				}
				fmt.Printf("  %s: %s%s\n", slot, e.Message, label)
			}
		}
		return nil
	},
}

// --- notify command ---

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run one notification cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		engine := notify.New(db, newFeedClient(), newMailer(), cfg.Notifications.SiteBaseURL)
		result, err := engine.RunCycle(cmd.Context())
		if err != nil {
			return fmt.Errorf("notification cycle: %w", err)
		}

		fmt.Println("Notification cycle complete:")
		fmt.Printf("  Subscribers: %d\n", result.Subscribers)
		fmt.Printf("  New victims: %d\n", result.NewVictims)
		fmt.Printf("  Dispatched: %d\n", result.Dispatched)
		fmt.Printf("  Failed: %d\n", result.Failed)
		fmt.Printf("  Watermark advanced: %v\n", result.Advanced)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server with background refresh and notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		client := newFeedClient()
		store := snapshot.NewStore(client)
		mail := newMailer()

		tasks := []scheduler.Task{
			{Name: "snapshot", Run: func(ctx context.Context) error {
				snap := store.Refresh(ctx)
				if len(snap.Errors) > 0 {
					return fmt.Errorf("%d slot(s) failed", len(snap.Errors))
				}
				return nil
			}},
		}
		if cfg.Notifications.Enabled {
			engine := notify.New(db, client, mail, cfg.Notifications.SiteBaseURL)
			tasks = append(tasks, scheduler.Task{Name: "notify", Run: func(ctx context.Context) error {
				_, err := engine.RunCycle(ctx)
				return err
			}})
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sched := scheduler.New(cfg.SchedulerInterval(), tasks...)
		go sched.Run(ctx)

		gw := gateway.New(cfg.Upstream.BaseURL, cfg.Upstream.UserAgent, cfg.UpstreamTimeout())
		srv := server.New(db, store, mail, server.Options{
			Gateway:     gw.Handler(),
			SiteBaseURL: cfg.Notifications.SiteBaseURL,
			WindowHours: cfg.Notifications.WindowHours,
			MaxAttempts: cfg.Notifications.MaxAttemptsPerDay,
			AdminToken:  cfg.AdminToken(),
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

// --- subscriptions command ---

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Manage notification subscriptions",
}

var subscriptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		subs, err := db.GetAllSubscriptions()
		if err != nil {
			return err
		}

		if len(subs) == 0 {
			fmt.Println("No subscriptions.")
			return nil
		}

		fmt.Println("Subscriptions:")
		fmt.Println()
		for _, sub := range subs {
			icon := " "
			if sub.IsActive {
				icon = "*"
			}
			countries := "all countries"
			if sub.Countries != nil {
				countries = strings.Join(sub.Countries, ", ")
			}
			fmt.Printf("  %s %s (%s)\n", icon, sub.Email, countries)
		}
		return nil
	},
}

var subscriptionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all subscriptions and notification state",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return err
		}

		fmt.Printf("This deletes %d subscription(s) and the notification watermark. Continue? [y/N]: ", stats.TotalSubscriptions)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			return fmt.Errorf("aborted")
		}

		if err := db.ResetAll(); err != nil {
			return err
		}
		fmt.Println("Reset complete.")
		return nil
	},
}

func init() {
	subscriptionsCmd.AddCommand(subscriptionsListCmd)
	subscriptionsCmd.AddCommand(subscriptionsResetCmd)
}

func newFeedClient() *feed.Client {
	return feed.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.UserAgent, cfg.UpstreamTimeout())
}

func newMailer() mailer.Mailer {
	if cfg.SMTP.Host == "" || cfg.Notifications.FromAddress == "" {
		return mailer.LogMailer{}
	}
	return mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTPPassword(), cfg.Notifications.FromAddress)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "victimfeed.db")
	return database.Open(dbPath)
}
