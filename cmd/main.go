package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"fairytales/internal/cli/scheme/colours"
	"fairytales/internal/config"
	"fairytales/internal/story/nest"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	config.SetDefaults()

	// set in PersistentPreRunE, read by the signal goroutine
	var current atomic.Pointer[nest.StoryNest]

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go shutdownOnSignal(sigChan, &current, os.Exit)

	rootCmd := &cobra.Command{
		Use:   "fairytales",
		Short: "🏰 Narrated fairy tales made up just for you",
		Long: `
┌─────────────────────────────────────┐
│  📚 Welcome to Fairytales! 🏰       │
│  Stories made up for your child     │
│  and read aloud 👶✨                │
└─────────────────────────────────────┘

Pick a hero, a companion and a place, and Fairytales writes and narrates
a story. Interactive stories let you choose what happens next! 🌙
		`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogging(cfg.Log.Level)
			serveMetrics(cfg.Metrics.Addr)

			app, err := nest.NewStoryNest(cfg)
			if err != nil {
				return err
			}
			current.Store(app)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app := current.Load(); app != nil {
				app.Close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			current.Load().ShowWelcome()
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "🪄 Make up a new story",
		Long:  "Write and narrate a new story. Missing details are asked for.",
		Run:   func(cmd *cobra.Command, args []string) { current.Load().Create(cmd, args) },
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "📋 List saved stories",
		Run:   func(cmd *cobra.Command, args []string) { current.Load().ListStories(cmd, args) },
	}

	readCmd := &cobra.Command{
		Use:   "read [story-id | share-link]",
		Short: "📖 Listen to a saved story",
		Long:  "Replay a saved story by its ID or share link, or select from a list",
		Args:  cobra.MaximumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { current.Load().ReadStory(cmd, args) },
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <story-id>",
		Short: "🗑️ Remove a saved story",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { current.Load().DeleteStory(cmd, args) },
	}

	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "📊 Show remaining stories",
		Run:   func(cmd *cobra.Command, args []string) { current.Load().ShowUsage(cmd, args) },
	}

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Voices, themes and narration",
		Run:   func(cmd *cobra.Command, args []string) { current.Load().ConfigureSettings(cmd, args) },
	}

	// Add flags
	createCmd.Flags().StringP("name", "n", "", "Name of the hero")
	createCmd.Flags().StringP("companion", "c", "", "The hero's companion")
	createCmd.Flags().StringP("setting", "l", "", "Where the story happens")
	createCmd.Flags().StringP("voice", "v", "", "Narrator voice (subscribers only). See settings for options")
	createCmd.Flags().StringP("template", "t", "", "Story theme. See settings for options")
	createCmd.Flags().BoolP("interactive", "i", false, "Choose what happens next (subscribers only)")
	settingsCmd.Flags().Bool("clear-cache", false, "Remove cached narrations")

	rootCmd.PersistentFlags().String("account-status", "", "Account status: guest, registered, subscribed or owner")
	rootCmd.PersistentFlags().String("tier", "", "Subscription tier: tier1 or tier2")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().String("log-level", "", "Log level")
	viper.BindPFlag("account.status", rootCmd.PersistentFlags().Lookup("account-status"))
	viper.BindPFlag("account.tier", rootCmd.PersistentFlags().Lookup("tier"))
	viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(createCmd, listCmd, readCmd, deleteCmd, usageCmd, settingsCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

// shutdownOnSignal waits for a signal, then cancels and closes whatever app
// is running before exiting.
func shutdownOnSignal(sig <-chan os.Signal, current *atomic.Pointer[nest.StoryNest], exit func(int)) {
	<-sig
	if app := current.Load(); app != nil {
		app.Cancel()
		app.Close()
	}
	fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! Sweet dreams! 🌙"))
	exit(0)
}

func setupLogging(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logrus.WithField("addr", addr).Info("Serving metrics")
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Metrics server stopped")
		}
	}()
}
