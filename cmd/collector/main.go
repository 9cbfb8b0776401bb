package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jvheeswijck/sim-subs/internal/config"
	"github.com/jvheeswijck/sim-subs/internal/ingest"
	"github.com/jvheeswijck/sim-subs/internal/reddit"
	"github.com/jvheeswijck/sim-subs/internal/server"
	"github.com/jvheeswijck/sim-subs/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var configPath string

	rc := &cobra.Command{
		Use:   "collector",
		Short: "Collect subreddit posts and comments into a relational database.",
		Long: `Collect subreddit posts and comments into a relational database.

Communities are read from the subs file, one name per line. Posts,
comments, authors and subreddits already stored are never inserted again,
so the collector can be rerun at any time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file to read from.")
	rc.PersistentFlags().Bool("verbose", false, "Log progress for every post.")
	rc.PersistentFlags().String("subs-file", "subs.txt", "File listing one subreddit name per line.")
	bindFlags(v, rc.PersistentFlags(), map[string]string{
		"verbose":   "ingest.verbose",
		"subs-file": "ingest.subs_file",
	})

	rc.AddCommand(newRunCommand(v, &configPath))
	rc.AddCommand(newServeCommand(v, &configPath))
	return rc
}

func newRunCommand(v *viper.Viper, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest the hot posts of every configured subreddit once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(v, cmd.Flags(), ingestFlagKeys)
			a, err := setup(cmd.Context(), v, *configPath)
			if err != nil {
				return err
			}
			defer a.store.Close()

			names, err := config.ReadCommunities(a.cfg.Ingest.SubsFile)
			if err != nil {
				return err
			}
			_, err = a.writer.Run(cmd.Context(), names)
			return err
		},
	}
	addIngestFlags(cmd.Flags())
	return cmd
}

func newServeCommand(v *viper.Viper, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, row counts, metrics and a manual ingest trigger over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(v, cmd.Flags(), ingestFlagKeys)
			bindFlags(v, cmd.Flags(), map[string]string{"port": "server.port"})
			a, err := setup(cmd.Context(), v, *configPath)
			if err != nil {
				return err
			}
			defer a.store.Close()

			subsFile := a.cfg.Ingest.SubsFile
			if _, err := config.ReadCommunities(subsFile); err != nil {
				return err
			}
			srv := server.New(a.store, a.writer, func() ([]string, error) {
				return config.ReadCommunities(subsFile)
			}, a.log.WithField("component", "server"))
			return srv.Run(net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.Port))
		},
	}
	cmd.Flags().String("port", "8080", "HTTP listen port.")
	addIngestFlags(cmd.Flags())
	return cmd
}

// ingestFlagKeys maps the ingest flags onto config keys. Bound when a
// command runs, since run and serve share the same viper instance.
var ingestFlagKeys = map[string]string{
	"comment-limit":           "ingest.comment_limit",
	"post-limit":              "ingest.post_limit",
	"more-comments-limit":     "ingest.more_comments_limit",
	"more-comments-threshold": "ingest.more_comments_threshold",
	"capture-karma":           "ingest.capture_karma",
}

func addIngestFlags(fs *pflag.FlagSet) {
	fs.Int("comment-limit", 40, "Maximum comments stored per post.")
	fs.Int("post-limit", 15, "Hot posts fetched per subreddit.")
	fs.Int("more-comments-limit", 0, "Maximum 'load more comments' placeholders expanded per post (negative: all).")
	fs.Int("more-comments-threshold", 0, "Minimum hidden replies for a placeholder to be expanded.")
	fs.Bool("capture-karma", false, "Store author karma (one extra request per new author).")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
}

type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	store  storage.Storage
	writer *ingest.Writer
}

// setup loads configuration and wires the store, the Reddit client and
// the writer together.
func setup(ctx context.Context, v *viper.Viper, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(v, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	if cfg.Ingest.Verbose && !log.IsLevelEnabled(logrus.InfoLevel) {
		log.SetLevel(logrus.InfoLevel)
	}

	store, err := storage.New(cfg.Storage, log.WithField("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client, err := reddit.NewClient(ctx, reddit.Options{
		BaseURL:      cfg.Reddit.BaseURL,
		TokenURL:     cfg.Reddit.TokenURL,
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		Timeout:      cfg.Reddit.Timeout,
	}, log.WithField("component", "reddit"))
	if err != nil {
		store.Close()
		return nil, err
	}

	writer := ingest.NewWriter(store, client, ingest.OptionsFromConfig(cfg.Ingest), log.WithField("component", "ingest"))
	log.WithFields(logrus.Fields{
		"storage":       cfg.Storage.Type,
		"post_limit":    cfg.Ingest.PostLimit,
		"comment_limit": cfg.Ingest.CommentLimit,
	}).Info("Collector configured")

	return &app{cfg: cfg, log: log, store: store, writer: writer}, nil
}
