package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bennuttall/meme-overflow/internal/bot"
	"github.com/bennuttall/meme-overflow/internal/config"
	"github.com/bennuttall/meme-overflow/internal/imgflip"
	"github.com/bennuttall/meme-overflow/internal/ledger"
	"github.com/bennuttall/meme-overflow/internal/meme"
	"github.com/bennuttall/meme-overflow/internal/stackexchange"
	"github.com/bennuttall/meme-overflow/internal/twitter"
)

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if flagVerbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()

	db, err := ledger.Open(config.LedgerPath())
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer db.Close()

	blacklist, err := db.Blacklist()
	if err != nil {
		return fmt.Errorf("reading blacklist: %w", err)
	}

	se := stackexchange.New(cfg.StackExchange.Site, cfg.StackKey(), cfg.StackExchange.UserID)
	if !se.HasKey() {
		logger.Warn("no StackExchange API key configured, a stricter request quota applies")
	}

	tw := cfg.ResolvedTwitter()

	pageSize := cfg.GetPageSize()
	if flagPageSize > 0 {
		pageSize = flagPageSize
	}

	b, err := bot.New(bot.Options{
		Site:               cfg.StackExchange.Site,
		Source:             se,
		Captioner:          imgflip.New(cfg.ImgFlip.Username, cfg.ImgFlipPassword()),
		Publisher:          twitter.New(tw.ConsumerKey, tw.ConsumerSecret, tw.AccessToken, tw.AccessSecret),
		Store:              db,
		Chooser:            meme.NewChooser(meme.Catalog(blacklist), nil),
		Logger:             logger,
		PageSize:           pageSize,
		ItemPause:          cfg.ItemPauseDuration(),
		CyclePause:         cfg.CyclePauseDuration(),
		CaptionCooldown:    cfg.CaptionCooldownDuration(),
		CaptionMaxAttempts: cfg.CaptionMaxAttempts,
		StatusLimit:        cfg.GetStatusLimit(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "page_size", pageSize, "blacklisted", len(blacklist))

	if flagOnce {
		b.Cycle(ctx)
		return nil
	}
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
