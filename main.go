package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"musicpresence/artwork"
	"musicpresence/config"
	"musicpresence/controller"
	"musicpresence/logging"
	"musicpresence/presence"
	"musicpresence/sentry"
	"musicpresence/source"
	"musicpresence/spotify"
	"musicpresence/status"
	"musicpresence/window"
	"musicpresence/youtube"
	"musicpresence/ytmusic"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warnf("Error loading .env file: %v", err)
	}
	config.NewConfig()
	logging.Setup(config.Config.Options.LogLevel)
	sentry.Init(config.Config.Sentry.DSN, config.Config.Sentry.Release)

	if err := run(context.Background(), config.Config); err != nil {
		log.WithError(err).Error("Exiting")
		sentry.ReportError(err)
		sentry.Flush()
		os.Exit(1)
	}
	sentry.Flush()
}

func run(ctx context.Context, cfg *config.ConfigStruct) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"source":   cfg.Source.Strategy,
		"interval": cfg.Options.UpdateInterval,
	}).Info("🎵 Starting music presence")

	src, err := newSource(ctx, cfg)
	if err != nil {
		return err
	}
	src, err = source.WithArtwork(src, cfg.Options.ArtworkCacheSize, newResolvers(ctx, cfg)...)
	if err != nil {
		return err
	}

	client := presence.NewClient(presence.Options{
		ClientID:      cfg.Discord.ClientID,
		FallbackImage: cfg.Discord.FallbackImage,
		Timeout:       cfg.Options.IOTimeout,
	})

	opts := controller.Options{
		Interval:   cfg.Options.UpdateInterval,
		IOTimeout:  cfg.Options.IOTimeout,
		MaxRetries: cfg.Options.MaxRetries,
		RetryDelay: cfg.Options.RetryDelay,
	}
	if cfg.Status.IsEnabled() {
		hub := status.NewHub()
		opts.Observer = hub
		server := status.NewServer(hub)
		go func() {
			if err := server.Run(ctx, cfg.Status.Port); err != nil {
				log.WithError(err).Error("Status server stopped")
				sentry.ReportError(err)
			}
		}()
	}

	ctrl := controller.New(src, client, opts)
	defer ctrl.Shutdown()

	if !ctrl.Reconnect(ctx) {
		log.Warn("Discord is not reachable yet, will keep retrying")
	}
	return ctrl.Run(ctx)
}

// newSource builds the configured track source. Any failure here is a
// configuration problem of the chosen strategy and is reported as fatal.
func newSource(ctx context.Context, cfg *config.ConfigStruct) (source.Source, error) {
	var (
		src source.Source
		err error
	)
	switch cfg.Source.Strategy {
	case config.StrategyYTMusic:
		src, err = ytmusic.New(cfg.Youtube.HeadersFile)
	case config.StrategySpotify:
		src, err = spotify.New(ctx, cfg.Spotify)
	case config.StrategyWindow:
		src, err = window.New(cfg.Source.TitlePatterns)
	default:
		err = errors.New("unknown strategy")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: track source %q: %w", config.ErrFatalConfig, cfg.Source.Strategy, err)
	}
	return src, nil
}

// newResolvers orders artwork lookups from most to least precise.
func newResolvers(ctx context.Context, cfg *config.ConfigStruct) []source.Resolver {
	var resolvers []source.Resolver

	if cfg.Source.Strategy != config.StrategySpotify && cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "" {
		resolvers = append(resolvers, spotify.NewResolver(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret))
	}

	if !cfg.Youtube.ResolverEnabled() {
		log.Debug("YOUTUBE_API_KEY not set, YouTube artwork limited to linked videos")
	}
	yt, err := youtube.NewResolver(ctx, cfg.Youtube.APIKey)
	if err != nil {
		log.WithError(err).Warn("YouTube artwork lookup disabled")
	} else {
		resolvers = append(resolvers, yt)
	}

	return append(resolvers, artwork.NewPageResolver(nil))
}
