package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrFatalConfig is the only configuration error that prevents the poll loop
// from starting.
var ErrFatalConfig = errors.New("fatal configuration error")

type ConfigStruct struct {
	Discord DiscordConfig
	Source  SourceConfig
	Options Options
	Youtube YoutubeConfig
	Spotify SpotifyConfig
	Status  StatusConfig
	Sentry  SentryConfig
}

type DiscordConfig struct {
	ClientID      string
	FallbackImage string
}

type SourceConfig struct {
	Strategy      string
	TitlePatterns []string
}

type YoutubeConfig struct {
	APIKey      string
	HeadersFile string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenFile    string
}

type StatusConfig struct {
	Port string
}

type SentryConfig struct {
	DSN     string
	Release string
}

type Options struct {
	UpdateInterval   time.Duration
	IOTimeout        time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	LogLevel         string
	ArtworkCacheSize int
}

const (
	StrategyWindow  = "window"
	StrategyYTMusic = "ytmusic"
	StrategySpotify = "spotify"
)

func (s *StatusConfig) IsEnabled() bool {
	return s.Port != ""
}

func (y *YoutubeConfig) ResolverEnabled() bool {
	return y.APIKey != ""
}

var Config *ConfigStruct

// NewConfig builds the global Config from the optional TOML file and the
// environment. Environment variables always win over the file.
func NewConfig() {
	file, path, err := LoadFile(os.Getenv("PRESENCE_CONFIG"))
	if err != nil {
		log.Warnf("Ignoring config file %s: %v", path, err)
		file = &FileConfig{}
	}
	Config = build(file)
}

func build(file *FileConfig) *ConfigStruct {
	return &ConfigStruct{
		Discord: DiscordConfig{
			ClientID:      firstNonEmpty(os.Getenv("DISCORD_CLIENT_ID"), os.Getenv("CLIENT_ID"), file.Discord.ClientID),
			FallbackImage: firstNonEmpty(os.Getenv("DISCORD_FALLBACK_IMAGE"), file.Discord.FallbackImage, "youtubemusic"),
		},
		Source: SourceConfig{
			Strategy:      getStrategy(file.Source.Strategy),
			TitlePatterns: file.Source.TitlePatterns,
		},
		Options: Options{
			UpdateInterval:   getSeconds("UPDATE_INTERVAL_SECONDS", file.Options.UpdateIntervalSeconds, 15, 5, 300),
			IOTimeout:        getSeconds("IO_TIMEOUT_SECONDS", file.Options.IOTimeoutSeconds, 10, 1, 60),
			MaxRetries:       getInt("MAX_RETRIES", file.Options.MaxRetries, 5, 1, 20),
			RetryDelay:       getSeconds("RETRY_DELAY_SECONDS", file.Options.RetryDelaySeconds, 5, 1, 60),
			LogLevel:         strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), file.Options.LogLevel, "info")),
			ArtworkCacheSize: getInt("ARTWORK_CACHE_SIZE", file.Options.ArtworkCacheSize, 128, 1, 4096),
		},
		Youtube: YoutubeConfig{
			APIKey:      firstNonEmpty(os.Getenv("YOUTUBE_API_KEY"), file.Youtube.APIKey),
			HeadersFile: firstNonEmpty(os.Getenv("YTMUSIC_HEADERS_FILE"), file.Youtube.HeadersFile, "headers_auth.json"),
		},
		Spotify: SpotifyConfig{
			ClientID:     firstNonEmpty(os.Getenv("SPOTIFY_CLIENT_ID"), file.Spotify.ClientID),
			ClientSecret: firstNonEmpty(os.Getenv("SPOTIFY_CLIENT_SECRET"), file.Spotify.ClientSecret),
			RedirectURL:  firstNonEmpty(os.Getenv("SPOTIFY_REDIRECT_URL"), file.Spotify.RedirectURL, "http://127.0.0.1:9182/callback"),
			TokenFile:    firstNonEmpty(os.Getenv("SPOTIFY_TOKEN_FILE"), file.Spotify.TokenFile, "spotify_token.json"),
		},
		Status: StatusConfig{
			Port: firstNonEmpty(os.Getenv("STATUS_PORT"), file.Status.Port),
		},
		Sentry: SentryConfig{
			DSN:     os.Getenv("SENTRY_DSN"),
			Release: os.Getenv("RELEASE"),
		},
	}
}

// Validate reports ErrFatalConfig when the Discord application id is missing.
// Everything else has a usable default.
func Validate(c *ConfigStruct) error {
	if c == nil {
		return fmt.Errorf("%w: configuration not loaded", ErrFatalConfig)
	}
	if strings.TrimSpace(c.Discord.ClientID) == "" {
		return fmt.Errorf("%w: DISCORD_CLIENT_ID must be set", ErrFatalConfig)
	}
	return nil
}

func getStrategy(fromFile string) string {
	strategy := strings.ToLower(firstNonEmpty(os.Getenv("TRACK_SOURCE"), fromFile))
	switch strategy {
	case StrategyWindow, StrategyYTMusic, StrategySpotify:
		return strategy
	case "":
		return StrategyWindow
	default:
		log.Warnf("Unknown TRACK_SOURCE %q, falling back to %s", strategy, StrategyWindow)
		return StrategyWindow
	}
}

// getInt reads key from the environment, then the file value, then def, and
// clamps the result to [min, max]. Invalid or non-positive values use def.
func getInt(key string, fromFile, def, min, max int) int {
	value := fromFile
	if raw := os.Getenv(key); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return def
		}
		value = parsed
	}
	if value <= 0 {
		return def
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func getSeconds(key string, fromFile, def, min, max int) time.Duration {
	return time.Duration(getInt(key, fromFile, def, min, max)) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
