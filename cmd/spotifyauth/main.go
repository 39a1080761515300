// Command spotifyauth runs the Spotify authorization-code flow once and
// writes the resulting token to SPOTIFY_TOKEN_FILE for the spotify source.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"musicpresence/config"
	"musicpresence/logging"
	"musicpresence/spotify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}
	config.NewConfig()
	logging.Setup(config.Config.Options.LogLevel)

	if err := run(context.Background(), config.Config.Spotify); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.SpotifyConfig) error {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")
	}

	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil || redirect.Port() == "" {
		return fmt.Errorf("invalid redirect URL %q, expected http://host:port/path", cfg.RedirectURL)
	}

	oauthConfig := spotify.OAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL)
	state := uuid.NewString()
	fmt.Printf("Visit the URL for the auth dialog: %v\n", oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline))

	tokenChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)

	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}
	router := newCallbackRouter(callbackPath, state, oauthConfig.Exchange, tokenChan)

	server := &http.Server{
		Addr:              net.JoinHostPort(redirect.Hostname(), redirect.Port()),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var token *oauth2.Token
	select {
	case token = <-tokenChan:
	case err := <-errChan:
		return fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if err := spotify.SaveToken(cfg.TokenFile, token); err != nil {
		return err
	}
	fmt.Printf("\nToken received and written to %s\n", cfg.TokenFile)
	fmt.Println("Set TRACK_SOURCE=spotify to use it.")
	return nil
}

type exchangeFunc func(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)

// newCallbackRouter serves the OAuth redirect. A request with the expected
// state and a code that exchanges cleanly delivers its token on tokens.
func newCallbackRouter(path, state string, exchange exchangeFunc, tokens chan<- *oauth2.Token) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(path, func(c *gin.Context) {
		if c.Query("state") != state {
			c.String(http.StatusBadRequest, "State mismatch")
			return
		}
		code := c.Query("code")
		if code == "" {
			c.String(http.StatusBadRequest, "Code not found")
			return
		}

		token, err := exchange(c.Request.Context(), code)
		if err != nil {
			c.String(http.StatusInternalServerError, "Token exchange error: %v", err)
			return
		}

		select {
		case tokens <- token:
		default:
			c.String(http.StatusConflict, "Token already received")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8",
			[]byte("<h1>Authentication Successful!</h1><p>You can close this window now.</p>"))
	})
	return router
}
