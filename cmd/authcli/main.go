package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jrsteele09/go-auth-sdk/auth"
	"github.com/jrsteele09/go-auth-sdk/browser"
	"github.com/jrsteele09/go-auth-sdk/config"
	"github.com/jrsteele09/go-auth-sdk/hub"
	"github.com/jrsteele09/go-auth-sdk/kvstore"
	"github.com/jrsteele09/go-auth-sdk/kvstore/redisstore"
	"github.com/jrsteele09/go-auth-sdk/kvstore/sqlitestore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const appName = "authcli"

func main() {
	app := cli.App{
		Name:  appName,
		Usage: "sign in through the hosted UI from a terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Usage:   "where tokens are kept: sqlite, redis or memory",
				Value:   "sqlite",
				EnvVars: []string{"AUTHCLI_STORE"},
			},
			&cli.StringFlag{
				Name:    "sqlite-path",
				Usage:   "sqlite database file (default: user config dir)",
				EnvVars: []string{"AUTHCLI_SQLITE_PATH"},
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "redis host:port",
				Value:   "localhost:6379",
				EnvVars: []string{"AUTHCLI_REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"AUTHCLI_LOG_LEVEL"},
			},
			&cli.DurationFlag{
				Name:  "browser-timeout",
				Usage: "how long to wait for the browser to come back",
				Value: 5 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "do not print the banner",
			},
		},
		Before: func(cctx *cli.Context) error {
			if !cctx.Bool("quiet") {
				displayAppname(appName)
			}
			return setupLogging(cctx.String("log-level"))
		},
		Commands: []*cli.Command{
			{
				Name:  "signin",
				Usage: "open the hosted UI and cache the resulting tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "google, facebook, amazon, apple or the name of a custom provider",
					},
					&cli.StringFlag{
						Name:  "custom-state",
						Usage: "opaque value echoed back after sign in",
					},
				},
				Action: runSignIn,
			},
			{
				Name:  "signout",
				Usage: "revoke and clear the cached tokens",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "global",
						Usage: "sign out of every device",
					},
				},
				Action: runSignOut,
			},
			{
				Name:  "tokens",
				Usage: "print the cached tokens, refreshing them when expired",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force-refresh",
						Usage: "refresh even when the access token is still valid",
					},
				},
				Action: runTokens,
			},
		},
	}
	app.RunAndExitOnError()
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "[setupLogging] invalid log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return nil
}

// withClient builds a client over the selected store and runs fn with a
// context cancelled on interrupt.
func withClient(cctx *cli.Context, fn func(ctx context.Context, client *auth.Client) error) error {
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cctx)
	if err != nil {
		return err
	}
	defer closeStore()

	opener := browser.NewLoopback(
		browser.WithTimeout(cctx.Duration("browser-timeout")),
		browser.WithLogger(log.Logger),
	)
	client, err := auth.NewClient(*cfg, store, opener,
		auth.WithLogger(log.With().Str("component", "auth").Logger()),
		auth.WithUserAgent(appName+"/1.0"),
	)
	if err != nil {
		return err
	}
	client.Hub().Listen(func(e hub.Event) {
		log.Debug().Str("event", e.Name).Interface("data", e.Data).Msg("hub event")
	})
	return fn(ctx, client)
}

func openStore(ctx context.Context, cctx *cli.Context) (kvstore.Store, func() error, error) {
	switch kind := cctx.String("store"); kind {
	case "memory":
		return kvstore.NewMemStore(), func() error { return nil }, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cctx.String("redis-addr")})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, errors.Wrap(err, "[openStore] redis ping")
		}
		return redisstore.New(rdb, redisstore.WithPrefix(appName+":")), rdb.Close, nil
	case "sqlite":
		path := cctx.String("sqlite-path")
		if path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return nil, nil, errors.Wrap(err, "[openStore] locate config dir")
			}
			dir = filepath.Join(dir, appName)
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, nil, errors.Wrap(err, "[openStore] create config dir")
			}
			path = filepath.Join(dir, "tokens.db")
		}
		store, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, errors.Errorf("[openStore] unknown store %q", kind)
	}
}

func runSignIn(cctx *cli.Context) error {
	return withClient(cctx, func(ctx context.Context, client *auth.Client) error {
		req := auth.SignInWithRedirectRequest{
			Provider:    parseProvider(cctx.String("provider")),
			CustomState: cctx.String("custom-state"),
		}
		if err := client.SignInWithRedirect(ctx, req); err != nil {
			return err
		}
		tokens, err := client.GetTokens(ctx, auth.GetTokensOptions{})
		if errors.Is(err, auth.ErrNoTokens) {
			fmt.Println("sign in was not completed")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s\n", tokens.AccessToken.Subject())
		return nil
	})
}

func parseProvider(name string) auth.Provider {
	switch strings.ToLower(name) {
	case "":
		return nil
	case "google":
		return auth.ProviderGoogle
	case "facebook":
		return auth.ProviderFacebook
	case "amazon":
		return auth.ProviderAmazon
	case "apple":
		return auth.ProviderApple
	}
	return auth.CustomProvider(name)
}

func runSignOut(cctx *cli.Context) error {
	return withClient(cctx, func(ctx context.Context, client *auth.Client) error {
		if err := client.SignOut(ctx, auth.SignOutRequest{Global: cctx.Bool("global")}); err != nil {
			return err
		}
		fmt.Println("signed out")
		return nil
	})
}

func runTokens(cctx *cli.Context) error {
	return withClient(cctx, func(ctx context.Context, client *auth.Client) error {
		tokens, err := client.GetTokens(ctx, auth.GetTokensOptions{ForceRefresh: cctx.Bool("force-refresh")})
		if errors.Is(err, auth.ErrNoTokens) {
			fmt.Println("not signed in")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("subject:  %s\n", tokens.AccessToken.Subject())
		if exp, ok := tokens.AccessToken.ExpiresAt(); ok {
			fmt.Printf("expires:  %s (in %s)\n", exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
		}
		if groups := tokens.AccessToken.StringSlice("cognito:groups"); len(groups) > 0 {
			fmt.Printf("groups:   %s\n", strings.Join(groups, ", "))
		}
		if email := tokens.IDToken.String("email"); email != "" {
			fmt.Printf("email:    %s\n", email)
		}
		fmt.Printf("refresh:  %t\n", tokens.RefreshToken != "")
		fmt.Printf("access token:\n%s\n", tokens.AccessToken.Raw)
		return nil
	})
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
