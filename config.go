package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	dodgeTick      time.Duration
	frameInterval  time.Duration
	gridSize       int
	port           int
	prefix         string
	profile        bool
	scoresFile     string
	sessionTimeout time.Duration
	snakeTick      time.Duration
	tlsCert        string
	tlsKey         string
	tokenKey       string
	tokenTTL       time.Duration
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.gridSize < 4 || c.gridSize > 200 {
		return fmt.Errorf("invalid grid size (must be between 4-200 inclusive): %d", c.gridSize)
	}
	if c.snakeTick <= 0 || c.dodgeTick <= 0 {
		return errors.New("--snake-tick and --dodge-tick must be positive")
	}
	if c.frameInterval <= 0 {
		return errors.New("--frame-interval must be positive")
	}
	if c.tokenKey != "" && len(c.tokenKey) < 32 {
		return errors.New("--token-key must be at least 32 characters")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// signingKey returns the configured token key, or a random one that lasts
// for the life of the process.
func (c *Config) signingKey() ([]byte, error) {
	if c.tokenKey != "" {
		return []byte(c.tokenKey), nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ARCADEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "arcadebox",
		Short:         "Arcade games on a shared screen, played with phones as controllers.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ARCADEBOX_BIND)")
	fs.DurationVar(&cfg.dodgeTick, "dodge-tick", 16*time.Millisecond, "simulation step for the dodge game (env: ARCADEBOX_DODGE_TICK)")
	fs.DurationVar(&cfg.frameInterval, "frame-interval", 33*time.Millisecond, "how often displays receive a new frame (env: ARCADEBOX_FRAME_INTERVAL)")
	fs.IntVar(&cfg.gridSize, "grid-size", 20, "width and height of the snake board (env: ARCADEBOX_GRID_SIZE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ARCADEBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ARCADEBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ARCADEBOX_PROFILE)")
	fs.StringVar(&cfg.scoresFile, "scores-file", "", "file to persist highscores to; empty keeps them in memory (env: ARCADEBOX_SCORES_FILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: ARCADEBOX_SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.snakeTick, "snake-tick", 150*time.Millisecond, "simulation step for the snake game (env: ARCADEBOX_SNAKE_TICK)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ARCADEBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ARCADEBOX_TLS_KEY)")
	fs.StringVar(&cfg.tokenKey, "token-key", "", "secret for signing controller join links; random if unset (env: ARCADEBOX_TOKEN_KEY)")
	fs.DurationVar(&cfg.tokenTTL, "token-ttl", 12*time.Hour, "lifetime of controller join links, 0 for no expiry (env: ARCADEBOX_TOKEN_TTL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ARCADEBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ARCADEBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("arcadebox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
