package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/idiom-party-backend/internal/engine"
)

const EnvPrefix = "IDIOMS"

type Config struct {
	Bind    string
	Port    int
	Verbose bool

	MinPlayers      int
	SubmitTimeout   time.Duration
	VoteTimeout     time.Duration
	ResultsDelay    time.Duration
	MaxNameLength   int
	MaxAnswerLength int

	MessageRate    float64
	MessageBurst   int
	AllowedOrigins []string
	PublicURL      string
	ShutdownGrace  time.Duration
}

// RegisterFlags adds every setting to flags with its default.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	rules := engine.DefaultRules()

	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	flags.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: IDIOMS_BIND)")
	flags.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: IDIOMS_PORT)")
	flags.BoolVarP(&c.Verbose, "verbose", "v", false, "debug logging to the console (env: IDIOMS_VERBOSE)")

	flags.IntVar(&c.MinPlayers, "min-players", rules.MinPlayers, "players needed to start a game (env: IDIOMS_MIN_PLAYERS)")
	flags.DurationVar(&c.SubmitTimeout, "submit-timeout", rules.SubmitTimeout, "time allowed for answers (env: IDIOMS_SUBMIT_TIMEOUT)")
	flags.DurationVar(&c.VoteTimeout, "vote-timeout", rules.VoteTimeout, "time allowed for votes (env: IDIOMS_VOTE_TIMEOUT)")
	flags.DurationVar(&c.ResultsDelay, "results-delay", rules.ResultsDelay, "how long results stay up before the next round (env: IDIOMS_RESULTS_DELAY)")
	flags.IntVar(&c.MaxNameLength, "max-name-length", rules.MaxNameLength, "longest accepted player name, in characters (env: IDIOMS_MAX_NAME_LENGTH)")
	flags.IntVar(&c.MaxAnswerLength, "max-answer-length", rules.MaxAnswerLength, "longest accepted answer, in characters (env: IDIOMS_MAX_ANSWER_LENGTH)")

	flags.Float64Var(&c.MessageRate, "message-rate", 10, "inbound messages per second per connection (env: IDIOMS_MESSAGE_RATE)")
	flags.IntVar(&c.MessageBurst, "message-burst", 20, "inbound message burst per connection (env: IDIOMS_MESSAGE_BURST)")
	flags.StringSliceVar(&c.AllowedOrigins, "allowed-origins", nil, "extra websocket origin patterns, e.g. localhost:* (env: IDIOMS_ALLOWED_ORIGINS)")
	flags.StringVar(&c.PublicURL, "public-url", "", "base URL used in join QR codes; derived from the request when empty (env: IDIOMS_PUBLIC_URL)")
	flags.DurationVar(&c.ShutdownGrace, "shutdown-grace", 5*time.Second, "time allowed for in-flight requests on shutdown (env: IDIOMS_SHUTDOWN_GRACE)")
}

// ApplyEnv copies IDIOMS_* environment values into flags the command line
// did not set, so flags win over the environment.
func ApplyEnv(flags *pflag.FlagSet, v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		env := fmt.Sprintf("%s_%s", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")))
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
			return
		}
		if err := v.BindEnv(f.Name, env); err != nil {
			errs = append(errs, fmt.Errorf("bind %s: %w", env, err))
			return
		}
		if !f.Changed && v.IsSet(f.Name) {
			if err := flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", env, err))
			}
		}
	})
	return errors.Join(errs...)
}

// LoadDotEnv loads the given files (default ".env") into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.MinPlayers < 2 {
		return fmt.Errorf("min-players must be at least 2: %d", c.MinPlayers)
	}
	for name, d := range map[string]time.Duration{
		"submit-timeout": c.SubmitTimeout,
		"vote-timeout":   c.VoteTimeout,
		"results-delay":  c.ResultsDelay,
		"shutdown-grace": c.ShutdownGrace,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive: %s", name, d)
		}
	}
	if c.MaxNameLength < 1 || c.MaxAnswerLength < 1 {
		return errors.New("max-name-length and max-answer-length must be positive")
	}
	if c.MessageRate <= 0 || c.MessageBurst < 1 {
		return errors.New("message-rate and message-burst must be positive")
	}
	return nil
}

func (c *Config) Rules() engine.Rules {
	return engine.Rules{
		MinPlayers:      c.MinPlayers,
		SubmitTimeout:   c.SubmitTimeout,
		VoteTimeout:     c.VoteTimeout,
		ResultsDelay:    c.ResultsDelay,
		MaxNameLength:   c.MaxNameLength,
		MaxAnswerLength: c.MaxAnswerLength,
	}
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}
