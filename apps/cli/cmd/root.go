package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webtask/packages/config"
	"github.com/abdul-hamid-achik/webtask/packages/history"
	"github.com/abdul-hamid-achik/webtask/packages/metrics"
	"github.com/abdul-hamid-achik/webtask/packages/webtask"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagConfig  string
	flagProfile string
	flagNoColor bool
	flagTimeout float64
)

var rootCmd = &cobra.Command{
	Use:   "webtask",
	Short: "Fluent asynchronous HTTP tasks from the command line.",
	Long: `webtask dispatches HTTP fetch, download, and upload tasks built
with the webtask library. Sessions are configured through named
profiles in a YAML config file; every exchange can be recorded to a
local history database.`,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a webtask YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "profile name from the config file")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Float64Var(&flagTimeout, "timeout", 0, "seconds to wait for completion (0 waits for all handlers)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// sessionEnv bundles the session and its observers for one invocation.
type sessionEnv struct {
	session *webtask.HTTPSession
	metrics *metrics.Collector
	history *history.Store
	profile config.Profile
}

func (e *sessionEnv) close() {
	if e.history != nil {
		_ = e.history.Close()
	}
	e.session.Close()
}

// buildSession assembles an HTTP session from the selected profile.
// Without a config file a default session is used.
func buildSession() (*sessionEnv, error) {
	env := &sessionEnv{metrics: metrics.NewCollector()}
	opts := []webtask.SessionOption{webtask.WithObserver(env.metrics)}

	if flagConfig != "" {
		f, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		p, err := f.Profile(flagProfile)
		if err != nil {
			return nil, err
		}
		env.profile = p

		if p.BaseURL != "" {
			opts = append(opts, webtask.WithBaseURL(p.BaseURL))
		}
		if p.Timeout() > 0 {
			opts = append(opts, webtask.WithTimeout(p.Timeout()))
		}
		if len(p.Headers) > 0 {
			opts = append(opts, webtask.WithDefaultHeaders(p.Headers))
		}
		if p.Proxy != "" {
			opts = append(opts, webtask.WithProxy(p.Proxy))
		}
		if p.MaxAuthRetries > 0 {
			opts = append(opts, webtask.WithMaxAuthRetries(p.MaxAuthRetries))
		}
		if p.RateLimit > 0 {
			opts = append(opts, webtask.WithRateLimit(p.RateLimit))
		}
		if p.DownloadDir != "" {
			opts = append(opts, webtask.WithDownloadDir(p.DownloadDir))
		}
		opts = append(opts, webtask.WithValidateSSL(p.GetValidateSSL()))

		if p.HistoryDB != "" {
			store, err := history.Open(p.HistoryDB)
			if err != nil {
				return nil, fmt.Errorf("open history: %w", err)
			}
			env.history = store
			opts = append(opts, webtask.WithObserver(store))
		}
	}

	env.session = webtask.NewHTTPSession(opts...)
	return env, nil
}

// authenticate wires profile credentials into a task challenge handler.
func authenticate(task *webtask.Task, p config.Profile) {
	if p.Username == "" {
		return
	}
	task.Authenticate(func(ch *webtask.Challenge) (webtask.Disposition, *webtask.Credential, error) {
		return webtask.DispositionUseCredential, &webtask.Credential{
			Username: p.Username,
			Password: p.Password,
		}, nil
	})
}

func waitTimeout() time.Duration {
	if flagTimeout <= 0 {
		return 0
	}
	return time.Duration(flagTimeout * float64(time.Second))
}

// parsePairs splits repeated key=value flags into a map.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid key=value pair: %q", pair)
		}
		out[kv[0]] = kv[1]
	}
	return out, nil
}
