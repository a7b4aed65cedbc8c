// Package commands implements the fetchjson command line.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-fetch/config"
	"github.com/gaborage/go-fetch/fetch"
	"github.com/gaborage/go-fetch/fetch/restytransport"
	"github.com/gaborage/go-fetch/logger"
	"github.com/gaborage/go-fetch/observability"
)

// Transport names accepted by --transport
const (
	TransportHTTP  = "http"
	TransportResty = "resty"
)

// FetchOptions holds options for the fetch command
type FetchOptions struct {
	Method         string
	Headers        []string
	Data           string
	Retryable      bool
	NoThrow        bool
	ParseErrorBody bool
	ConfigFile     string
	Transport      string
	Concurrency    int

	// set from the flag set; nil keeps the engine defaults
	retryable      *bool
	parseErrorBody *bool
}

// Line is the JSON document printed for every URL
type Line struct {
	URL           string          `json:"url"`
	Status        int             `json:"status"`
	OK            bool            `json:"ok"`
	Retries       int             `json:"retries"`
	ErrorMessages []string        `json:"error_messages,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         string          `json:"error,omitempty"`
	ElapsedMS     int64           `json:"elapsed_ms"`
}

// NewFetchCommand creates the root fetchjson command
func NewFetchCommand() *cobra.Command {
	opts := &FetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetchjson [flags] URL...",
		Short: "Fetch JSON documents with connectivity retries",
		Long: `Fetches one or more JSON documents concurrently and prints one JSON line per URL.

Connection failures and truncated payloads are retried on a fixed 50ms/500ms/1s schedule
(GET requests only, unless --retryable is given). HTTP error statuses are never retried.`,
		Example: `  # Fetch a document
  fetchjson https://api.example.com/users/1

  # POST a body without failing on error statuses
  fetchjson --method POST --data '{"name":"Ada"}' --no-throw https://api.example.com/users

  # Use a config file and custom headers
  fetchjson --config fetch.yaml -H 'X-Tenant: acme' https://api.example.com/a https://api.example.com/b`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("retryable") {
				opts.retryable = &opts.Retryable
			}
			if cmd.Flags().Changed("parse-error-body") {
				opts.parseErrorBody = &opts.ParseErrorBody
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runFetch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "Request body")
	cmd.Flags().BoolVar(&opts.Retryable, "retryable", false, "Override the retry policy (default: retry GET only)")
	cmd.Flags().BoolVar(&opts.NoThrow, "no-throw", false, "Report error statuses in the output instead of failing")
	cmd.Flags().BoolVar(&opts.ParseErrorBody, "parse-error-body", false, "Parse bodies of error responses (default: on with --no-throw)")
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", config.DefaultFile, "Configuration file")
	cmd.Flags().StringVar(&opts.Transport, "transport", TransportHTTP, "Transport implementation (http|resty)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "Maximum concurrent requests")

	return cmd
}

// signalContext cancels the returned context on SIGINT or SIGTERM so in-flight
// attempts and backoff waits stop
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runFetch(ctx context.Context, stdout, stderr io.Writer, opts *FetchOptions, urls []string) error {
	headers, err := parseHeaders(opts.Headers)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(opts.ConfigFile)
	if err != nil {
		return err
	}

	log := logger.NewWithWriter(stderr, cfg.Log.Level, cfg.Log.Pretty, logger.DefaultFilterConfig())

	obsCfg := cfg.Observability
	if obsCfg.Service.Name == "" {
		obsCfg.Service.Name = cfg.App.Name
	}
	provider, err := observability.NewProvider(&obsCfg, observability.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := observability.Shutdown(provider, observability.DefaultShutdownTimeout); err != nil {
			log.Warn().Err(err).Msg("Observability shutdown failed")
		}
	}()

	engine, err := newEngine(log, cfg, opts.Transport)
	if err != nil {
		return err
	}

	ctx = logger.WithFetchCounter(ctx)
	lines := make([]Line, len(urls))
	var failedMu sync.Mutex
	failed := 0

	g := new(errgroup.Group)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, url := range urls {
		g.Go(func() error {
			line, ok := fetchOne(ctx, engine, log, opts, headers, url)
			lines[i] = line
			if !ok {
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(stdout)
	for i := range lines {
		if err := enc.Encode(&lines[i]); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	log.Info().
		Int("urls", len(urls)).
		Int("failed", failed).
		Int64("attempts", logger.GetFetchCounter(ctx)).
		Int64("fetch_elapsed_ms", logger.GetFetchElapsed(ctx)/1e6).
		Msg("Fetch run completed")

	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(urls))
	}
	return nil
}

// fetchOne performs one logical request. ok is false when the request failed and
// the failure was not requested as output through --no-throw.
func fetchOne(ctx context.Context, engine *fetch.Engine, log logger.Logger, opts *FetchOptions, headers map[string]string, url string) (Line, bool) {
	req := &fetch.Request{
		URL:                url,
		Method:             opts.Method,
		Headers:            headers,
		Retryable:          opts.retryable,
		ThrowOnErrorStatus: fetch.Bool(!opts.NoThrow),
		ParseBodyOnError:   opts.parseErrorBody,
		Diagnostic:         fetch.LoggerDiagnostic(log),
	}
	if opts.Data != "" {
		req.Body = []byte(opts.Data)
	}

	line := Line{URL: url}
	res, err := engine.Raw(ctx, req)
	if err != nil {
		line.Error = err.Error()
		var clientErr fetch.ClientError
		if errors.As(err, &clientErr) {
			line.Retries = clientErr.Retries()
			line.ErrorMessages = clientErr.ErrorMessages()
		}
		return line, false
	}

	line.Status = res.StatusCode
	line.OK = res.OK
	line.Retries = res.Retries
	line.ErrorMessages = res.ErrorMessages
	line.ElapsedMS = res.Stats.ElapsedTime.Milliseconds()
	if res.Data != nil {
		line.Data = *res.Data
	}
	if res.Err != nil {
		line.Error = res.Err.Error()
	}
	return line, true
}

func newEngine(log logger.Logger, cfg *config.Config, transport string) (*fetch.Engine, error) {
	switch transport {
	case "", TransportHTTP:
		return fetch.NewEngineFromConfig(log, &cfg.Fetch), nil
	case TransportResty:
		return fetch.NewBuilder(log).
			WithTransport(restytransport.New(cfg.Fetch.Timeout)).
			WithMaxResponseBytes(cfg.Fetch.MaxResponseBytes).
			Build(), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (supported: %s, %s)", transport, TransportHTTP, TransportResty)
	}
}

// parseHeaders turns "Name: value" pairs into a header map
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
