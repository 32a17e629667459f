package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/authsession"
	"github.com/jrsteele09/go-rag-client/internal/config"
	"github.com/jrsteele09/go-rag-client/internal/logger"
	"github.com/jrsteele09/go-rag-client/session"
	"github.com/jrsteele09/go-rag-client/session/filestore"
	"github.com/jrsteele09/go-rag-client/session/memstore"
	"github.com/jrsteele09/go-rag-client/session/redisstore"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

var errUsage = errors.New("usage")

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	store   *session.Store
	client  *apiclient.Client
	manager *authsession.Manager
	out     io.Writer
	errOut  io.Writer
	closers []func() error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := flag.NewFlagSet("ragcli", flag.ContinueOnError)
	root.SetOutput(stderr)
	apiURL := root.String("api", "", "API base URL (overrides RAG_API_URL)")
	timeout := root.Duration("timeout", 0, "request timeout (overrides RAG_API_TIMEOUT)")
	root.Usage = func() { usage(root.Output()) }
	if err := root.Parse(args); err != nil {
		return 2
	}
	if root.NArg() == 0 {
		usage(stderr)
		return 2
	}
	name, rest := root.Arg(0), root.Args()[1:]

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return 2
	}
	if name == "version" {
		banner(stdout)
		fmt.Fprintf(stdout, "ragcli %s\n", version)
		return 0
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	a, err := newApp(ctx, cfg, *apiURL, *timeout, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.close()

	if err := a.manager.Start(ctx); err != nil {
		a.log.Warn().Err(err).Msg("session restore failed")
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := cmd.run(ctx, a, fs, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: ragcli %s %s\n", name, cmd.usage)
			return 2
		}
		fmt.Fprintln(stderr, "error:", describe(err))
		return 1
	}
	return 0
}

func newApp(ctx context.Context, cfg config.Config, apiURL string, timeout time.Duration, stdout, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		log:    logger.New(cfg.GetLogLevel(), cfg.GetEnv()),
		out:    stdout,
		errOut: stderr,
	}

	backend, err := a.backend(ctx)
	if err != nil {
		return nil, err
	}
	a.store = session.NewStore(backend, session.WithLogger(a.log))

	if apiURL == "" {
		apiURL = cfg.GetAPIURL()
	}
	if timeout <= 0 {
		timeout = cfg.GetAPITimeout()
	}
	a.client = apiclient.New(apiURL, a.store,
		apiclient.WithTimeout(timeout),
		apiclient.WithLogger(a.log),
		apiclient.WithUserAgent("ragcli/"+version),
	)
	a.manager = authsession.New(a.client, a.store,
		authsession.WithLogger(a.log),
		authsession.WithNavigator(authsession.NavigatorFunc(func() {
			fmt.Fprintln(a.errOut, "Your session has expired. Run `ragcli login` to sign in again.")
		})),
	)
	a.client.OnSessionExpired(a.manager.HandleSessionExpired)
	return a, nil
}

// backend picks the durable session store named by SESSION_BACKEND.
func (a *app) backend(ctx context.Context) (session.Backend, error) {
	switch a.cfg.GetSessionBackend() {
	case config.SessionBackendMemory:
		return memstore.New(), nil
	case config.SessionBackendRedis:
		rdb, err := redisstore.Connect(ctx, a.cfg.GetRedisURL())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return redisstore.New(rdb, a.cfg.GetSessionRedisKey(), a.cfg.GetSessionTTL()), nil
	}
	var opts []filestore.Option
	if secret := a.cfg.GetSessionSecret(); secret != "" {
		opts = append(opts, filestore.WithSecret(secret))
	}
	fs := filestore.New(a.cfg.GetSessionFile(), opts...)
	a.log.Debug().Str("path", fs.Path()).Bool("encrypted", len(opts) > 0).Msg("file session backend")
	return fs, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Debug().Err(err).Msg("close")
		}
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// requireSignedIn fails fast instead of sending a request that can only 401.
func (a *app) requireSignedIn() error {
	if !a.store.Get().HasAccessToken() {
		return errors.New(authsession.MsgNotSignedIn)
	}
	return nil
}

// describe turns client errors into one line for the terminal.
func describe(err error) string {
	var verr *apiclient.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case apiclient.IsConnectionError(err):
		return authsession.MsgNoConnection
	case apiclient.IsUnauthorized(err):
		return authsession.MsgSessionExpired
	}
	if detail := apiclient.Detail(err); detail != "" {
		return fmt.Sprintf("%s (HTTP %d)", detail, apiclient.StatusCode(err))
	}
	return err.Error()
}

func banner(w io.Writer) {
	fig := figure.NewFigure("ragcli", "cybermedium", true)
	fmt.Fprintln(w, fig.String())
}
