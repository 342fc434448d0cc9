package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/smileynet/dualotp"
	"github.com/smileynet/dualotp/internal/config"
	"github.com/smileynet/dualotp/internal/flow"
	"github.com/smileynet/dualotp/internal/otp"
	"github.com/smileynet/dualotp/internal/session"
	"github.com/smileynet/dualotp/internal/tui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const projectConfigPath = ".dualotp/config.yaml"

// Globals are flags shared by every command.
type Globals struct {
	BaseURL string `help:"OTP service base URL. Overrides config and DUALOTP_BASE_URL." placeholder:"URL"`
	Config  string `help:"Config file to use instead of ${config_path}." placeholder:"PATH"`
	Debug   bool   `help:"Log HTTP exchanges to stderr."`
}

// CLI is the top-level command structure for dualotp.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version." short:"V"`
	Form    FormCmd          `cmd:"" default:"1" help:"Send and verify codes interactively."`
	Send    SendCmd          `cmd:"" help:"Ask the service to send codes to a mobile number and email."`
	Verify  VerifyCmd        `cmd:"" help:"Verify the codes received on both channels."`
	Init    InitCmd          `cmd:"" help:"Write a default project config file."`
}

// service is the OTP endpoint pair the commands talk to.
type service interface {
	flow.Sender
	flow.Checker
}

// sessionStore abstracts session persistence for testing.
type sessionStore interface {
	Save(p session.Pending) error
	Load() (session.Pending, error)
	Clear() error
}

// env is everything a command needs once config is resolved.
type env struct {
	cfg   *config.Config
	svc   service
	store sessionStore
}

// loadConfig loads layered config from user and project paths, then applies
// env and flag overrides and validates the result.
func loadConfig(g *Globals) (*config.Config, error) {
	project := projectConfigPath
	if g.Config != "" {
		if _, err := os.Stat(g.Config); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		project = g.Config
	}

	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/dualotp/config.yaml"),
		project,
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if g.BaseURL != "" {
		cfg.API.BaseURL = g.BaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns a debug text logger on w, or one that discards everything.
func newLogger(debug bool, w io.Writer) *slog.Logger {
	if !debug {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newEnv resolves config and builds the HTTP client and session store.
func newEnv(g *Globals) (env, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return env{}, err
	}
	client := otp.NewClient(cfg.API.BaseURL,
		otp.WithTimeout(cfg.API.Timeout),
		otp.WithUserAgent(cfg.API.UserAgent),
		otp.WithLogger(newLogger(g.Debug, os.Stderr)),
	)
	return env{
		cfg:   cfg,
		svc:   client,
		store: session.NewFileStore(cfg.Session.Dir),
	}, nil
}

// statusPrinter returns a StatusCallback that prints timestamped status lines.
func statusPrinter(w io.Writer) flow.StatusCallback {
	return func(s flow.Status) {
		_, _ = fmt.Fprintln(w, tui.StatusLine(time.Now(), s))
	}
}

// saveSession remembers contact for later verify calls. Failures only warn.
func saveSession(w io.Writer, store sessionStore, contact otp.ContactInfo, baseURL string) {
	err := store.Save(session.Pending{
		Contact: contact,
		BaseURL: baseURL,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		_, _ = fmt.Fprintf(w, "warning: could not save session: %v\n", err)
	}
}

// clearSession forgets the saved contact. Failures only warn.
func clearSession(w io.Writer, store sessionStore) {
	if err := store.Clear(); err != nil {
		_, _ = fmt.Fprintf(w, "warning: could not clear session: %v\n", err)
	}
}

// --- Form command ---

// FormCmd runs the interactive form.
type FormCmd struct {
	NoTUI bool `help:"Force line prompts even if stdout is a TTY." default:"false"`
}

// Run executes the form command.
func (f *FormCmd) Run(g *Globals) error {
	e, err := newEnv(g)
	if err != nil {
		return fmt.Errorf("form: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return f.run(ctx, os.Stdin, os.Stdout, e)
}

// run executes the form with the given dependencies, enabling testable wiring.
func (f *FormCmd) run(ctx context.Context, in io.Reader, w io.Writer, e env) error {
	hint := flow.WithDeliveryHint(e.cfg.UI.DeliveryHint)

	// A pending session pre-fills the contact so an interrupted form resumes.
	var contact otp.ContactInfo
	if p, err := e.store.Load(); err == nil && p.BaseURL == e.cfg.API.BaseURL {
		contact = p.Contact
	}

	form := tui.NewForm(tui.FormOptions{
		Reader:     in,
		Writer:     w,
		ForcePlain: f.NoTUI || e.cfg.UI.Plain,
		Requester:  flow.NewRequester(e.svc, hint),
		Verifier:   flow.NewVerifier(e.svc),
		Contact:    contact,
		OnSent: func(c otp.ContactInfo) {
			saveSession(io.Discard, e.store, c, e.cfg.API.BaseURL)
		},
	})

	if err := form.Run(ctx); err != nil {
		return fmt.Errorf("form: %w", err)
	}
	clearSession(w, e.store)
	return nil
}

// --- Send command ---

// SendCmd requests codes once.
type SendCmd struct {
	Mobile string `help:"Mobile number to send a code to."`
	Email  string `help:"Email address to send a code to."`
}

// Run executes the send command.
func (s *SendCmd) Run(g *Globals) error {
	e, err := newEnv(g)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return s.run(ctx, os.Stdout, e)
}

// run executes one send attempt, saving the contact on success.
func (s *SendCmd) run(ctx context.Context, w io.Writer, e env) error {
	r := flow.NewRequester(e.svc,
		flow.WithDeliveryHint(e.cfg.UI.DeliveryHint),
		flow.WithStatusCallback(statusPrinter(w)),
	)

	contact := otp.ContactInfo{Mobile: s.Mobile, Email: s.Email}
	res := r.Request(ctx, contact)
	if !res.OK() {
		return fmt.Errorf("send: %w", res.Err)
	}

	saveSession(w, e.store, flow.TrimContact(contact), e.cfg.API.BaseURL)
	return nil
}

// --- Verify command ---

// VerifyCmd submits both codes once.
type VerifyCmd struct {
	MobileCode string `help:"Code received on the mobile number."`
	EmailCode  string `help:"Code received by email."`
	Mobile     string `help:"Mobile number. Defaults to the last send."`
	Email      string `help:"Email address. Defaults to the last send."`
}

// Run executes the verify command.
func (v *VerifyCmd) Run(g *Globals) error {
	e, err := newEnv(g)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return v.run(ctx, os.Stdout, e)
}

// run executes one verify attempt, clearing the saved session on success.
func (v *VerifyCmd) run(ctx context.Context, w io.Writer, e env) error {
	contact := v.contact(w, e)

	verifier := flow.NewVerifier(e.svc, flow.WithStatusCallback(statusPrinter(w)))
	res := verifier.Verify(ctx, otp.VerificationRequest{
		Mobile:     contact.Mobile,
		Email:      contact.Email,
		MobileCode: v.MobileCode,
		EmailCode:  v.EmailCode,
	})
	if !res.OK() {
		return fmt.Errorf("verify: %w", res.Err)
	}

	clearSession(w, e.store)
	return nil
}

// contact returns the flags' contact, or the saved session's when neither
// flag is set.
func (v *VerifyCmd) contact(w io.Writer, e env) otp.ContactInfo {
	flags := otp.ContactInfo{Mobile: v.Mobile, Email: v.Email}
	if strings.TrimSpace(v.Mobile) != "" || strings.TrimSpace(v.Email) != "" {
		return flags
	}

	p, err := e.store.Load()
	switch {
	case errors.Is(err, session.ErrNoSession):
		_, _ = fmt.Fprintln(w, "warning: no saved session; pass --mobile and --email or run send first")
		return flags
	case err != nil:
		_, _ = fmt.Fprintf(w, "warning: could not load session: %v\n", err)
		return flags
	}
	if p.BaseURL != "" && p.BaseURL != e.cfg.API.BaseURL {
		_, _ = fmt.Fprintf(w, "warning: codes were sent via %s, verifying against %s\n", p.BaseURL, e.cfg.API.BaseURL)
	}
	return p.Contact
}

// --- Init command ---

// InitCmd writes the default config template.
type InitCmd struct {
	Force bool   `help:"Overwrite an existing config file."`
	Path  string `help:"Where to write the config." default:"${config_path}" placeholder:"PATH"`
}

// Run executes the init command.
func (i *InitCmd) Run() error {
	return i.run(os.Stdout)
}

// run writes the embedded template to Path.
func (i *InitCmd) run(w io.Writer) error {
	if !i.Force {
		if _, err := os.Stat(i.Path); err == nil {
			return fmt.Errorf("init: %s already exists (use --force to overwrite)", i.Path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(i.Path), 0o755); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := os.WriteFile(i.Path, dualotp.ConfigTemplate(), 0o644); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Wrote %s\n", i.Path)
	return nil
}

// Exit codes.
const (
	exitSuccess = 0
	exitFailed  = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, flow.ErrIncomplete),
		errors.Is(err, tui.ErrNotVerified),
		otp.IsRejected(err),
		otp.IsTransport(err):
		return exitFailed
	default:
		return exitSetup
	}
}

// newParser builds the kong parser; tests pass extra options for writers
// and exit hooks.
func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("dualotp"),
		kong.Description("Verify a mobile number and an email address with one-time codes."),
		kong.Vars{
			"version":     version + " " + commit + " " + date,
			"config_path": projectConfigPath,
		},
		kong.Bind(&cli.Globals),
	}, opts...)
	return kong.New(cli, opts...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
