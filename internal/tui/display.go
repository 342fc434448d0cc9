package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/smileynet/dualotp/internal/flow"
	"github.com/smileynet/dualotp/internal/otp"
)

// ErrNotVerified indicates the form ended before both codes were accepted.
var ErrNotVerified = errors.New("tui: codes were not verified")

// Form runs the verification workflow against a user.
type Form interface {
	Run(ctx context.Context) error
}

// FormOptions configures form creation.
type FormOptions struct {
	Reader     io.Reader // Input source (default: os.Stdin).
	Writer     io.Writer // Output destination (default: os.Stdout).
	ForcePlain bool      // Force line prompts even if TTY.
	Requester  *flow.Requester
	Verifier   *flow.Verifier
	Contact    otp.ContactInfo       // Pre-filled contact, may be empty.
	OnSent     func(otp.ContactInfo) // Called after a successful send.
}

// NewForm returns the TUI form when the writer is a TTY, or line prompts
// otherwise. ForcePlain overrides TTY detection.
func NewForm(opts FormOptions) Form {
	if opts.Reader == nil {
		opts.Reader = os.Stdin
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	if opts.ForcePlain || !isTTY(opts.Writer) {
		return &PlainForm{opts: opts}
	}
	return &TUIForm{opts: opts}
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// TUIForm runs the Bubble Tea form.
// Falls back to PlainForm if the TUI program fails to start.
type TUIForm struct {
	opts FormOptions
}

// Run starts the program and returns ErrNotVerified if the user quits
// before both codes were accepted.
func (f *TUIForm) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(f.opts.Requester, f.opts.Verifier,
		WithContext(ctx),
		WithContact(f.opts.Contact),
		WithSentHook(f.opts.OnSent),
	)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(f.opts.Reader),
		tea.WithOutput(f.opts.Writer),
	)

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		plain := &PlainForm{opts: f.opts}
		return plain.Run(ctx)
	}

	if fm, ok := final.(Model); ok && fm.Verified() {
		return nil
	}
	return ErrNotVerified
}

// PlainForm prompts for each field on its own line and prints every status
// change as a timestamped line.
type PlainForm struct {
	opts FormOptions
}

// Run prompts for a contact until codes are sent, then for codes until they
// are verified. The in-flight line is printed before each call. Each failed
// attempt is reported and prompted again, like a user pressing the button a
// second time. Closing the input ends the form with ErrNotVerified.
func (f *PlainForm) Run(ctx context.Context) error {
	in := bufio.NewScanner(f.opts.Reader)

	contact := f.opts.Contact
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var ok bool
		if contact.Mobile, ok = f.prompt(in, "Mobile", contact.Mobile); !ok {
			return ErrNotVerified
		}
		if contact.Email, ok = f.prompt(in, "Email", contact.Email); !ok {
			return ErrNotVerified
		}

		if flow.CheckContact(contact) == nil {
			f.render(flow.SendingStatus())
		}
		res := f.opts.Requester.Request(ctx, contact)
		f.render(res.Status)
		if res.OK() {
			contact = flow.TrimContact(contact)
			if f.opts.OnSent != nil {
				f.opts.OnSent(contact)
			}
			break
		}
		contact = otp.ContactInfo{}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		mobileCode, ok := f.prompt(in, "Mobile OTP", "")
		if !ok {
			return ErrNotVerified
		}
		emailCode, ok := f.prompt(in, "Email OTP", "")
		if !ok {
			return ErrNotVerified
		}

		req := otp.VerificationRequest{
			Mobile:     contact.Mobile,
			Email:      contact.Email,
			MobileCode: mobileCode,
			EmailCode:  emailCode,
		}
		if flow.CheckCodes(req) == nil {
			f.render(flow.VerifyingStatus())
		}
		res := f.opts.Verifier.Verify(ctx, req)
		f.render(res.Status)
		if res.OK() {
			return nil
		}
	}
}

// prompt asks for label, returning preset without asking when non-empty.
// It reports false when input is exhausted.
func (f *PlainForm) prompt(in *bufio.Scanner, label, preset string) (string, bool) {
	if strings.TrimSpace(preset) != "" {
		_, _ = fmt.Fprintf(f.opts.Writer, "%s: %s\n", label, preset)
		return preset, true
	}
	_, _ = fmt.Fprintf(f.opts.Writer, "%s: ", label)
	if !in.Scan() {
		_, _ = fmt.Fprintln(f.opts.Writer)
		return "", false
	}
	return in.Text(), true
}

func (f *PlainForm) render(s flow.Status) {
	if s.IsZero() {
		return
	}
	_, _ = fmt.Fprintln(f.opts.Writer, StatusLine(time.Now(), s))
}

// StatusLine formats a status for plain text output.
func StatusLine(ts time.Time, s flow.Status) string {
	return fmt.Sprintf("[%s] %s %s", ts.Format("15:04:05"), statusIndicator(s.Kind), s.Text)
}

// statusIndicator returns the Unicode indicator for a status kind.
func statusIndicator(k flow.Kind) string {
	switch k {
	case flow.KindSuccess:
		return "✓"
	case flow.KindError:
		return "✗"
	case flow.KindPending:
		return "…"
	default:
		return "?"
	}
}
