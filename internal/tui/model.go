// Package tui implements the interactive verification form and its plain
// text fallback for terminals that cannot run it.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/dualotp/internal/flow"
	"github.com/smileynet/dualotp/internal/otp"
)

// field indexes the form inputs in focus order.
type field int

const (
	fieldMobile field = iota
	fieldEmail
	fieldMobileCode
	fieldEmailCode
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldMobile:     "Mobile",
	fieldEmail:      "Email",
	fieldMobileCode: "Mobile OTP",
	fieldEmailCode:  "Email OTP",
}

// codeCharLimit bounds code inputs; services commonly issue 4 to 8 digits.
const codeCharLimit = 12

// SendResultMsg carries the outcome of a send attempt.
type SendResultMsg struct {
	Contact otp.ContactInfo
	Result  flow.Result
}

// VerifyResultMsg carries the outcome of a verify attempt.
type VerifyResultMsg struct {
	Result flow.Result
}

// Model is the Bubble Tea model for the dual OTP form.
type Model struct {
	inputs       [fieldCount]textinput.Model
	focus        field
	codesVisible bool
	sending      bool // Send trigger disabled while true.
	verifying    bool // Verify trigger disabled while true.
	verified     bool
	status       flow.Status
	spinner      spinner.Model
	help         help.Model
	keys         formKeys
	width        int

	ctx       context.Context
	requester *flow.Requester
	verifier  *flow.Verifier
	onSent    func(otp.ContactInfo)
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithContext sets the context used for service calls.
func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) { m.ctx = ctx }
}

// WithSentHook registers fn to run after codes were sent successfully.
// It runs inside the send command, off the UI goroutine.
func WithSentHook(fn func(otp.ContactInfo)) ModelOption {
	return func(m *Model) { m.onSent = fn }
}

// WithContact pre-fills the mobile and email fields.
func WithContact(c otp.ContactInfo) ModelOption {
	return func(m *Model) {
		m.inputs[fieldMobile].SetValue(c.Mobile)
		m.inputs[fieldEmail].SetValue(c.Email)
	}
}

// NewModel creates a form that sends through r and verifies through v.
func NewModel(r *flow.Requester, v *flow.Verifier, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		switch field(i) {
		case fieldMobile:
			ti.Placeholder = "+15550100"
		case fieldEmail:
			ti.Placeholder = "you@example.com"
		default:
			ti.Placeholder = "123456"
			ti.CharLimit = codeCharLimit
		}
		inputs[i] = ti
	}
	inputs[fieldMobile].Focus()

	m := Model{
		inputs:    inputs,
		focus:     fieldMobile,
		spinner:   s,
		help:      help.New(),
		keys:      FormKeyMap(),
		ctx:       context.Background(),
		requester: r,
		verifier:  v,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.syncKeys()
	return m
}

// Init starts the cursor blink and spinner tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Verified reports whether both codes were accepted.
func (m Model) Verified() bool { return m.verified }

// Status returns the current message line.
func (m Model) Status() flow.Status { return m.status }

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case SendResultMsg:
		return m.applySend(msg), nil

	case VerifyResultMsg:
		return m.applyVerify(msg), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

// handleKey processes form navigation and triggers, forwarding everything
// else to the focused input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Next):
		return m.moveFocus(1), nil

	case key.Matches(msg, m.keys.Prev):
		return m.moveFocus(-1), nil

	case key.Matches(msg, m.keys.Resend):
		return m.send()

	case msg.Type == tea.KeyEnter:
		// Enter is inert while the focused section's trigger is disabled.
		if m.focus.isCode() {
			return m.verify()
		}
		return m.send()
	}

	return m.updateFocused(msg)
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (f field) isCode() bool {
	return f == fieldMobileCode || f == fieldEmailCode
}

// visibleFields returns how many inputs are currently shown.
func (m Model) visibleFields() int {
	if m.codesVisible {
		return int(fieldCount)
	}
	return int(fieldMobileCode)
}

func (m Model) moveFocus(delta int) Model {
	n := m.visibleFields()
	next := (int(m.focus) + delta + n) % n
	return m.setFocus(field(next))
}

func (m Model) setFocus(f field) Model {
	m.inputs[m.focus].Blur()
	m.focus = f
	m.inputs[m.focus].Focus()
	m.syncKeys()
	return m
}

func (m Model) contact() otp.ContactInfo {
	return otp.ContactInfo{
		Mobile: m.inputs[fieldMobile].Value(),
		Email:  m.inputs[fieldEmail].Value(),
	}
}

func (m Model) request() otp.VerificationRequest {
	c := m.contact()
	return otp.VerificationRequest{
		Mobile:     c.Mobile,
		Email:      c.Email,
		MobileCode: m.inputs[fieldMobileCode].Value(),
		EmailCode:  m.inputs[fieldEmailCode].Value(),
	}
}

// send starts a send call unless its trigger is disabled or the requester
// is already serving another call. Empty fields are reported without
// starting a call.
func (m Model) send() (tea.Model, tea.Cmd) {
	if m.sending || m.requester.Busy() {
		return m, nil
	}
	contact := m.contact()
	if err := flow.CheckContact(contact); err != nil {
		m.status = flow.MissingContactStatus()
		return m, nil
	}

	m.sending = true
	m.status = flow.SendingStatus()
	m.syncKeys()

	ctx, r, hook := m.ctx, m.requester, m.onSent
	return m, func() tea.Msg {
		res := r.Request(ctx, contact)
		trimmed := flow.TrimContact(contact)
		if res.OK() && hook != nil {
			hook(trimmed)
		}
		return SendResultMsg{Contact: trimmed, Result: res}
	}
}

// verify starts a verify call unless its trigger is disabled or the code
// section has not been revealed yet.
func (m Model) verify() (tea.Model, tea.Cmd) {
	if m.verifying || !m.codesVisible || m.verifier.Busy() {
		return m, nil
	}
	req := m.request()
	if err := flow.CheckCodes(req); err != nil {
		m.status = flow.MissingCodesStatus()
		return m, nil
	}

	m.verifying = true
	m.status = flow.VerifyingStatus()
	m.syncKeys()

	ctx, v := m.ctx, m.verifier
	return m, func() tea.Msg {
		return VerifyResultMsg{Result: v.Verify(ctx, req)}
	}
}

func (m Model) applySend(msg SendResultMsg) Model {
	m.sending = false
	m.status = msg.Result.Status
	if msg.Result.OK() {
		m.verified = false
		if !m.codesVisible {
			m.codesVisible = true
			m = m.setFocus(fieldMobileCode)
		}
	}
	m.syncKeys()
	return m
}

func (m Model) applyVerify(msg VerifyResultMsg) Model {
	m.verifying = false
	m.status = msg.Result.Status
	m.verified = msg.Result.OK()
	m.syncKeys()
	return m
}

// syncKeys enables bindings to match trigger state and updates the submit
// label for the focused section.
func (m *Model) syncKeys() {
	if m.focus.isCode() {
		m.keys.Submit.SetHelp("enter", "verify OTPs")
		m.keys.Submit.SetEnabled(!m.verifying)
	} else {
		m.keys.Submit.SetHelp("enter", "send OTPs")
		m.keys.Submit.SetEnabled(!m.sending)
	}
	m.keys.Resend.SetEnabled(m.codesVisible && !m.sending)
}

// View renders the form, triggers, status line, and help bar.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Dual OTP verification"))
	b.WriteString("\n\n")
	m.viewField(&b, fieldMobile)
	m.viewField(&b, fieldEmail)
	b.WriteString("\n  ")
	b.WriteString(Button("Send OTPs", !m.sending))
	b.WriteString("\n")

	if m.codesVisible {
		b.WriteString("\n")
		m.viewField(&b, fieldMobileCode)
		m.viewField(&b, fieldEmailCode)
		b.WriteString("\n  ")
		b.WriteString(Button("Verify OTPs", !m.verifying))
		b.WriteString("\n")
	}

	if !m.status.IsZero() {
		b.WriteString("\n  ")
		if m.status.Kind == flow.KindPending {
			b.WriteString(m.spinner.View())
			b.WriteString(" ")
		}
		b.WriteString(StatusStyle(m.status.Kind).Render(m.status.Text))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewField(b *strings.Builder, f field) {
	style := labelStyle
	if m.focus == f {
		style = focusedLabelStyle
	}
	b.WriteString("  ")
	b.WriteString(style.Render(fieldLabels[f]))
	b.WriteString(m.inputs[f].View())
	b.WriteString("\n")
}
