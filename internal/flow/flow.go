package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/smileynet/dualotp/internal/otp"
)

var (
	// ErrIncomplete indicates required input was empty; no call was made.
	ErrIncomplete = errors.New("flow: required fields are empty")

	// ErrInFlight indicates the action's trigger is disabled because an
	// earlier call has not finished; no call was made.
	ErrInFlight = errors.New("flow: request already in flight")
)

// Sender requests delivery of codes for a contact.
type Sender interface {
	SendCodes(ctx context.Context, contact otp.ContactInfo) (otp.SendResponse, error)
}

// Checker verifies codes for a contact.
type Checker interface {
	VerifyCodes(ctx context.Context, req otp.VerificationRequest) (otp.VerifyResponse, error)
}

// Verify at compile time that the HTTP client satisfies both interfaces.
var (
	_ Sender  = (*otp.Client)(nil)
	_ Checker = (*otp.Client)(nil)
)

// StatusCallback receives every status change of an action.
type StatusCallback func(Status)

// Option configures a Requester or Verifier.
type Option func(*options)

type options struct {
	statusFn StatusCallback
	hint     string
}

// WithStatusCallback registers fn to receive the pending and final status.
func WithStatusCallback(fn StatusCallback) Option {
	return func(o *options) { o.statusFn = fn }
}

// WithDeliveryHint replaces the hint appended to the "sent" message.
func WithDeliveryHint(hint string) Option {
	return func(o *options) { o.hint = hint }
}

func buildOptions(opts []Option) options {
	o := options{hint: DefaultDeliveryHint}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) emit(s Status) {
	if o.statusFn != nil {
		o.statusFn(s)
	}
}

// validate is shared; a validator.Validate is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// CheckContact reports ErrIncomplete if mobile or email is empty after trimming.
func CheckContact(c otp.ContactInfo) error {
	return validateStruct(TrimContact(c))
}

// CheckCodes reports ErrIncomplete if either code is empty after trimming.
func CheckCodes(r otp.VerificationRequest) error {
	return validateStruct(TrimRequest(r))
}

// MissingContactStatus is the status shown when CheckContact fails.
func MissingContactStatus() Status { return failure(MsgMissingContact) }

// MissingCodesStatus is the status shown when CheckCodes fails.
func MissingCodesStatus() Status { return failure(MsgMissingCodes) }

// SendingStatus is the status shown while a send call is in flight.
func SendingStatus() Status { return pending(MsgSending) }

// VerifyingStatus is the status shown while a verify call is in flight.
func VerifyingStatus() Status { return pending(MsgVerifying) }

// trigger is the enable/disable flag of one action.
type trigger struct {
	busy atomic.Bool
}

// acquire disables the trigger. It reports false if already disabled.
func (t *trigger) acquire() bool { return t.busy.CompareAndSwap(false, true) }

func (t *trigger) release() { t.busy.Store(false) }

// Result is the outcome of one action attempt.
type Result struct {
	Status Status
	Err    error // nil on success
}

// OK reports whether the attempt succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Requester sends codes to a contact.
type Requester struct {
	sender Sender
	trig   trigger
	opts   options
}

// NewRequester creates a Requester backed by s.
func NewRequester(s Sender, opts ...Option) *Requester {
	return &Requester{
		sender: s,
		opts:   buildOptions(opts),
	}
}

// Busy reports whether a send call is in flight.
func (r *Requester) Busy() bool { return r.trig.busy.Load() }

// Request trims contact, validates it, and asks the service to send codes.
// While the call is in flight Busy reports true and further calls return
// ErrInFlight without touching the status.
func (r *Requester) Request(ctx context.Context, contact otp.ContactInfo) Result {
	contact = TrimContact(contact)
	if err := validateStruct(contact); err != nil {
		st := MissingContactStatus()
		r.opts.emit(st)
		return Result{Status: st, Err: err}
	}

	if !r.trig.acquire() {
		return Result{Err: ErrInFlight}
	}
	defer r.trig.release()

	r.opts.emit(SendingStatus())
	_, err := r.sender.SendCodes(ctx, contact)

	var st Status
	if err != nil {
		st = failure(failureText(err, MsgSendFailed, MsgSendServerErr))
	} else {
		st = success(joinNonEmpty(MsgSent, r.opts.hint))
	}
	r.opts.emit(st)
	return Result{Status: st, Err: err}
}

// Verifier checks the codes a user entered.
type Verifier struct {
	checker Checker
	trig    trigger
	opts    options
}

// NewVerifier creates a Verifier backed by c.
func NewVerifier(c Checker, opts ...Option) *Verifier {
	return &Verifier{
		checker: c,
		opts:    buildOptions(opts),
	}
}

// Busy reports whether a verify call is in flight.
func (v *Verifier) Busy() bool { return v.trig.busy.Load() }

// Verify trims req, requires both codes, and submits them. Mobile and email
// are forwarded as given; the caller is expected to have sent codes first.
func (v *Verifier) Verify(ctx context.Context, req otp.VerificationRequest) Result {
	req = TrimRequest(req)
	if err := validateStruct(req); err != nil {
		st := MissingCodesStatus()
		v.opts.emit(st)
		return Result{Status: st, Err: err}
	}

	if !v.trig.acquire() {
		return Result{Err: ErrInFlight}
	}
	defer v.trig.release()

	v.opts.emit(VerifyingStatus())
	_, err := v.checker.VerifyCodes(ctx, req)

	var st Status
	if err != nil {
		st = failure(failureText(err, MsgVerifyFailed, MsgVerifyServerErr))
	} else {
		st = success(MsgVerified)
	}
	v.opts.emit(st)
	return Result{Status: st, Err: err}
}

// TrimContact strips surrounding whitespace from both fields.
func TrimContact(c otp.ContactInfo) otp.ContactInfo {
	return otp.ContactInfo{
		Mobile: strings.TrimSpace(c.Mobile),
		Email:  strings.TrimSpace(c.Email),
	}
}

// TrimRequest strips surrounding whitespace from every field.
func TrimRequest(r otp.VerificationRequest) otp.VerificationRequest {
	return otp.VerificationRequest{
		Mobile:     strings.TrimSpace(r.Mobile),
		Email:      strings.TrimSpace(r.Email),
		MobileCode: strings.TrimSpace(r.MobileCode),
		EmailCode:  strings.TrimSpace(r.EmailCode),
	}
}

// validateStruct runs the struct's validate tags and wraps field failures
// in ErrIncomplete.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string { return fe.Field() })
	return fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(fields, ", "))
}

// failureText picks the message for a failed call: the server's own message
// when it sent one, the rejection default otherwise, and the server-error
// text for anything that never produced a decodable reply.
func failureText(err error, rejected, serverErr string) string {
	var re *otp.RejectedError
	if errors.As(err, &re) {
		if re.Message != "" {
			return re.Message
		}
		return rejected
	}
	return serverErr
}

func joinNonEmpty(parts ...string) string {
	return strings.Join(lo.Compact(parts), " ")
}
