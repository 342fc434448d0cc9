// Package flow implements the two user actions of the dual OTP workflow:
// requesting codes for a contact and verifying the codes received.
//
// Each action validates its input, guards against duplicate submission while
// a call is in flight, and reduces every outcome to a Status the user sees.
package flow

// Kind classifies a Status for presentation.
type Kind int

const (
	KindSuccess Kind = iota // Action succeeded.
	KindError               // Action failed or input was rejected.
	KindPending             // Call in flight.
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Status is the single message line shown to the user.
type Status struct {
	Kind Kind
	Text string
}

// IsZero reports whether s carries no message.
func (s Status) IsZero() bool {
	return s.Text == ""
}

// User-facing messages.
const (
	MsgMissingContact = "Please enter mobile and email."
	MsgSending        = "Sending OTPs..."
	MsgSent           = "OTPs sent."
	MsgSendFailed     = "Failed to send OTPs."
	MsgSendServerErr  = "Server error while sending OTPs."

	MsgMissingCodes    = "Enter both OTPs."
	MsgVerifying       = "Verifying OTPs..."
	MsgVerified        = "Both OTPs verified successfully!"
	MsgVerifyFailed    = "OTP verification failed."
	MsgVerifyServerErr = "Server error while verifying OTPs."
)

// DefaultDeliveryHint tells the user where codes show up. The service
// delivers codes out-of-band; this client never sees them.
const DefaultDeliveryHint = "Check backend console (simulated)."

func success(text string) Status { return Status{Kind: KindSuccess, Text: text} }
func failure(text string) Status { return Status{Kind: KindError, Text: text} }
func pending(text string) Status { return Status{Kind: KindPending, Text: text} }
