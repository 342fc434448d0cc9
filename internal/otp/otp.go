// Package otp talks to the external OTP service that sends and checks
// one-time passcodes for a mobile number and an email address.
package otp

import (
	"fmt"
	"strings"
)

// Endpoint paths on the OTP service.
const (
	SendPath   = "/send-otp"
	VerifyPath = "/verify-otp"
)

// Operation names used in errors and logs.
const (
	OpSend   = "send"
	OpVerify = "verify"
)

// ContactInfo identifies where the service should deliver the two codes.
type ContactInfo struct {
	Mobile string `json:"mobile" validate:"required"`
	Email  string `json:"email" validate:"required"`
}

// VerificationRequest carries the codes the user received for a contact.
// Only the codes are required; mobile and email are forwarded as given.
type VerificationRequest struct {
	Mobile     string `json:"mobile"`
	Email      string `json:"email"`
	MobileCode string `json:"mobileOtp" validate:"required"`
	EmailCode  string `json:"emailOtp" validate:"required"`
}

// SendResponse is the body returned by POST /send-otp.
type SendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// VerifyResponse is the body returned by POST /verify-otp.
type VerifyResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message,omitempty"`
}

// RejectedError reports a response that decoded cleanly but did not succeed:
// a non-2xx status or a false success/verified flag.
type RejectedError struct {
	Op         string
	StatusCode int
	Message    string // Server-provided message, possibly empty.
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("otp: %s rejected (status %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("otp: %s rejected (status %d): %s", e.Op, e.StatusCode, e.Message)
}

// TransportError reports a failure to reach the service or to decode its reply.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("otp: %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// joinURL appends path to base, tolerating a trailing slash on base.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
