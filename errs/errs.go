// Package errs defines the failure kinds surfaced by the signing engine.
//
// Every cryptographic or structural failure is reported as an [*Error]
// carrying a [Kind]. Kinds act as sentinels, so callers test for them with
// errors.Is:
//
//	if errors.Is(err, errs.RoundTimeout) {
//		// retry with a different signer subset
//	}
//
// Only [RoundTimeout] is considered retryable. Challenge, balance and key
// image mismatches point at a bug or an active attack and must abort the
// transaction.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/f3rmion/xmrsig/party"
)

// Kind classifies a failure.
type Kind uint8

const (
	// Unknown is the zero Kind.
	Unknown Kind = iota
	// InvalidEncoding reports a malformed scalar or point.
	InvalidEncoding
	// ShareVerificationFailed reports a DKG share that does not match its
	// sender's commitments.
	ShareVerificationFailed
	// InsufficientParticipants reports fewer than t available signers.
	InsufficientParticipants
	// RoundTimeout reports an expected contribution that did not arrive.
	RoundTimeout
	// ChallengeMismatch reports a failed verification equation.
	ChallengeMismatch
	// BalanceMismatch reports commitment sums that do not cancel.
	BalanceMismatch
	// KeyImageMismatch reports a key image diverging from the one derived
	// at session start.
	KeyImageMismatch
	// ProtocolViolation reports out-of-order calls, nonce reuse or
	// malformed protocol messages.
	ProtocolViolation
)

var kindNames = map[Kind]string{
	Unknown:                  "unknown",
	InvalidEncoding:          "invalid encoding",
	ShareVerificationFailed:  "share verification failed",
	InsufficientParticipants: "insufficient participants",
	RoundTimeout:             "round timeout",
	ChallengeMismatch:        "challenge mismatch",
	BalanceMismatch:          "balance mismatch",
	KeyImageMismatch:         "key image mismatch",
	ProtocolViolation:        "protocol violation",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error lets a Kind be used directly as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// NoInput marks an error that is not tied to a transaction input.
const NoInput = -1

// Error is the structured failure returned across package boundaries.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "dkg.round2".
	Op string
	// Participants lists offending or missing participants, if known.
	Participants party.Set
	// Input is the transaction input index, or NoInput.
	Input int
	// Check names the verification check that failed.
	Check string
	// Err is the underlying cause.
	Err error
}

// New returns an Error of the given kind with a formatted cause.
func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{
		Kind:  kind,
		Op:    op,
		Input: NoInput,
		Err:   fmt.Errorf(format, args...),
	}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Input: NoInput, Err: err}
}

// WithParticipants sets the offending participants and returns e.
func (e *Error) WithParticipants(ids ...party.ID) *Error {
	e.Participants = append(e.Participants, ids...)
	return e
}

// WithInput sets the input index and returns e.
func (e *Error) WithInput(i int) *Error {
	e.Input = i
	return e
}

// WithCheck sets the failing check and returns e.
func (e *Error) WithCheck(check string) *Error {
	e.Check = check
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Input != NoInput {
		fmt.Fprintf(&b, " (input %d)", e.Input)
	}
	if len(e.Participants) > 0 {
		fmt.Fprintf(&b, " (participants %s)", e.Participants)
	}
	if e.Check != "" {
		fmt.Fprintf(&b, " [%s]", e.Check)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a Kind target against e.Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Participants returns the participants named by the first *Error in err's chain.
func Participants(err error) party.Set {
	var e *Error
	if errors.As(err, &e) {
		return e.Participants
	}
	return nil
}

// Retryable reports whether the orchestrator may retry with another subset.
func Retryable(err error) bool {
	return KindOf(err) == RoundTimeout
}
