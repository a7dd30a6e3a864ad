package zcl

import (
	"errors"
	"fmt"
)

// ErrParse matches every *ParseError.
var ErrParse = errors.New("zcl: malformed frame")

// ParseError reports input that could not be decoded. No partial frame is
// produced alongside it.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "zcl: parse " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Input != "" {
		msg += fmt.Sprintf(" (input %q)", truncate(e.Input, 96))
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrParse) hold for any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func parseErr(input, reason string, err error) *ParseError {
	return &ParseError{Input: input, Reason: reason, Err: err}
}

// ProtocolStatusError is a non-success status reported by the device in a
// foundation response. It is informational.
type ProtocolStatusError struct {
	ClusterID uint16
	CommandID uint8 // echoed command for default responses, else the response id
	Status    uint8
}

func (e *ProtocolStatusError) Error() string {
	return fmt.Sprintf("zcl: cluster 0x%04X command 0x%02X: status %s (0x%02X)",
		e.ClusterID, e.CommandID, StatusName(e.Status), e.Status)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
