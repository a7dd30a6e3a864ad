package zcl

import (
	"fmt"
	"log/slog"
)

// GlobalKind classifies a foundation command handled by GlobalInterpreter.
type GlobalKind int

const (
	GlobalNotGlobal GlobalKind = iota
	GlobalIgnored
	GlobalWriteResponse
	GlobalConfigureReportingResponse
	GlobalDefaultResponse
)

func (k GlobalKind) String() string {
	switch k {
	case GlobalNotGlobal:
		return "not_global"
	case GlobalIgnored:
		return "ignored"
	case GlobalWriteResponse:
		return "write_response"
	case GlobalConfigureReportingResponse:
		return "configure_reporting_response"
	case GlobalDefaultResponse:
		return "default_response"
	}
	return fmt.Sprintf("GlobalKind(%d)", int(k))
}

// GlobalResult is the outcome of interpreting one foundation command.
// Err is a *ProtocolStatusError for non-success statuses and a *ParseError
// for payloads too short to carry one.
type GlobalResult struct {
	Kind    GlobalKind
	Command uint8 // echoed command id for default responses
	Status  uint8
	Err     error
}

// OK reports whether the command carried a success status.
func (r GlobalResult) OK() bool { return r.Err == nil }

type globalHandler func(f *Frame) GlobalResult

var globalHandlers = map[uint8]globalHandler{
	FoundationWriteAttributesResp: interpretWriteResponse,
	FoundationConfigReportingResp: interpretConfigureReportingResponse,
	FoundationDefaultResponse:     interpretDefaultResponse,
}

// GlobalInterpreter dispatches foundation commands through a fixed table.
// Commands without a handler are traced at debug level and ignored.
type GlobalInterpreter struct {
	logger *slog.Logger
}

// NewGlobalInterpreter returns an interpreter tracing to logger.
func NewGlobalInterpreter(logger *slog.Logger) *GlobalInterpreter {
	return &GlobalInterpreter{logger: logger.With("component", "zcl-global")}
}

// Interpret classifies f. It never panics on unknown or short payloads.
func (g *GlobalInterpreter) Interpret(f *Frame) GlobalResult {
	if !f.IsGlobal {
		return GlobalResult{Kind: GlobalNotGlobal}
	}
	h, ok := globalHandlers[f.CommandID]
	if !ok {
		g.logger.Debug("global command ignored",
			"cluster", fmt.Sprintf("0x%04X", f.ClusterID),
			"command", FoundationName(f.CommandID),
			"data", fmt.Sprintf("%X", f.Data))
		return GlobalResult{Kind: GlobalIgnored, Command: f.CommandID}
	}
	res := h(f)
	if res.Err != nil {
		g.logger.Debug("global command status",
			"cluster", fmt.Sprintf("0x%04X", f.ClusterID),
			"kind", res.Kind.String(),
			"err", res.Err)
	}
	return res
}

func interpretWriteResponse(f *Frame) GlobalResult {
	res := GlobalResult{Kind: GlobalWriteResponse, Command: FoundationWriteAttributes}
	switch {
	case len(f.Data) > 0:
		res.Status = f.Data[0]
	case len(f.Value) > 0:
		res.Status = f.Value[len(f.Value)-1]
	default:
		res.Err = parseErr("", "write attributes response without status", nil)
		return res
	}
	if res.Status != ZCLStatusSuccess {
		res.Err = &ProtocolStatusError{ClusterID: f.ClusterID, CommandID: f.CommandID, Status: res.Status}
	}
	return res
}

func interpretConfigureReportingResponse(f *Frame) GlobalResult {
	return GlobalResult{Kind: GlobalConfigureReportingResponse, Command: FoundationConfigReporting}
}

func interpretDefaultResponse(f *Frame) GlobalResult {
	res := GlobalResult{Kind: GlobalDefaultResponse}
	if len(f.Data) < 2 {
		res.Err = parseErr(fmt.Sprintf("%X", f.Data), "default response shorter than 2 bytes", nil)
		return res
	}
	res.Command, res.Status = f.Data[0], f.Data[1]
	if res.Status != ZCLStatusSuccess {
		res.Err = &ProtocolStatusError{ClusterID: f.ClusterID, CommandID: res.Command, Status: res.Status}
	}
	return res
}
