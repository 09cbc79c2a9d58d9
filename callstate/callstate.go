// Package callstate implements the per-call finite-state machine (§3
// CallState, §4.B) driven by URN events parsed out of remote container
// stdout.
package callstate

import (
	"fmt"

	"goa.design/mini/urn"
)

// State is one of the four points on a call's lifecycle.
type State string

const (
	Guard State = "guard"
	Start State = "start"
	Error State = "error"
	End   State = "end"
)

// CallState is an immutable record of one call-state transition.
type CallState struct {
	RunID  string
	FnName string
	FnID   string
	CallID string
	State  State
	Msg    string
}

// callStatePattern is the call-state URN shape: mini:run:*:fn:*:*:call:*:*(:msg)?
const callStatePattern = "mini:run:*:fn:*:*:call:*:*"

// Matches reports whether line has the call-state URN shape.
func Matches(line string) bool {
	return urn.Matches(line, callStatePattern)
}

// Encode serializes a CallState to its wire form:
//
//	mini:run:{run_id}:fn:{fn_name}:{fn_id}:call:{call_id}:{state}:{msg}
func (c CallState) Encode() string {
	return urn.Encode(
		"mini", "run", c.RunID, "fn", c.FnName, c.FnID, "call", c.CallID, string(c.State), c.Msg,
	)
}

// Parse decodes a call-state URN line into a CallState. Returns
// urn.ErrInvalidURN if the line does not have the expected shape.
func Parse(line string) (CallState, error) {
	parts, err := urn.Decode(line)
	if err != nil {
		return CallState{}, err
	}
	if len(parts) < 9 ||
		parts[0] != "mini" || parts[1] != "run" || parts[3] != "fn" || parts[6] != "call" {
		return CallState{}, fmt.Errorf("%w: not a call-state urn: %q", urn.ErrInvalidURN, line)
	}
	st := State(parts[8])
	switch st {
	case Guard, Start, Error, End:
	default:
		return CallState{}, fmt.Errorf("%w: unknown call state %q", urn.ErrInvalidURN, parts[8])
	}
	msg := ""
	if len(parts) > 9 {
		msg = parts[9]
	}
	return CallState{
		RunID:  parts[2],
		FnName: parts[4],
		FnID:   parts[5],
		CallID: parts[7],
		State:  st,
		Msg:    msg,
	}, nil
}
