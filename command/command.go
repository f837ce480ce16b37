// Package command classifies decoded RESP requests into typed commands.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
)

// Command is a classified client request
type Command interface {
	// Name returns the canonical upper-case command name
	Name() string

	command()
}

// Ping is PING
type Ping struct{}

// Echo is ECHO arg
type Echo struct {
	Arg string
}

// Set is SET key value [PX millis]
type Set struct {
	Key   string
	Value string
	// Expiry is the relative expiration in milliseconds, nil for none
	Expiry *uint64
}

// Get is GET key
type Get struct {
	Key string
}

// ConfigGet is CONFIG GET key
type ConfigGet struct {
	Key string
}

// Keys is KEYS pattern. The pattern is not matched; every key is returned.
type Keys struct {
	Pattern string
}

func (Ping) Name() string      { return "PING" }
func (Echo) Name() string      { return "ECHO" }
func (Set) Name() string       { return "SET" }
func (Get) Name() string       { return "GET" }
func (ConfigGet) Name() string { return "CONFIG GET" }
func (Keys) Name() string      { return "KEYS" }

func (Ping) command()      {}
func (Echo) command()      {}
func (Set) command()       {}
func (Get) command()       {}
func (ConfigGet) command() {}
func (Keys) command()      {}

// Reasons carried by UnclassifiedError
const (
	ReasonNotArray      = "expected an array of bulk strings"
	ReasonEmpty         = "empty command"
	ReasonUnknown       = "unknown command"
	ReasonWrongArity    = "wrong number of arguments"
	ReasonInvalidExpiry = "value is not an integer or out of range"
)

// UnclassifiedError reports a well-formed value that is not a known command
type UnclassifiedError struct {
	Value  protocol.Value
	Reason string
}

// Error implements the error interface
func (e *UnclassifiedError) Error() string {
	return fmt.Sprintf("unclassified command %s: %s", e.Value, e.Reason)
}

// Keyword returns the first token of the request, or "" when there is none
func (e *UnclassifiedError) Keyword() string {
	args, ok := bulkArgs(e.Value)
	if !ok || len(args) == 0 {
		return ""
	}
	return args[0]
}

// Classify turns a decoded request into a Command. Keywords are matched
// case-insensitively. Anything that does not fit a known shape yields an
// *UnclassifiedError carrying v.
func Classify(v protocol.Value) (Command, error) {
	args, ok := bulkArgs(v)
	if !ok {
		return nil, unclassified(v, ReasonNotArray)
	}
	if len(args) == 0 {
		return nil, unclassified(v, ReasonEmpty)
	}

	switch strings.ToUpper(args[0]) {
	case "PING":
		if len(args) == 1 {
			return Ping{}, nil
		}

	case "ECHO":
		if len(args) == 2 {
			return Echo{Arg: args[1]}, nil
		}

	case "SET":
		return classifySet(v, args)

	case "GET":
		if len(args) == 2 {
			return Get{Key: args[1]}, nil
		}

	case "CONFIG":
		if len(args) == 3 && strings.EqualFold(args[1], "GET") {
			return ConfigGet{Key: args[2]}, nil
		}

	case "KEYS":
		if len(args) == 2 {
			return Keys{Pattern: args[1]}, nil
		}

	default:
		return nil, unclassified(v, ReasonUnknown)
	}

	return nil, unclassified(v, ReasonWrongArity)
}

func classifySet(v protocol.Value, args []string) (Command, error) {
	if len(args) < 3 {
		return nil, unclassified(v, ReasonWrongArity)
	}

	cmd := Set{Key: args[1], Value: args[2]}
	if len(args) >= 5 && strings.EqualFold(args[3], "PX") {
		millis, err := strconv.ParseUint(args[4], 10, 64)
		if err != nil {
			return nil, unclassified(v, ReasonInvalidExpiry)
		}
		cmd.Expiry = &millis
	}
	// any other trailing tokens are ignored
	return cmd, nil
}

// bulkArgs extracts the text of every element of a non-empty array of bulk strings
func bulkArgs(v protocol.Value) ([]string, bool) {
	arr, ok := v.(protocol.Array)
	if !ok || arr.Null {
		return nil, false
	}

	args := make([]string, len(arr.Items))
	for i, item := range arr.Items {
		bulk, ok := item.(protocol.BulkString)
		if !ok || bulk.Null {
			return nil, false
		}
		args[i] = bulk.Text
	}
	return args, true
}

func unclassified(v protocol.Value, reason string) *UnclassifiedError {
	return &UnclassifiedError{Value: v, Reason: reason}
}
