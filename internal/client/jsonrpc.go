package client

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 wire types shared by the clients and internal/rpc.

const JSONRPCVersion = "2.0"

// Methods served by a conductor interface.
const (
	MethodCall      = "call"
	MethodInstances = "info/instances"
)

// Standard JSON-RPC error codes, plus the conductor's own in the
// implementation-defined range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeInstanceNotFound = -32000
	CodeRateLimited      = -32001
)

// RPCRequest is a JSON-RPC request. ID is kept raw so the server can echo
// whatever the client sent.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCResponse carries either Result or Error.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object. It is a transport failure, never an
// application error; those travel as Err results.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// CallParams are the params of MethodCall. Module defaults to "main" on the
// server when empty.
type CallParams struct {
	InstanceID string          `json:"instance_id"`
	Zome       string          `json:"zome"`
	Module     string          `json:"module,omitempty"`
	Function   string          `json:"function"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// InstanceInfo describes one running instance, as returned by
// MethodInstances.
type InstanceInfo struct {
	ID      string `json:"id"`
	Agent   string `json:"agent"`
	DNA     string `json:"dna"`
	DNAHash string `json:"dna_hash"`
}
