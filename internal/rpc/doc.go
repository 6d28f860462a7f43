// Package rpc serves a conductor's JSON-RPC 2.0 interface over HTTP and
// websocket.
//
// Routes:
//
//	POST /rpc      one JSON-RPC request per HTTP request
//	GET  /ws       websocket upgrade; one JSON-RPC request per text message
//	GET  /metrics  Prometheus metrics, when a collector is configured
//	GET  /healthz  liveness and instance count
//
// Methods are "call" and "info/instances". Application failures of a call
// are returned as an Err result inside a successful JSON-RPC response;
// JSON-RPC errors are reserved for transport problems such as a malformed
// request or an unknown instance.
package rpc
