// Package client invokes zome functions and returns their tagged results.
//
// A Caller is bound to one instance. The conductor hands out in-process
// callers (conductor.MakeCaller); WSClient and HTTPClient reach a running
// conductor over its JSON-RPC interfaces and Bind to an instance by id.
//
//	c, err := client.Dial(ctx, "ws://127.0.0.1:8888/ws")
//	app := c.Bind("alice-pos")
//	res, err := app.Call(ctx, "pos", "main", "create_basket", map[string]any{
//		"basket": map[string]any{"name": "Test", "sum": 0},
//	})
//	if res.IsOk() { ... }
package client
