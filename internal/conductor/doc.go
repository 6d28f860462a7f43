// Package conductor hosts instances: one agent running one bundle over its
// own store, each driven by an engine.
//
// A conductor is built from a Config, either loaded from YAML or assembled
// with the builders:
//
//	alice := conductor.Agent("alice")
//	bundle := conductor.DNA("dist/bundle.json")
//	cfg := conductor.NewConfig(conductor.Instance(alice, bundle))
//
//	c, err := conductor.New(cfg, registry)
//	if err := c.Start(ctx); err != nil { ... }
//	defer c.Stop()
//
//	app, err := c.MakeCaller("alice", "dist/bundle.json")
//	res, err := app.Call(ctx, "pos", "main", "create_product", payload)
//
// Bundles are loaded and validated in Start. Every zome a bundle declares
// must have a Go definition in the registry.
package conductor
