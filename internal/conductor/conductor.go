package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/holopos/internal/client"
	"github.com/roach88/holopos/internal/dna"
	"github.com/roach88/holopos/internal/engine"
	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/metrics"
	"github.com/roach88/holopos/internal/store"
	"github.com/roach88/holopos/internal/zome"
)

// DefaultModule is used when a call names no capability.
const DefaultModule = "main"

var (
	// ErrNotStarted is returned by calls made before Start or after Stop.
	ErrNotStarted = errors.New("conductor is not running")

	// ErrUnknownInstance is wrapped when an instance id does not resolve.
	ErrUnknownInstance = errors.New("unknown instance")
)

// Conductor runs the configured instances.
type Conductor struct {
	cfg      Config
	registry *zome.Registry
	logger   *slog.Logger
	metrics  *metrics.Collector
	newIDs   func(instanceID string) engine.CallIDGenerator

	mu        sync.RWMutex
	instances map[string]*instance
	cancel    context.CancelFunc
	group     *errgroup.Group
}

type instance struct {
	cfg     InstanceConfig
	agent   AgentConfig
	dna     DNAConfig
	engine  *engine.Engine
	store   *store.Store
	dnaHash string
}

// Option configures a Conductor.
type Option func(*Conductor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Conductor) { c.logger = l }
}

// WithMetrics reports calls and instance counts to m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Conductor) { c.metrics = m }
}

// WithCallIDs supplies a request id generator per instance, for
// deterministic call ids in tests.
func WithCallIDs(f func(instanceID string) engine.CallIDGenerator) Option {
	return func(c *Conductor) { c.newIDs = f }
}

// New validates cfg and returns a stopped conductor.
func New(cfg Config, registry *zome.Registry, opts ...Option) (*Conductor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Conductor{
		cfg:      cfg,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the conductor's configuration.
func (c *Conductor) Config() Config {
	return c.cfg
}

// Start loads every bundle, opens a store per instance and starts the
// engines. If anything fails, whatever was opened is closed again.
func (c *Conductor) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.instances != nil {
		return errors.New("conductor already started")
	}

	bundles, err := c.loadBundles()
	if err != nil {
		return err
	}

	instances := make(map[string]*instance, len(c.cfg.Instances))
	closeAll := func() {
		for _, inst := range instances {
			inst.store.Close()
		}
	}

	for _, ic := range c.cfg.Instances {
		inst, err := c.openInstance(ctx, ic, bundles[ic.DNA])
		if err != nil {
			closeAll()
			return fmt.Errorf("instance %s: %w", ic.ID, err)
		}
		instances[ic.ID] = inst
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, runCtx := errgroup.WithContext(runCtx)
	for _, inst := range instances {
		g.Go(func() error {
			if c.metrics != nil {
				c.metrics.InstanceStarted()
				defer c.metrics.InstanceStopped()
			}
			err := inst.engine.Run(runCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	c.instances = instances
	c.cancel = cancel
	c.group = g
	c.logger.Info("conductor started", "instances", len(instances))
	return nil
}

// Stop stops every engine, waits for them to finish and closes the stores.
// Stopping a conductor that is not running is a no-op.
func (c *Conductor) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.instances == nil {
		return nil
	}

	c.cancel()
	err := c.group.Wait()
	for id, inst := range c.instances {
		if cerr := inst.store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close store %s: %w", id, cerr))
		}
	}
	c.instances = nil
	c.logger.Info("conductor stopped")
	return err
}

func (c *Conductor) loadBundles() (map[string]*dna.Bundle, error) {
	bundles := make(map[string]*dna.Bundle, len(c.cfg.DNAs))
	for _, d := range c.cfg.DNAs {
		path := c.cfg.resolve(d.File)
		b, err := dna.Load(path)
		if err != nil {
			return nil, fmt.Errorf("dna %s: %w", d.ID, err)
		}
		if errs := b.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("dna %s: %s", d.ID, errs[0].Error())
		}
		for _, z := range b.Zomes {
			if _, ok := c.registry.Lookup(z.Name); !ok {
				return nil, fmt.Errorf("dna %s: zome %q has no registered definition", d.ID, z.Name)
			}
		}
		if d.Hash != "" {
			got, err := b.Hash()
			if err != nil {
				return nil, fmt.Errorf("dna %s: %w", d.ID, err)
			}
			if got != d.Hash {
				return nil, fmt.Errorf("dna %s: hash %s does not match configured %s", d.ID, got, d.Hash)
			}
		}
		bundles[d.ID] = b
	}
	return bundles, nil
}

func (c *Conductor) openInstance(ctx context.Context, ic InstanceConfig, b *dna.Bundle) (*instance, error) {
	path := store.MemoryPath
	if c.cfg.PersistenceDir != "" {
		dir := c.cfg.resolve(c.cfg.PersistenceDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create persistence dir: %w", err)
		}
		path = filepath.Join(dir, ic.ID+".db")
	}

	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(c.logger),
		engine.WithInstanceID(ic.ID),
	}
	if c.metrics != nil {
		opts = append(opts, engine.WithObserver(c.metrics))
	}
	if c.newIDs != nil {
		opts = append(opts, engine.WithCallIDGenerator(c.newIDs(ic.ID)))
	}

	agent, _ := c.agent(ic.Agent)
	e, err := engine.New(ctx, s, b, c.registry, agent.Name, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	d, _ := c.dna(ic.DNA)
	return &instance{
		cfg:     ic,
		agent:   agent,
		dna:     d,
		engine:  e,
		store:   s,
		dnaHash: e.DNAHash(),
	}, nil
}

func (c *Conductor) agent(id string) (AgentConfig, bool) {
	for _, a := range c.cfg.Agents {
		if a.ID == id {
			if a.Name == "" {
				a.Name = a.ID
			}
			return a, true
		}
	}
	return AgentConfig{}, false
}

func (c *Conductor) dna(id string) (DNAConfig, bool) {
	for _, d := range c.cfg.DNAs {
		if d.ID == id {
			return d, true
		}
	}
	return DNAConfig{}, false
}

func (c *Conductor) lookup(instanceID string) (*instance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.instances == nil {
		return nil, ErrNotStarted
	}
	inst, ok := c.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownInstance, instanceID)
	}
	return inst, nil
}

// Call invokes zome/module/function on an instance. An empty module means
// DefaultModule. The payload is encoded as by client.EncodePayload.
func (c *Conductor) Call(ctx context.Context, instanceID, zomeName, module, function string, payload any) (client.Result, error) {
	inst, err := c.lookup(instanceID)
	if err != nil {
		return client.Result{}, err
	}

	raw, err := client.EncodePayload(payload)
	if err != nil {
		return client.Result{}, err
	}
	args, err := ir.UnmarshalIRObject(raw)
	if err != nil {
		return client.Result{}, fmt.Errorf("decode payload: %w", err)
	}
	if module == "" {
		module = DefaultModule
	}

	res, err := inst.engine.Call(ctx, engine.Request{
		Zome:     zomeName,
		Module:   module,
		Function: function,
		Args:     args,
	})
	if err != nil {
		return client.Result{}, err
	}
	return client.NewResult(res.OutputCase, res.Value)
}

// MakeCaller returns a Caller for the instance running dnaPath as agentName.
func (c *Conductor) MakeCaller(agentName, dnaPath string) (client.Caller, error) {
	id, err := c.instanceFor(agentName, dnaPath)
	if err != nil {
		return nil, err
	}
	return c.Bind(id), nil
}

// Bind returns a Caller for an instance id. Errors surface on Call.
func (c *Conductor) Bind(instanceID string) client.Caller {
	return client.CallerFunc(func(ctx context.Context, zomeName, module, function string, payload any) (client.Result, error) {
		return c.Call(ctx, instanceID, zomeName, module, function, payload)
	})
}

func (c *Conductor) instanceFor(agentName, dnaPath string) (string, error) {
	for _, ic := range c.cfg.Instances {
		agent, _ := c.agent(ic.Agent)
		d, _ := c.dna(ic.DNA)
		if agent.Name == agentName && (d.File == dnaPath || d.ID == dnaPath) {
			return ic.ID, nil
		}
	}
	return "", fmt.Errorf("%w: no instance for agent %q and dna %q", ErrUnknownInstance, agentName, dnaPath)
}

// Instances describes the running instances, sorted by id.
func (c *Conductor) Instances() []client.InstanceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]client.InstanceInfo, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, client.InstanceInfo{
			ID:      inst.cfg.ID,
			Agent:   inst.agent.Name,
			DNA:     inst.dna.File,
			DNAHash: inst.dnaHash,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Store returns an instance's store for read-only inspection, such as
// printing its call log.
func (c *Conductor) Store(instanceID string) (*store.Store, error) {
	inst, err := c.lookup(instanceID)
	if err != nil {
		return nil, err
	}
	return inst.store, nil
}
