package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/holopos/internal/ir"
)

// Call pairs an invocation with its completion. Completion is nil while the
// call is still running, or if the process stopped before it finished.
type Call struct {
	Invocation ir.Invocation
	Completion *ir.Completion
}

// WriteInvocation records a call before it runs.
// Duplicate ids are silently ignored.
func (s *Store) WriteInvocation(ctx context.Context, inv ir.Invocation) error {
	argsJSON, err := marshalValue(inv.Args)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, request_id, zome, module, function, args, seq, agent_id, capability, dna_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.RequestID,
		inv.Zome,
		inv.Module,
		inv.Function,
		argsJSON,
		inv.Seq,
		inv.Provenance.AgentID,
		inv.Provenance.Capability,
		inv.DNAHash,
		inv.EngineVersion,
		inv.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	return nil
}

// WriteCompletion records the tagged result of an invocation. The
// invocation must exist. A second completion for the same invocation is
// silently ignored.
func (s *Store) WriteCompletion(ctx context.Context, comp ir.Completion) error {
	if comp.Result == nil {
		return fmt.Errorf("write completion: result is nil")
	}
	resultJSON, err := marshalValue(comp.Result)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO completions
		(id, invocation_id, output_case, result, seq, agent_id, capability)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		comp.ID,
		comp.InvocationID,
		comp.OutputCase,
		resultJSON,
		comp.Seq,
		comp.Provenance.AgentID,
		comp.Provenance.Capability,
	)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}
	return nil
}

const invocationColumns = `id, request_id, zome, module, function, args, seq, agent_id, capability, dna_hash, engine_version, ir_version`

const completionColumns = `id, invocation_id, output_case, result, seq, agent_id, capability`

// ReadInvocation returns the invocation with id, or ErrNotFound.
func (s *Store) ReadInvocation(ctx context.Context, id string) (ir.Invocation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invocationColumns+` FROM invocations WHERE id = ?`, id)
	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Invocation{}, fmt.Errorf("invocation %s: %w", id, ErrNotFound)
	}
	return inv, err
}

// ReadCompletionFor returns the completion of an invocation, or ErrNotFound.
func (s *Store) ReadCompletionFor(ctx context.Context, invocationID string) (ir.Completion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionColumns+` FROM completions WHERE invocation_id = ?`, invocationID)
	comp, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Completion{}, fmt.Errorf("completion for %s: %w", invocationID, ErrNotFound)
	}
	return comp, err
}

// ReadCalls returns the call log in seq order. An empty agentID returns
// every agent's calls.
func (s *Store) ReadCalls(ctx context.Context, agentID string) ([]Call, error) {
	query := `SELECT ` + invocationColumns + ` FROM invocations`
	var args []any
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}

	var invocations []ir.Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}

	// The pool has one connection, so completions are read after rows is closed.
	calls := make([]Call, 0, len(invocations))
	for _, inv := range invocations {
		call := Call{Invocation: inv}
		comp, err := s.ReadCompletionFor(ctx, inv.ID)
		switch {
		case err == nil:
			call.Completion = &comp
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func scanInvocation(row scanner) (ir.Invocation, error) {
	var (
		inv      ir.Invocation
		argsJSON string
	)
	err := row.Scan(
		&inv.ID,
		&inv.RequestID,
		&inv.Zome,
		&inv.Module,
		&inv.Function,
		&argsJSON,
		&inv.Seq,
		&inv.Provenance.AgentID,
		&inv.Provenance.Capability,
		&inv.DNAHash,
		&inv.EngineVersion,
		&inv.IRVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Invocation{}, err
		}
		return ir.Invocation{}, fmt.Errorf("scan invocation: %w", err)
	}

	args, err := unmarshalObject(argsJSON)
	if err != nil {
		return ir.Invocation{}, fmt.Errorf("invocation %s: %w", inv.ID, err)
	}
	inv.Args = args
	return inv, nil
}

func scanCompletion(row scanner) (ir.Completion, error) {
	var (
		comp       ir.Completion
		resultJSON string
	)
	err := row.Scan(
		&comp.ID,
		&comp.InvocationID,
		&comp.OutputCase,
		&resultJSON,
		&comp.Seq,
		&comp.Provenance.AgentID,
		&comp.Provenance.Capability,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Completion{}, err
		}
		return ir.Completion{}, fmt.Errorf("scan completion: %w", err)
	}

	result, err := unmarshalValue(resultJSON)
	if err != nil {
		return ir.Completion{}, fmt.Errorf("completion %s: %w", comp.ID, err)
	}
	comp.Result = result
	return comp, nil
}
