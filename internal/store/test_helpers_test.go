package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/holopos/internal/ir"
)

// createTestStore opens a fresh file-backed store in t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProduct(name string) ir.IRObject {
	return ir.IRObject{
		"name":        ir.IRString(name),
		"description": ir.IRString("yummi"),
		"price":       ir.IRDecimal("5.31"),
	}
}

func commitTestEntry(t *testing.T, s *Store, entryType string, content ir.IRObject, seq int64) string {
	t.Helper()
	addr, err := s.CommitEntry(t.Context(), ir.Entry{Type: entryType, Content: content, Author: "alice", Seq: seq})
	if err != nil {
		t.Fatalf("CommitEntry() failed: %v", err)
	}
	return addr
}

func createTestInvocation(id, function string, seq int64) ir.Invocation {
	return ir.Invocation{
		ID:            id,
		RequestID:     "req-" + id,
		Zome:          "pos",
		Module:        "main",
		Function:      function,
		Args:          ir.IRObject{},
		Seq:           seq,
		Provenance:    ir.Provenance{AgentID: "alice", Capability: "main"},
		DNAHash:       "dna-hash",
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}
