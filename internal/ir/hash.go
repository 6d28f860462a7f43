package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content addresses. The version suffix leaves room for
// a future algorithm change without colliding with existing addresses.
const (
	DomainEntry  = "holopos/entry/v1"
	DomainLink   = "holopos/link/v1"
	DomainCall   = "holopos/call/v1"
	DomainResult = "holopos/result/v1"
	DomainDNA    = "holopos/dna/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func hashObject(domain string, obj IRObject) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domain, canonical), nil
}

// EntryAddress is the address of an entry of the given type. It depends only
// on type and content, so committing the same content twice yields the same
// address.
func EntryAddress(entryType string, content IRObject) (string, error) {
	addr, err := hashObject(DomainEntry, IRObject{
		"type":    IRString(entryType),
		"content": content,
	})
	if err != nil {
		return "", fmt.Errorf("EntryAddress: %w", err)
	}
	return addr, nil
}

// LinkID identifies one link row. seq is part of the identity: linking the
// same base, tag and target twice creates two links.
func LinkID(base, tag, target string, seq int64) string {
	// All fields are strings and ints, which always marshal.
	addr, _ := hashObject(DomainLink, IRObject{
		"base":   IRString(base),
		"tag":    IRString(tag),
		"target": IRString(target),
		"seq":    IRInt(seq),
	})
	return addr
}

// CallID computes the identity of a zome call. AgentID is deliberately not
// part of it; it is recorded on the invocation as provenance.
func CallID(requestID, zome, module, function string, args IRObject, seq int64) (string, error) {
	id, err := hashObject(DomainCall, IRObject{
		"request_id": IRString(requestID),
		"zome":       IRString(zome),
		"module":     IRString(module),
		"function":   IRString(function),
		"args":       args,
		"seq":        IRInt(seq),
	})
	if err != nil {
		return "", fmt.Errorf("CallID: %w", err)
	}
	return id, nil
}

// ResultID computes the identity of a call's tagged result.
func ResultID(callID, outputCase string, result IRValue, seq int64) (string, error) {
	id, err := hashObject(DomainResult, IRObject{
		"call_id":     IRString(callID),
		"output_case": IRString(outputCase),
		"result":      result,
		"seq":         IRInt(seq),
	})
	if err != nil {
		return "", fmt.Errorf("ResultID: %w", err)
	}
	return id, nil
}

// DNAHash is the content address of a bundle manifest in IR form.
func DNAHash(bundle IRObject) (string, error) {
	h, err := hashObject(DomainDNA, bundle)
	if err != nil {
		return "", fmt.Errorf("DNAHash: %w", err)
	}
	return h, nil
}

// MustEntryAddress is like EntryAddress but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEntryAddress(entryType string, content IRObject) string {
	addr, err := EntryAddress(entryType, content)
	if err != nil {
		panic(err)
	}
	return addr
}

// MustCallID is like CallID but panics on error.
func MustCallID(requestID, zome, module, function string, args IRObject, seq int64) string {
	id, err := CallID(requestID, zome, module, function, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}
