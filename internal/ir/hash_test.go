package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProduct() IRObject {
	return IRObject{
		"name":        IRString("test product"),
		"description": IRString("yummi"),
		"price":       IRDecimal("5.31"),
	}
}

func TestEntryAddressDeterministic(t *testing.T) {
	a, err := EntryAddress("product", testProduct())
	require.NoError(t, err)
	b, err := EntryAddress("product", testProduct())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	_, err = hex.DecodeString(a)
	assert.NoError(t, err)
}

func TestEntryAddressDependsOnTypeAndContent(t *testing.T) {
	base := MustEntryAddress("product", testProduct())

	assert.NotEqual(t, base, MustEntryAddress("basket", testProduct()))

	other := testProduct()
	other["price"] = IRDecimal("5.32")
	assert.NotEqual(t, base, MustEntryAddress("product", other))
}

func TestEntryAddressDecimalNormalization(t *testing.T) {
	p := testProduct()
	p["price"] = IRDecimal("5.310")
	assert.Equal(t, MustEntryAddress("product", testProduct()), MustEntryAddress("product", p))
}

func TestEntryAddressRejectsNull(t *testing.T) {
	_, err := EntryAddress("product", IRObject{"name": IRNull{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EntryAddress")
}

func TestLinkIDIncludesSeq(t *testing.T) {
	a := LinkID("basket", "positions", "pos", 3)
	b := LinkID("basket", "positions", "pos", 4)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, LinkID("basket", "positions", "pos", 3))
}

func TestCallIDChangesWithInput(t *testing.T) {
	args := IRObject{"basket_addr": IRString("b")}
	base := MustCallID("req-1", "pos", "main", "get_basket", args, 1)

	assert.Equal(t, base, MustCallID("req-1", "pos", "main", "get_basket", args, 1))
	assert.NotEqual(t, base, MustCallID("req-2", "pos", "main", "get_basket", args, 1))
	assert.NotEqual(t, base, MustCallID("req-1", "pos", "main", "get_products", args, 1))
	assert.NotEqual(t, base, MustCallID("req-1", "pos", "main", "get_basket", args, 2))
	assert.NotEqual(t, base, MustCallID("req-1", "pos", "main", "get_basket", IRObject{}, 1))
}

func TestResultIDLinksToCall(t *testing.T) {
	ok, err := ResultID("call-1", OutputOk, IRString("addr"), 2)
	require.NoError(t, err)
	errCase, err := ResultID("call-1", OutputErr, IRString("addr"), 2)
	require.NoError(t, err)
	other, err := ResultID("call-2", OutputOk, IRString("addr"), 2)
	require.NoError(t, err)

	assert.NotEqual(t, ok, errCase)
	assert.NotEqual(t, ok, other)
}

func TestResultIDRejectsNull(t *testing.T) {
	_, err := ResultID("call-1", OutputOk, IRNull{}, 1)
	assert.Error(t, err)
}

func TestDNAHash(t *testing.T) {
	bundle := IRObject{"name": IRString("holopos"), "version": IRString("0.1.0")}
	a, err := DNAHash(bundle)
	require.NoError(t, err)

	// Same content under a different domain must not collide.
	entry := MustEntryAddress("dna", bundle)
	assert.NotEqual(t, a, entry)
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	assert.NotEqual(t, hashWithDomain("foo", []byte("bar")), hashWithDomain("foob", []byte("ar")))

	sum := sha256.Sum256([]byte("d\x00data"))
	assert.Equal(t, hex.EncodeToString(sum[:]), hashWithDomain("d", []byte("data")))
}

func TestMustFunctionsPanic(t *testing.T) {
	assert.Panics(t, func() { MustEntryAddress("x", IRObject{"a": IRNull{}}) })
	assert.Panics(t, func() { MustCallID("r", "z", "m", "f", IRObject{"a": IRNull{}}, 1) })
}

func TestCompletionIsOk(t *testing.T) {
	assert.True(t, Completion{OutputCase: OutputOk}.IsOk())
	assert.False(t, Completion{OutputCase: OutputErr}.IsOk())
}
