package message

import (
	"math/big"
	"testing"

	"github.com/awinterman/anarchoresp/protocol/kind"
	"gotest.tools/v3/assert"
)

// TestNullDistinction checks that null values never compare equal to empty ones.
func TestNullDistinction(t *testing.T) {
	assert.Assert(t, !NullBulkString().Equal(BulkString("")))
	assert.Assert(t, !BulkString("").Equal(NullBulkString()))
	assert.Assert(t, !NullArray().Equal(Array()))
	assert.Assert(t, NullArray().Equal(NullArray()))
	assert.Assert(t, BulkString("").Equal(BulkBytes(nil)))
	assert.Assert(t, !Null().Equal(NullBulkString()))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Message
		equal bool
	}{
		{"same simple string", SimpleString("OK"), SimpleString("OK"), true},
		{"simple string vs error", SimpleString("OK"), Error("OK"), false},
		{"ints", Int(1), Int(1), true},
		{"different ints", Int(1), Int(2), false},
		{"bools", Bool(true), Bool(false), false},
		{"bulk", BulkString("a\r\nb"), BulkBytes([]byte("a\r\nb")), true},
		{"verbatim format", VerbatimString("txt", "x"), VerbatimString("mkd", "x"), false},
		{"nested arrays", Array(Int(1), Array(SimpleString("OK"))), Array(Int(1), Array(SimpleString("OK"))), true},
		{"array vs set", Array(Int(1)), Set(Int(1)), false},
		{"array length", Array(Int(1)), Array(Int(1), Int(1)), false},
		{"maps", Map(SimpleString("k"), Int(1)), Map(SimpleString("k"), Int(1)), true},
		{"map values", Map(SimpleString("k"), Int(1)), Map(SimpleString("k"), Int(2)), false},
		{"big numbers", BigInt(big.NewInt(-42)), BigNumber("-42"), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.a.Equal(test.b), test.equal)
			assert.Equal(t, test.b.Equal(test.a), test.equal)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := []Message{
		SimpleString("hello world"),
		Error("ERR something"),
		Int(-9),
		NullBulkString(),
		BulkString("binary\r\n\x00safe"),
		NullArray(),
		Array(),
		Bool(true),
		BigNumber("+3492890328409238509324850943850943825024385"),
		VerbatimString("txt", "Some string\r\nwith lines"),
		Map(SimpleString("a"), Array(Int(1)), Null(), Set(Int(1), Int(1))),
		Push(SimpleString("message"), BulkString("chan")),
	}
	for _, m := range valid {
		assert.NilError(t, m.Validate(), "message %s", m)
	}

	invalid := map[string]Message{
		"simple string with CRLF": SimpleString("a\r\nb"),
		"error with LF":           Error("a\nb"),
		"null int":                {Kind: kind.Int, IsNull: true},
		"non decimal big number":  BigNumber("12a"),
		"empty big number":        BigNumber(""),
		"verbatim format colon":   {Kind: kind.VerbatimString, Format: [3]byte{'t', ':', 't'}},
		"null bulk with payload":  {Kind: kind.BulkString, IsNull: true, Bulk: []byte("x")},
		"null array with elems":   {Kind: kind.Array, IsNull: true, Elems: []Message{Int(1)}},
		"nested invalid":          Array(Int(1), Set(SimpleString("\r\n"))),
		"invalid map key":         Map(SimpleString("\n"), Int(1)),
		"unknown kind":            {Kind: ','},
	}
	for name, m := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, m.Validate(), ErrInvalid)
		})
	}
}

func TestLen(t *testing.T) {
	assert.Equal(t, NullBulkString().Len(), -1)
	assert.Equal(t, NullArray().Len(), -1)
	assert.Equal(t, BulkString("hello").Len(), 5)
	assert.Equal(t, VerbatimString("txt", "Some string").Len(), 15)
	assert.Equal(t, Map(Int(1), Int(2), Int(3), Int(4)).Len(), 2)
	assert.Equal(t, Set().Len(), 0)
}

func TestText(t *testing.T) {
	tests := []struct {
		msg  Message
		text string
		ok   bool
	}{
		{SimpleString("OK"), "OK", true},
		{Error("ERR bad"), "ERR bad", true},
		{BulkString("a\r\nb"), "a\r\nb", true},
		{BulkString(""), "", true},
		{VerbatimString("txt", "hi"), "hi", true},
		{NullBulkString(), "", false},
		{Int(1), "", false},
		{BigNumber("12"), "", false},
		{Array(BulkString("x")), "", false},
	}
	for _, testcase := range tests {
		text, ok := testcase.msg.Text()
		assert.Equal(t, ok, testcase.ok, "%v", testcase.msg)
		assert.Equal(t, text, testcase.text, "%v", testcase.msg)
	}
}

func TestBigInt(t *testing.T) {
	n, ok := BigNumber("-3492890328409238509324850943850943825024385").BigInt()
	assert.Assert(t, ok)
	want, _ := new(big.Int).SetString("-3492890328409238509324850943850943825024385", 10)
	assert.Equal(t, n.Cmp(want), 0)

	_, ok = Int(1).BigInt()
	assert.Assert(t, !ok)
}

func TestString(t *testing.T) {
	tests := map[string]Message{
		"+OK":                SimpleString("OK"),
		"-ERR oops":          Error("ERR oops"),
		":12":                Int(12),
		`$"a\r\nb"`:          BulkString("a\r\nb"),
		"$nil":               NullBulkString(),
		"*nil":               NullArray(),
		"*[:1 *[+OK]]":       Array(Int(1), Array(SimpleString("OK"))),
		"%{+first: :1}":      Map(SimpleString("first"), Int(1)),
		`=txt:"hi"`:          VerbatimString("txt", "hi"),
		"#t":                 Bool(true),
		"_":                  Null(),
		"~[:1 :1]":           Set(Int(1), Int(1)),
		`>[$"message"]`:      Push(BulkString("message")),
		"(123456789012345678": BigNumber("123456789012345678"),
	}
	for want, m := range tests {
		assert.Equal(t, m.String(), want)
	}
}

func TestVerbatimStringPanicsOnBadFormat(t *testing.T) {
	defer func() {
		assert.Assert(t, recover() != nil)
	}()
	VerbatimString("text", "x")
}
