package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr8co/ember/diag"
	"github.com/dr8co/ember/runtime"
	"github.com/dr8co/ember/value"
)

func run(t *testing.T, source string) value.Value {
	t.Helper()
	result, diags := runtime.Execute(source)
	require.Empty(t, diags, "expected no diagnostics for %q", source)
	return result
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"1 + 2;", 3},
		{"5 - 10;", -5},
		{"2 * 3 * 4;", 24},
		{"10 / 2;", 5},
		{"7 % 3;", 1},
		{"2 ** 10;", 1024},
		{"-5 + 10;", 5},
		{"(1 + 2) * 3;", 9},
	}
	for _, tt := range tests {
		n, ok := run(t, tt.input).(value.Number)
		require.True(t, ok, "input %q", tt.input)
		assert.Equal(t, tt.expected, float64(n), "input %q", tt.input)
	}
}

func TestComparisonAndEquality(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1 < 2;", true},
		{"1 > 2;", false},
		{"1 <= 1;", true},
		{"2 >= 3;", false},
		{"1 == 1;", true},
		{"1 == \"1\";", true},
		{"1 === \"1\";", false},
		{"1 !== 1;", false},
		{"null == undefined;", true},
		{"null === undefined;", false},
	}
	for _, tt := range tests {
		b, ok := run(t, tt.input).(value.Bool)
		require.True(t, ok, "input %q produced %#v", tt.input, run(t, tt.input))
		assert.Equal(t, tt.expected, bool(b), "input %q", tt.input)
	}
}

func TestLogicalShortCircuit(t *testing.T) {
	assert.Equal(t, value.Number(2), run(t, "false || 2;"))
	assert.Equal(t, value.Number(2), run(t, "1 && 2;"))
	assert.Equal(t, value.Bool(false), run(t, "false && (1/0 > 0);"))
	assert.Equal(t, value.Number(5), run(t, "null ?? 5;"))
	assert.Equal(t, value.Number(0), run(t, "0 ?? 5;"))
}

func TestBitwiseOps(t *testing.T) {
	assert.Equal(t, value.Number(6), run(t, "4 | 2;"))
	assert.Equal(t, value.Number(0), run(t, "4 & 2;"))
	assert.Equal(t, value.Number(6), run(t, "4 ^ 2;"))
	assert.Equal(t, value.Number(8), run(t, "1 << 3;"))
	assert.Equal(t, value.Number(1), run(t, "8 >> 3;"))
}

func TestGlobalLetBindings(t *testing.T) {
	result := run(t, "let one = 1; let two = one + one; two + one;")
	assert.Equal(t, value.Number(3), result)
}

func TestVarHoisting(t *testing.T) {
	result := run(t, "function f() { if (true) { var x = 5; } return x; } f();")
	assert.Equal(t, value.Number(5), result)
}

func TestConditionalExpression(t *testing.T) {
	assert.Equal(t, value.Number(10), run(t, "true ? 10 : 20;"))
	assert.Equal(t, value.Number(20), run(t, "false ? 10 : 20;"))
}

func TestIfElseValue(t *testing.T) {
	assert.Equal(t, value.Number(10), run(t, "if (true) { 10; } else { 20; }"))
	assert.Equal(t, value.Number(20), run(t, "if (false) { 10; } else { 20; }"))
}

func TestWhileLoop(t *testing.T) {
	result := run(t, "let i = 0; let sum = 0; while (i < 5) { sum = sum + i; i = i + 1; } sum;")
	assert.Equal(t, value.Number(10), result)
}

func TestForLoop(t *testing.T) {
	result := run(t, "let sum = 0; for (let i = 0; i < 5; i = i + 1) { sum = sum + i; } sum;")
	assert.Equal(t, value.Number(10), result)
}

func TestBreakContinue(t *testing.T) {
	result := run(t, "let sum = 0; for (let i = 0; i < 10; i = i + 1) { if (i == 5) { break; } if (i % 2 == 0) { continue; } sum = sum + i; } sum;")
	assert.Equal(t, value.Number(4), result) // 1 + 3
}

func TestFunctionCallsAndRecursion(t *testing.T) {
	fib := `
		function fib(n) {
			if (n < 2) { return n; }
			return fib(n - 1) + fib(n - 2);
		}
		fib(10);
	`
	assert.Equal(t, value.Number(55), run(t, fib))
}

func TestClosureOverGlobals(t *testing.T) {
	result := run(t, `
		let counter = 0;
		function increment() { counter = counter + 1; return counter; }
		increment();
		increment();
		increment();
	`)
	assert.Equal(t, value.Number(3), result)
}

func TestPrefixAndPostfixIncrement(t *testing.T) {
	assert.Equal(t, value.Number(6), run(t, "let x = 5; ++x;"))
	assert.Equal(t, value.Number(5), run(t, "let x = 5; x++;"))
	assert.Equal(t, value.Number(6), run(t, "let x = 5; x++; x;"))
}

func TestCompoundAssignment(t *testing.T) {
	assert.Equal(t, value.Number(15), run(t, "let x = 5; x += 10; x;"))
	assert.Equal(t, value.Number(50), run(t, "let x = 5; x *= 10; x;"))
}

func TestArraysAndBuiltins(t *testing.T) {
	assert.Equal(t, value.Number(3), run(t, "len([1, 2, 3]);"))
	assert.Equal(t, value.Number(5), run(t, "len(\"hello\");"))

	arr, ok := run(t, "push([1, 2], 3);").(*value.Array)
	require.True(t, ok)
	assert.Equal(t, 3, arr.Length())
}

func TestObjectsAndMemberAccess(t *testing.T) {
	result := run(t, `let o = {x: 1, y: 2}; o.x + o["y"];`)
	assert.Equal(t, value.Number(3), result)

	result = run(t, `let o = {x: 1}; o.x = 5; o.x;`)
	assert.Equal(t, value.Number(5), result)
}

func TestTypeofAndDelete(t *testing.T) {
	assert.Equal(t, value.String("number"), run(t, "typeof 1;"))
	assert.Equal(t, value.String("string"), run(t, `typeof "s";`))
	assert.Equal(t, value.String("object"), run(t, "typeof null;"))
	assert.Equal(t, value.String("undefined"), run(t, "typeof undefined;"))

	result := run(t, `let o = {x: 1}; delete o.x; o.x;`)
	assert.Equal(t, value.UndefinedValue, result)
}

func TestRuntimeDiagnostics(t *testing.T) {
	_, diags := runtime.Execute("1 - {};")
	require.NotEmpty(t, diags)
	assert.Equal(t, diag.TypeError, diags[0].Kind)

	_, diags = runtime.Execute("1 / 0;")
	require.NotEmpty(t, diags)
	assert.Equal(t, diag.DivisionByZero, diags[0].Kind)

	_, diags = runtime.Execute("undeclaredName;")
	require.NotEmpty(t, diags)
	assert.Equal(t, diag.ReferenceError, diags[0].Kind)
}

func TestSessionPersistsBindingsAcrossCalls(t *testing.T) {
	session := runtime.NewSession()

	result, diags := session.Execute("let x = 10;")
	require.Empty(t, diags)
	_ = result

	result, diags = session.Execute("x + 5;")
	require.Empty(t, diags)
	assert.Equal(t, value.Number(15), result)

	result, diags = session.Execute("x = x + 1; x;")
	require.Empty(t, diags)
	assert.Equal(t, value.Number(11), result)
}
