package parser

import (
	"fmt"
	"testing"

	"github.com/dr8co/ember/ast"
	"github.com/dr8co/ember/lexer"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	prog, diags := ParseProgram(l)
	if len(diags) != 0 {
		for _, d := range diags {
			t.Errorf("parser error: %s", d.Message)
		}
		t.FailNow()
	}
	return prog
}

func TestLetConstVarStatements(t *testing.T) {
	tests := []struct {
		input string
		name  string
	}{
		{"let x = 5;", "x"},
		{"const y = true;", "y"},
		{"var z = y;", "z"},
	}

	for _, tt := range tests {
		prog := parseProgram(t, tt.input)
		if len(prog.Statements) != 1 {
			t.Fatalf("program.Statements does not contain 1 statement. got=%d", len(prog.Statements))
		}

		var name *ast.Identifier
		switch s := prog.Statements[0].(type) {
		case *ast.LetStatement:
			name = s.Name
		case *ast.ConstStatement:
			name = s.Name
		case *ast.VarStatement:
			name = s.Name
		default:
			t.Fatalf("statement is not a binding statement. got=%T", prog.Statements[0])
		}

		if name.Value != tt.name {
			t.Fatalf("name.Value not %q. got=%q", tt.name, name.Value)
		}
	}
}

func TestReturnBreakContinueStatements(t *testing.T) {
	prog := parseProgram(t, "return 5; return; break; continue;")
	if len(prog.Statements) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(prog.Statements))
	}

	ret, ok := prog.Statements[0].(*ast.ReturnStatement)
	if !ok || ret.ReturnValue == nil {
		t.Fatalf("expected return statement with a value, got %#v", prog.Statements[0])
	}

	bareRet, ok := prog.Statements[1].(*ast.ReturnStatement)
	if !ok || bareRet.ReturnValue != nil {
		t.Fatalf("expected bare return statement, got %#v", prog.Statements[1])
	}

	if _, ok := prog.Statements[2].(*ast.BreakStatement); !ok {
		t.Fatalf("expected break statement, got %#v", prog.Statements[2])
	}
	if _, ok := prog.Statements[3].(*ast.ContinueStatement); !ok {
		t.Fatalf("expected continue statement, got %#v", prog.Statements[3])
	}
}

func TestIdentifierExpression(t *testing.T) {
	prog := parseProgram(t, "foobar;")
	stmt := prog.Statements[0].(*ast.ExpressionStatement)
	ident, ok := stmt.Expression.(*ast.Identifier)
	if !ok {
		t.Fatalf("exp not *ast.Identifier. got=%T", stmt.Expression)
	}
	if ident.Value != "foobar" {
		t.Fatalf("ident.Value not %s. got=%s", "foobar", ident.Value)
	}
}

func TestNumberLiteralExpression(t *testing.T) {
	prog := parseProgram(t, "5; 3.14;")
	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Statements))
	}

	lit := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.NumberLiteral)
	if lit.Value != 5 {
		t.Fatalf("lit.Value not 5, got %v", lit.Value)
	}
	lit2 := prog.Statements[1].(*ast.ExpressionStatement).Expression.(*ast.NumberLiteral)
	if lit2.Value != 3.14 {
		t.Fatalf("lit.Value not 3.14, got %v", lit2.Value)
	}
}

func TestStringLiteralExpression(t *testing.T) {
	prog := parseProgram(t, `"hello world";`)
	lit := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.StringLiteral)
	if lit.Value != "hello world" {
		t.Fatalf("lit.Value not %q, got %q", "hello world", lit.Value)
	}
}

func TestBooleanNullUndefinedThisLiterals(t *testing.T) {
	prog := parseProgram(t, "true; false; null; undefined; this;")
	if len(prog.Statements) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(prog.Statements))
	}

	if b := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.BooleanLiteral); !b.Value {
		t.Fatalf("expected true")
	}
	if b := prog.Statements[1].(*ast.ExpressionStatement).Expression.(*ast.BooleanLiteral); b.Value {
		t.Fatalf("expected false")
	}
	if _, ok := prog.Statements[2].(*ast.ExpressionStatement).Expression.(*ast.NullLiteral); !ok {
		t.Fatalf("expected null literal")
	}
	if _, ok := prog.Statements[3].(*ast.ExpressionStatement).Expression.(*ast.UndefinedLiteral); !ok {
		t.Fatalf("expected undefined literal")
	}
	if _, ok := prog.Statements[4].(*ast.ExpressionStatement).Expression.(*ast.ThisExpression); !ok {
		t.Fatalf("expected this expression")
	}
}

func TestPrefixExpressions(t *testing.T) {
	tests := []struct {
		input    string
		operator string
	}{
		{"!true;", "!"},
		{"-15;", "-"},
		{"typeof x;", "typeof"},
		{"void 0;", "void"},
		{"delete x;", "delete"},
		{"++x;", "++"},
		{"--x;", "--"},
	}

	for _, tt := range tests {
		prog := parseProgram(t, tt.input)
		exp, ok := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.PrefixExpression)
		if !ok {
			t.Fatalf("exp not *ast.PrefixExpression. got=%T", prog.Statements[0].(*ast.ExpressionStatement).Expression)
		}
		if exp.Operator != tt.operator {
			t.Fatalf("exp.Operator is not %q. got=%q", tt.operator, exp.Operator)
		}
	}
}

func TestPostfixExpressions(t *testing.T) {
	tests := []struct {
		input    string
		operator string
	}{
		{"x++;", "++"},
		{"x--;", "--"},
	}

	for _, tt := range tests {
		prog := parseProgram(t, tt.input)
		exp, ok := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.PostfixExpression)
		if !ok {
			t.Fatalf("exp not *ast.PostfixExpression. got=%T", prog.Statements[0].(*ast.ExpressionStatement).Expression)
		}
		if exp.Operator != tt.operator {
			t.Fatalf("exp.Operator is not %q. got=%q", tt.operator, exp.Operator)
		}
	}
}

func TestInfixExpressions(t *testing.T) {
	tests := []struct {
		input    string
		operator string
	}{
		{"5 + 5;", "+"},
		{"5 - 5;", "-"},
		{"5 * 5;", "*"},
		{"5 / 5;", "/"},
		{"5 % 5;", "%"},
		{"5 ** 5;", "**"},
		{"5 > 5;", ">"},
		{"5 < 5;", "<"},
		{"5 >= 5;", ">="},
		{"5 <= 5;", "<="},
		{"5 == 5;", "=="},
		{"5 != 5;", "!="},
		{"5 === 5;", "==="},
		{"5 !== 5;", "!=="},
		{"5 & 5;", "&"},
		{"5 | 5;", "|"},
		{"5 ^ 5;", "^"},
		{"5 << 5;", "<<"},
		{"5 >> 5;", ">>"},
		{"5 >>> 5;", ">>>"},
	}

	for _, tt := range tests {
		prog := parseProgram(t, tt.input)
		exp, ok := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.InfixExpression)
		if !ok {
			t.Fatalf("%q: exp not *ast.InfixExpression. got=%T", tt.input, prog.Statements[0].(*ast.ExpressionStatement).Expression)
		}
		if exp.Operator != tt.operator {
			t.Fatalf("exp.Operator is not %q. got=%q", tt.operator, exp.Operator)
		}
	}
}

func TestLogicalExpressions(t *testing.T) {
	tests := []string{"a && b;", "a || b;", "a ?? b;"}
	for _, input := range tests {
		prog := parseProgram(t, input)
		exp, ok := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.LogicalExpression)
		if !ok {
			t.Fatalf("%q: exp not *ast.LogicalExpression. got=%T", input, prog.Statements[0].(*ast.ExpressionStatement).Expression)
		}
		_ = exp
	}
}

func TestOperatorPrecedenceParsing(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"-a * b", "((-a) * b)"},
		{"!-a", "(!(-a))"},
		{"a + b + c", "((a + b) + c)"},
		{"a + b - c", "((a + b) - c)"},
		{"a * b * c", "((a * b) * c)"},
		{"a * b / c", "((a * b) / c)"},
		{"a + b / c", "(a + (b / c))"},
		{"a + b * c + d / e - f", "(((a + (b * c)) + (d / e)) - f)"},
		{"5 > 4 == 3 < 4", "((5 > 4) == (3 < 4))"},
		{"3 + 4 * 5 == 3 * 1 + 4 * 5", "((3 + (4 * 5)) == ((3 * 1) + (4 * 5)))"},
		{"a ** b ** c", "(a ** (b ** c))"},
		{"1 + (2 + 3) + 4", "((1 + (2 + 3)) + 4)"},
		{"(5 + 5) * 2", "((5 + 5) * 2)"},
		{"a + b * c + f(d * e, f[0])", "((a + (b * c)) + f((d * e), (f[0])))"},
		{"a && b || c", "((a && b) || c)"},
	}

	for _, tt := range tests {
		prog := parseProgram(t, tt.input)
		got := stringify(prog.Statements[0].(*ast.ExpressionStatement).Expression)
		if got != tt.expected {
			t.Errorf("input %q: expected=%q, got=%q", tt.input, tt.expected, got)
		}
	}
}

// stringify renders an expression as a fully-parenthesized string, the
// same device the teacher's AST used (as a String() method) to assert
// on precedence without a separate test-only parser.
func stringify(e ast.Expression) string {
	switch n := e.(type) {
	case *ast.Identifier:
		return n.Value
	case *ast.NumberLiteral:
		return trimFloat(n.Value)
	case *ast.BooleanLiteral:
		return fmt.Sprintf("%t", n.Value)
	case *ast.PrefixExpression:
		return fmt.Sprintf("(%s%s)", n.Operator, stringify(n.Right))
	case *ast.PostfixExpression:
		return fmt.Sprintf("(%s%s)", stringify(n.Left), n.Operator)
	case *ast.InfixExpression:
		return fmt.Sprintf("(%s %s %s)", stringify(n.Left), n.Operator, stringify(n.Right))
	case *ast.LogicalExpression:
		return fmt.Sprintf("(%s %s %s)", stringify(n.Left), n.Operator, stringify(n.Right))
	case *ast.CallExpression:
		args := make([]string, len(n.Arguments))
		for i, a := range n.Arguments {
			args[i] = stringify(a)
		}
		return fmt.Sprintf("%s(%s)", stringify(n.Callee), joinComma(args))
	case *ast.MemberExpression:
		if n.Computed {
			return fmt.Sprintf("(%s[%s])", stringify(n.Object), stringify(n.Property))
		}
		return fmt.Sprintf("%s.%s", stringify(n.Object), stringify(n.Property))
	default:
		return fmt.Sprintf("%v", e)
	}
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func joinComma(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += it
	}
	return out
}

func TestIfExpression(t *testing.T) {
	prog := parseProgram(t, "if (x < y) { x }")
	exp := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.IfExpression)

	if len(exp.Consequence.Statements) != 1 {
		t.Fatalf("consequence is not 1 statement. got=%d", len(exp.Consequence.Statements))
	}
	if exp.Alternative != nil {
		t.Fatalf("exp.Alternative was not nil. got=%+v", exp.Alternative)
	}
}

func TestIfElseExpression(t *testing.T) {
	prog := parseProgram(t, "if (x < y) { x } else { y }")
	exp := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.IfExpression)

	if exp.Alternative == nil {
		t.Fatalf("exp.Alternative was nil")
	}
	alt, ok := exp.Alternative.(*ast.BlockStatement)
	if !ok || len(alt.Statements) != 1 {
		t.Fatalf("alternative is not a 1-statement block. got=%#v", exp.Alternative)
	}
}

func TestIfElseIfChain(t *testing.T) {
	prog := parseProgram(t, "if (a) { 1 } else if (b) { 2 } else { 3 }")
	exp := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.IfExpression)

	altStmt, ok := exp.Alternative.(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("expected else-if to wrap an ExpressionStatement, got %#v", exp.Alternative)
	}
	if _, ok := altStmt.Expression.(*ast.IfExpression); !ok {
		t.Fatalf("expected nested if expression, got %#v", altStmt.Expression)
	}
}

func TestWhileStatement(t *testing.T) {
	prog := parseProgram(t, "while (x < 10) { x = x + 1; }")
	stmt, ok := prog.Statements[0].(*ast.WhileStatement)
	if !ok {
		t.Fatalf("statement is not *ast.WhileStatement. got=%T", prog.Statements[0])
	}
	if _, ok := stmt.Condition.(*ast.InfixExpression); !ok {
		t.Fatalf("condition is not an infix expression. got=%T", stmt.Condition)
	}
}

func TestForStatement(t *testing.T) {
	prog := parseProgram(t, "for (let i = 0; i < 10; i = i + 1) { print(i); }")
	stmt, ok := prog.Statements[0].(*ast.ForStatement)
	if !ok {
		t.Fatalf("statement is not *ast.ForStatement. got=%T", prog.Statements[0])
	}
	if _, ok := stmt.Init.(*ast.LetStatement); !ok {
		t.Fatalf("init is not a let statement. got=%T", stmt.Init)
	}
	if stmt.Condition == nil || stmt.Update == nil {
		t.Fatalf("expected condition and update clauses to be present")
	}
}

func TestForStatementAllClausesOptional(t *testing.T) {
	prog := parseProgram(t, "for (;;) { break; }")
	stmt := prog.Statements[0].(*ast.ForStatement)
	if stmt.Init != nil || stmt.Condition != nil || stmt.Update != nil {
		t.Fatalf("expected all clauses nil, got init=%v cond=%v update=%v", stmt.Init, stmt.Condition, stmt.Update)
	}
}

func TestFunctionLiteralParsing(t *testing.T) {
	prog := parseProgram(t, "function(x, y) { x + y; }")
	fn := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.FunctionLiteral)

	if len(fn.Parameters) != 2 {
		t.Fatalf("function literal parameters wrong. want 2, got=%d", len(fn.Parameters))
	}
	if fn.Parameters[0].Value != "x" || fn.Parameters[1].Value != "y" {
		t.Fatalf("unexpected parameters: %v", fn.Parameters)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("function.Body.Statements has wrong length. got=%d", len(fn.Body.Statements))
	}
}

func TestNamedFunctionLiteral(t *testing.T) {
	prog := parseProgram(t, "function add(x, y) { return x + y; }")
	stmt := prog.Statements[0].(*ast.ExpressionStatement)
	fn := stmt.Expression.(*ast.FunctionLiteral)
	if fn.Name == nil || fn.Name.Value != "add" {
		t.Fatalf("expected named function 'add', got %#v", fn.Name)
	}
}

func TestCallExpressionParsing(t *testing.T) {
	prog := parseProgram(t, "add(1, 2 * 3, 4 + 5);")
	exp := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.CallExpression)

	if ident, ok := exp.Callee.(*ast.Identifier); !ok || ident.Value != "add" {
		t.Fatalf("callee is not identifier 'add'. got=%#v", exp.Callee)
	}
	if len(exp.Arguments) != 3 {
		t.Fatalf("wrong length of arguments. got=%d", len(exp.Arguments))
	}
}

func TestArrayLiteralParsing(t *testing.T) {
	prog := parseProgram(t, "[1, 2 * 2, 3 + 3]")
	arr := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.ArrayLiteral)
	if len(arr.Elements) != 3 {
		t.Fatalf("len(arr.Elements) not 3. got=%d", len(arr.Elements))
	}
}

func TestObjectLiteralParsing(t *testing.T) {
	prog := parseProgram(t, `({"one": 1, "two": 2, "three": 3})`)
	stmt := prog.Statements[0].(*ast.ExpressionStatement)
	obj, ok := stmt.Expression.(*ast.ObjectLiteral)
	if !ok {
		t.Fatalf("exp is not ast.ObjectLiteral. got=%T", stmt.Expression)
	}
	if len(obj.Properties) != 3 {
		t.Fatalf("object literal has wrong number of properties. got=%d", len(obj.Properties))
	}
}

func TestObjectLiteralWithIdentifierKeys(t *testing.T) {
	prog := parseProgram(t, `let o = {x: 1, y: 2};`)
	stmt := prog.Statements[0].(*ast.LetStatement)
	obj, ok := stmt.Value.(*ast.ObjectLiteral)
	if !ok {
		t.Fatalf("value is not ast.ObjectLiteral. got=%T", stmt.Value)
	}
	if len(obj.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(obj.Properties))
	}
	if _, ok := obj.Properties[0].Key.(*ast.Identifier); !ok {
		t.Fatalf("expected identifier key, got %T", obj.Properties[0].Key)
	}
}

func TestMemberExpressionParsing(t *testing.T) {
	prog := parseProgram(t, "a.b; a[0];")
	dot := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.MemberExpression)
	if dot.Computed {
		t.Fatalf("expected dot access to be non-computed")
	}
	idx := prog.Statements[1].(*ast.ExpressionStatement).Expression.(*ast.MemberExpression)
	if !idx.Computed {
		t.Fatalf("expected index access to be computed")
	}
}

func TestAssignmentExpressions(t *testing.T) {
	tests := []string{"x = 1;", "x += 1;", "x -= 1;", "x *= 1;", "x /= 1;", "x %= 1;", "x **= 1;",
		"x &&= 1;", "x ||= 1;", "x ??= 1;", "x &= 1;", "x |= 1;", "x ^= 1;", "x <<= 1;", "x >>= 1;", "x >>>= 1;"}

	for _, input := range tests {
		prog := parseProgram(t, input)
		exp, ok := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.AssignmentExpression)
		if !ok {
			t.Fatalf("%q: exp not *ast.AssignmentExpression. got=%T", input, prog.Statements[0].(*ast.ExpressionStatement).Expression)
		}
		if _, ok := exp.Target.(*ast.Identifier); !ok {
			t.Fatalf("target is not an identifier. got=%T", exp.Target)
		}
	}
}

func TestConditionalExpressionParsing(t *testing.T) {
	prog := parseProgram(t, "a ? b : c;")
	exp, ok := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.ConditionalExpression)
	if !ok {
		t.Fatalf("exp not *ast.ConditionalExpression. got=%T", prog.Statements[0].(*ast.ExpressionStatement).Expression)
	}
	if _, ok := exp.Condition.(*ast.Identifier); !ok {
		t.Fatalf("condition is not identifier. got=%T", exp.Condition)
	}
}

func TestParserErrorsResync(t *testing.T) {
	l := lexer.New("let = 5; let x = 10;")
	prog, diags := ParseProgram(l)
	if len(diags) == 0 {
		t.Fatalf("expected parse errors for malformed let statement")
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected parsing to resume after the error with 1 statement, got %d", len(prog.Statements))
	}
	if let, ok := prog.Statements[0].(*ast.LetStatement); !ok || let.Name.Value != "x" {
		t.Fatalf("expected the statement after the error to be `let x`, got %#v", prog.Statements[0])
	}
}
