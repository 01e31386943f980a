// Package compiler lowers an [ast.Program] into the bytecode defined by
// package code: an accumulator-and-stack instruction stream plus a
// deduplicated constant pool, ready for the virtual machine to run.
//
// # Architecture
//
// Compilation is a single recursive walk of the tree. Expressions leave
// their result in the accumulator; a binary operator's left operand is
// pushed to the operand stack first so the right operand can occupy the
// accumulator when the operator instruction executes. Statements never
// emit a pop: the accumulator simply keeps whatever the last statement
// computed, which is what lets a bare top-level return and "falling off
// the end of the program" mean the same thing.
//
// Functions compile in their own [CompilationScope] with their own
// [SymbolTable]; locals are slot-addressed and block scopes share their
// enclosing function's slot counter so sibling blocks can reuse slots.
// Loops push a loopContext so break/continue can find their jump
// targets without threading them through every recursive call.
package compiler

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/dr8co/ember/ast"
	"github.com/dr8co/ember/code"
	"github.com/dr8co/ember/diag"
	"github.com/dr8co/ember/span"
	"github.com/dr8co/ember/value"
)

// Compiler holds all state accumulated while lowering one program: the
// shared constant pool, the current symbol table, and a stack of
// in-progress function scopes.
type Compiler struct {
	constants     []value.Value
	constantIndex *swiss.Map[any, int]

	symbolTable *SymbolTable

	scopes     []CompilationScope
	scopeIndex int

	loops []*loopContext

	currentLine int
	tempCounter int
}

// CompilationScope holds the instruction buffer and bookkeeping for one
// function body (or the top-level program, which occupies scope 0).
type CompilationScope struct {
	instructions code.Instructions

	lastInstruction     EmittedInstruction
	previousInstruction EmittedInstruction

	lines map[int]int

	depth, maxDepth int
}

// EmittedInstruction records an instruction's opcode and its byte
// offset in the current scope, used by peephole checks like "did the
// block just emitted end in a jump".
type EmittedInstruction struct {
	Opcode   code.Opcode
	Position int
}

// loopContext tracks the jump targets a break/continue inside the loop
// body needs. Continue's target is known immediately for a while loop
// (the condition re-check, which sits before the body) but only after
// the body compiles for a for loop (the update clause sits after the
// body); continuePatches carries the deferred case. Break's target
// (just past the loop) is never known until the whole loop has
// compiled, so it is always deferred.
type loopContext struct {
	continueIsBackward bool
	continueTarget     int
	continuePatches    []int
	breakPatches       []int
}

func newCompilationScope() CompilationScope {
	return CompilationScope{instructions: code.Instructions{}, lines: map[int]int{}}
}

// New creates a Compiler with a fresh global symbol table, its builtins
// pre-declared so identifier resolution can tell a builtin reference
// apart from an ordinary undeclared global (even though both currently
// compile to the same load-by-name instruction).
func New() *Compiler {
	st := NewSymbolTable()
	for i, b := range value.Builtins {
		st.DefineBuiltin(i, b.Name)
	}
	return &Compiler{
		constantIndex: swiss.NewMap[any, int](uint32(32)),
		symbolTable:   st,
		scopes:        []CompilationScope{newCompilationScope()},
	}
}

// NewWithState creates a Compiler that continues from a previous
// compile's symbol table and constant pool, the pattern a REPL uses to
// let each line see the declarations of the ones before it.
func NewWithState(s *SymbolTable, constants []value.Value) *Compiler {
	c := &Compiler{
		constants:     constants,
		constantIndex: swiss.NewMap[any, int](uint32(32)),
		symbolTable:   s,
		scopes:        []CompilationScope{newCompilationScope()},
	}
	for i, v := range constants {
		c.constantIndex.Put(value.ConstantKey(v), i)
	}
	return c
}

// CompileProgram compiles a whole program into a top-level code object.
// Per spec.md §4.4, falling off the end of the program and an explicit
// top-level return behave identically, so the compiled body always ends
// with an implicit OpReturnValue over whatever the accumulator holds.
func (c *Compiler) CompileProgram(prog *ast.Program) (*value.CompiledFunction, *diag.Diagnostic) {
	for _, stmt := range prog.Statements {
		if d := c.Compile(stmt); d != nil {
			return nil, d
		}
	}
	c.emit(code.OpReturnValue)
	return c.currentCodeObject(""), nil
}

func (c *Compiler) currentCodeObject(name string) *value.CompiledFunction {
	sc := c.scopes[c.scopeIndex]
	return &value.CompiledFunction{
		Name:          name,
		Instructions:  sc.instructions,
		NumParameters: 0,
		NumLocals:     0,
		MaxStackDepth: sc.maxDepth,
		Lines:         sc.lines,
	}
}

// Constants returns the shared constant pool built up across the whole
// compile, referenced by every code object's OpConstant operands.
func (c *Compiler) Constants() []value.Value { return c.constants }

// SymbolTable returns the compiler's current (global, at top level)
// symbol table, so a REPL can thread declarations across lines via
// NewWithState.
func (c *Compiler) SymbolTable() *SymbolTable { return c.symbolTable }

// ---- the recursive compile ----

// Compile lowers one AST node, emitting instructions into the current
// scope. It returns the first diagnostic encountered, since a compile
// error is fatal for the enclosing unit (spec.md §7) rather than
// accumulated like lexer/parser diagnostics.
func (c *Compiler) Compile(node ast.Node) *diag.Diagnostic {
	if node == nil {
		return nil
	}
	c.currentLine = node.Span().Line

	switch n := node.(type) {
	case *ast.Program:
		for _, s := range n.Statements {
			if d := c.Compile(s); d != nil {
				return d
			}
		}

	case *ast.ExpressionStatement:
		return c.Compile(n.Expression)

	case *ast.BlockStatement:
		return c.compileBlock(n)

	case *ast.LetStatement:
		return c.compileDeclaration(n.Sp, n.Name, n.Value, false)
	case *ast.ConstStatement:
		return c.compileDeclaration(n.Sp, n.Name, n.Value, true)
	case *ast.VarStatement:
		return c.compileVar(n)

	case *ast.ReturnStatement:
		if n.ReturnValue != nil {
			if d := c.Compile(n.ReturnValue); d != nil {
				return d
			}
			c.emit(code.OpReturnValue)
		} else {
			c.emit(code.OpReturnUndefined)
		}

	case *ast.BreakStatement:
		return c.compileBreak(n.Sp)
	case *ast.ContinueStatement:
		return c.compileContinue(n.Sp)

	case *ast.WhileStatement:
		return c.compileWhile(n)
	case *ast.ForStatement:
		return c.compileFor(n)

	case *ast.Identifier:
		c.compileIdentifierLoad(n)

	case *ast.NumberLiteral:
		c.emit(code.OpConstant, c.addConstant(value.Number(n.Value)))
	case *ast.StringLiteral:
		c.emit(code.OpConstant, c.addConstant(value.String(n.Value)))
	case *ast.BooleanLiteral:
		if n.Value {
			c.emit(code.OpConstant, c.addConstant(value.True))
		} else {
			c.emit(code.OpConstant, c.addConstant(value.False))
		}
	case *ast.NullLiteral:
		c.emit(code.OpConstant, c.addConstant(value.NullValue))
	case *ast.UndefinedLiteral:
		c.emit(code.OpConstant, c.addConstant(value.UndefinedValue))

	case *ast.ThisExpression:
		if c.scopeIndex > 0 {
			c.emit(code.OpLoadLocal, 0)
		} else {
			c.emit(code.OpConstant, c.addConstant(value.UndefinedValue))
		}

	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			if d := c.Compile(el); d != nil {
				return d
			}
			c.emit(code.OpPush)
		}
		c.emit(code.OpCreateArray, len(n.Elements))

	case *ast.ObjectLiteral:
		return c.compileObjectLiteral(n)

	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral(n)

	case *ast.PrefixExpression:
		return c.compilePrefix(n)
	case *ast.PostfixExpression:
		return c.compilePostfix(n)

	case *ast.InfixExpression:
		if d := c.Compile(n.Left); d != nil {
			return d
		}
		c.emit(code.OpPush)
		if d := c.Compile(n.Right); d != nil {
			return d
		}
		return c.emitBinaryOp(n.Sp, n.Operator)

	case *ast.LogicalExpression:
		return c.compileLogical(n)

	case *ast.ConditionalExpression:
		return c.compileConditional(n)

	case *ast.AssignmentExpression:
		return c.compileAssignment(n)

	case *ast.MemberExpression:
		return c.compileMemberLoad(n)

	case *ast.CallExpression:
		return c.compileCall(n)

	case *ast.IfExpression:
		return c.compileIf(n)

	default:
		return diag.New(diag.Compile, diag.ExpectedGot, node.Span(), "compiler: unhandled node type %T", node)
	}
	return nil
}

func (c *Compiler) compileBlock(n *ast.BlockStatement) *diag.Diagnostic {
	mark := c.symbolTable.Mark()
	outer := c.symbolTable
	c.symbolTable = NewEnclosedSymbolTable(outer)
	for _, s := range n.Statements {
		if d := c.Compile(s); d != nil {
			c.symbolTable = outer
			return d
		}
	}
	c.symbolTable.LeaveBlock(mark)
	c.symbolTable = outer
	return nil
}

func (c *Compiler) compileDeclaration(sp span.Span, name *ast.Identifier, val ast.Expression, isConst bool) *diag.Diagnostic {
	if c.symbolTable.DefinedInThisScope(name.Value) {
		return diag.New(diag.Compile, diag.DuplicateBinding, sp, "%q is already declared in this scope", name.Value)
	}
	if d := c.Compile(val); d != nil {
		return d
	}
	var sym Symbol
	if isConst {
		sym = c.symbolTable.DefineConst(name.Value)
	} else {
		sym = c.symbolTable.Define(name.Value)
	}
	return c.storeSymbol(sp, sym)
}

// compileVar hoists the binding to the nearest enclosing function scope
// (or the global scope, at top level), per spec.md's var-hoisting
// semantics, rather than the immediate block.
func (c *Compiler) compileVar(n *ast.VarStatement) *diag.Diagnostic {
	if d := c.Compile(n.Value); d != nil {
		return d
	}
	target := c.hoistTable()
	sym, existed := target.store[n.Name.Value]
	if !existed {
		sym = target.Define(n.Name.Value)
	}
	return c.storeSymbol(n.Sp, sym)
}

func (c *Compiler) hoistTable() *SymbolTable {
	t := c.symbolTable
	for !t.isFunction && t.Outer != nil {
		t = t.Outer
	}
	return t
}

func (c *Compiler) compileBreak(sp span.Span) *diag.Diagnostic {
	if len(c.loops) == 0 {
		return diag.New(diag.Compile, diag.BreakOutsideLoop, sp, "break outside of a loop")
	}
	loop := c.loops[len(c.loops)-1]
	pos := c.emit(code.OpJump, 0)
	loop.breakPatches = append(loop.breakPatches, pos)
	return nil
}

func (c *Compiler) compileContinue(sp span.Span) *diag.Diagnostic {
	if len(c.loops) == 0 {
		return diag.New(diag.Compile, diag.ContinueOutsideLoop, sp, "continue outside of a loop")
	}
	loop := c.loops[len(c.loops)-1]
	pos := c.emit(code.OpJump, 0)
	if loop.continueIsBackward {
		c.patchJump(pos, loop.continueTarget)
	} else {
		loop.continuePatches = append(loop.continuePatches, pos)
	}
	return nil
}

func (c *Compiler) compileWhile(n *ast.WhileStatement) *diag.Diagnostic {
	headPos := len(c.currentInstructions())
	if d := c.Compile(n.Condition); d != nil {
		return d
	}
	jumpFalse := c.emit(code.OpJumpIfFalse, 0)

	loop := &loopContext{continueIsBackward: true, continueTarget: headPos}
	c.loops = append(c.loops, loop)
	d := c.Compile(n.Body)
	c.loops = c.loops[:len(c.loops)-1]
	if d != nil {
		return d
	}

	backPos := c.emit(code.OpJump, 0)
	c.patchJump(backPos, headPos)
	end := len(c.currentInstructions())
	c.patchJump(jumpFalse, end)
	for _, p := range loop.breakPatches {
		c.patchJump(p, end)
	}
	return nil
}

func (c *Compiler) compileFor(n *ast.ForStatement) *diag.Diagnostic {
	mark := c.symbolTable.Mark()
	outer := c.symbolTable
	c.symbolTable = NewEnclosedSymbolTable(outer)
	defer func() {
		c.symbolTable.LeaveBlock(mark)
		c.symbolTable = outer
	}()

	if d := c.Compile(n.Init); d != nil {
		return d
	}

	headPos := len(c.currentInstructions())
	jumpFalse := -1
	if n.Condition != nil {
		if d := c.Compile(n.Condition); d != nil {
			return d
		}
		jumpFalse = c.emit(code.OpJumpIfFalse, 0)
	}

	loop := &loopContext{}
	c.loops = append(c.loops, loop)
	d := c.Compile(n.Body)
	c.loops = c.loops[:len(c.loops)-1]
	if d != nil {
		return d
	}

	contPos := len(c.currentInstructions())
	for _, p := range loop.continuePatches {
		c.patchJump(p, contPos)
	}
	if n.Update != nil {
		if d := c.Compile(n.Update); d != nil {
			return d
		}
	}
	backPos := c.emit(code.OpJump, 0)
	c.patchJump(backPos, headPos)

	end := len(c.currentInstructions())
	if jumpFalse >= 0 {
		c.patchJump(jumpFalse, end)
	}
	for _, p := range loop.breakPatches {
		c.patchJump(p, end)
	}
	return nil
}

func (c *Compiler) compileIf(n *ast.IfExpression) *diag.Diagnostic {
	if d := c.Compile(n.Condition); d != nil {
		return d
	}
	jumpFalse := c.emit(code.OpJumpIfFalse, 0)
	if d := c.Compile(n.Consequence); d != nil {
		return d
	}
	jumpEnd := c.emit(code.OpJump, 0)
	elseStart := len(c.currentInstructions())
	c.patchJump(jumpFalse, elseStart)

	if n.Alternative == nil {
		c.emit(code.OpConstant, c.addConstant(value.UndefinedValue))
	} else if d := c.Compile(n.Alternative); d != nil {
		return d
	}
	end := len(c.currentInstructions())
	c.patchJump(jumpEnd, end)
	return nil
}

func (c *Compiler) compileConditional(n *ast.ConditionalExpression) *diag.Diagnostic {
	if d := c.Compile(n.Condition); d != nil {
		return d
	}
	jumpFalse := c.emit(code.OpJumpIfFalse, 0)
	if d := c.Compile(n.Consequent); d != nil {
		return d
	}
	jumpEnd := c.emit(code.OpJump, 0)
	altStart := len(c.currentInstructions())
	c.patchJump(jumpFalse, altStart)
	if d := c.Compile(n.Alternative); d != nil {
		return d
	}
	end := len(c.currentInstructions())
	c.patchJump(jumpEnd, end)
	return nil
}

func (c *Compiler) compileLogical(n *ast.LogicalExpression) *diag.Diagnostic {
	if d := c.Compile(n.Left); d != nil {
		return d
	}
	switch n.Operator {
	case "&&":
		jumpPos := c.emit(code.OpJumpIfFalse, 0)
		if d := c.Compile(n.Right); d != nil {
			return d
		}
		c.patchJump(jumpPos, len(c.currentInstructions()))
	case "||":
		jumpPos := c.emit(code.OpJumpIfTrue, 0)
		if d := c.Compile(n.Right); d != nil {
			return d
		}
		c.patchJump(jumpPos, len(c.currentInstructions()))
	case "??":
		nullishJump := c.emit(code.OpJumpIfNullish, 0)
		skipJump := c.emit(code.OpJump, 0)
		c.patchJump(nullishJump, len(c.currentInstructions()))
		if d := c.Compile(n.Right); d != nil {
			return d
		}
		c.patchJump(skipJump, len(c.currentInstructions()))
	default:
		return diag.New(diag.Compile, diag.ExpectedGot, n.Sp, "unknown logical operator %q", n.Operator)
	}
	return nil
}

// ---- member load/store ----

// compileMemberLoad reads a member expression's value into the
// accumulator: the object is computed directly into acc for a named
// (dot) access (OpLoadNamed wants it there), or pushed so the key can
// occupy acc for a computed (bracket) access (OpLoadKeyed).
func (c *Compiler) compileMemberLoad(n *ast.MemberExpression) *diag.Diagnostic {
	if d := c.Compile(n.Object); d != nil {
		return d
	}
	if n.Computed {
		c.emit(code.OpPush)
		if d := c.Compile(n.Property); d != nil {
			return d
		}
		c.emit(code.OpLoadKeyed)
		return nil
	}
	idx := c.nameConstant(n.Property.(*ast.Identifier).Value)
	c.emit(code.OpLoadNamed, idx)
	return nil
}

// compileMemberAddress pushes the object (and, for a computed access,
// the key) the eventual OpStoreNamed/OpStoreKeyed will pop, leaving the
// value to store the only thing left to compile before the store
// instruction.
func (c *Compiler) compileMemberAddress(n *ast.MemberExpression) (named bool, idx int, d *diag.Diagnostic) {
	if d = c.Compile(n.Object); d != nil {
		return
	}
	c.emit(code.OpPush)
	if n.Computed {
		if d = c.Compile(n.Property); d != nil {
			return
		}
		c.emit(code.OpPush)
		return false, 0, nil
	}
	return true, c.nameConstant(n.Property.(*ast.Identifier).Value), nil
}

func (c *Compiler) finishMemberStore(named bool, idx int) {
	if named {
		c.emit(code.OpStoreNamed, idx)
	} else {
		c.emit(code.OpStoreKeyed)
	}
}

// ---- assignment ----

func (c *Compiler) compileAssignment(n *ast.AssignmentExpression) *diag.Diagnostic {
	if n.Operator == "=" {
		return c.compileSimpleAssign(n.Target, n.Value)
	}
	op, ok := compoundBinaryOp[n.Operator]
	if !ok {
		return diag.New(diag.Compile, diag.ExpectedGot, n.Sp, "unknown assignment operator %q", n.Operator)
	}
	return c.compileCompoundAssign(n.Sp, n.Target, op, n.Value)
}

var compoundBinaryOp = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%", "**=": "**",
	"<<=": "<<", ">>=": ">>", ">>>=": ">>>",
	"&=": "&", "|=": "|", "^=": "^",
	"&&=": "&&", "||=": "||", "??=": "??",
}

func (c *Compiler) compileSimpleAssign(target, val ast.Expression) *diag.Diagnostic {
	switch t := target.(type) {
	case *ast.Identifier:
		if d := c.Compile(val); d != nil {
			return d
		}
		sym, ok := c.symbolTable.Resolve(t.Value)
		if !ok {
			sym = Symbol{Name: t.Value, Scope: GlobalScope}
		}
		return c.storeSymbol(t.Sp, sym)
	case *ast.MemberExpression:
		named, idx, d := c.compileMemberAddress(t)
		if d != nil {
			return d
		}
		if d := c.Compile(val); d != nil {
			return d
		}
		c.finishMemberStore(named, idx)
		return nil
	default:
		return diag.New(diag.Compile, diag.ExpectedGot, target.Span(), "invalid assignment target")
	}
}

// compileCompoundAssign handles `target op= value`. For a member
// target, the object (and key) sub-expressions are evaluated twice
// (once to read the current value, once to address the store); this
// can double any side effects they carry, a simplification documented
// in DESIGN.md.
func (c *Compiler) compileCompoundAssign(sp span.Span, target ast.Expression, binOp string, val ast.Expression) *diag.Diagnostic {
	isLogical := binOp == "&&" || binOp == "||" || binOp == "??"
	switch t := target.(type) {
	case *ast.Identifier:
		sym, ok := c.symbolTable.Resolve(t.Value)
		if !ok {
			sym = Symbol{Name: t.Value, Scope: GlobalScope}
		}
		c.loadSymbol(sym)
		if isLogical {
			if d := c.compileLogicalOver(sp, binOp, val); d != nil {
				return d
			}
		} else {
			c.emit(code.OpPush)
			if d := c.Compile(val); d != nil {
				return d
			}
			if d := c.emitBinaryOp(sp, binOp); d != nil {
				return d
			}
		}
		return c.storeSymbol(sp, sym)
	case *ast.MemberExpression:
		named, idx, d := c.compileMemberAddress(t)
		if d != nil {
			return d
		}
		if d := c.compileMemberLoad(t); d != nil {
			return d
		}
		if isLogical {
			if d := c.compileLogicalOver(sp, binOp, val); d != nil {
				return d
			}
		} else {
			c.emit(code.OpPush)
			if d := c.Compile(val); d != nil {
				return d
			}
			if d := c.emitBinaryOp(sp, binOp); d != nil {
				return d
			}
		}
		c.finishMemberStore(named, idx)
		return nil
	default:
		return diag.New(diag.Compile, diag.ExpectedGot, target.Span(), "invalid assignment target")
	}
}

// compileLogicalOver applies a short-circuit logical operator where the
// left operand is already sitting in the accumulator (used by `&&=`,
// `||=`, `??=`).
func (c *Compiler) compileLogicalOver(sp span.Span, op string, right ast.Expression) *diag.Diagnostic {
	switch op {
	case "&&":
		jumpPos := c.emit(code.OpJumpIfFalse, 0)
		if d := c.Compile(right); d != nil {
			return d
		}
		c.patchJump(jumpPos, len(c.currentInstructions()))
	case "||":
		jumpPos := c.emit(code.OpJumpIfTrue, 0)
		if d := c.Compile(right); d != nil {
			return d
		}
		c.patchJump(jumpPos, len(c.currentInstructions()))
	case "??":
		nullishJump := c.emit(code.OpJumpIfNullish, 0)
		skipJump := c.emit(code.OpJump, 0)
		c.patchJump(nullishJump, len(c.currentInstructions()))
		if d := c.Compile(right); d != nil {
			return d
		}
		c.patchJump(skipJump, len(c.currentInstructions()))
	default:
		return diag.New(diag.Compile, diag.ExpectedGot, sp, "unknown logical operator %q", op)
	}
	return nil
}

// ---- increment/decrement ----

func (c *Compiler) compilePrefix(n *ast.PrefixExpression) *diag.Diagnostic {
	switch n.Operator {
	case "++", "--":
		return c.compileUpdate(n.Sp, n.Right, n.Operator == "++", true)
	case "typeof":
		c.emitBuiltinCall("typeof", n.Right)
		return nil
	case "void":
		if d := c.Compile(n.Right); d != nil {
			return d
		}
		c.emit(code.OpConstant, c.addConstant(value.UndefinedValue))
		return nil
	case "delete":
		return c.compileDelete(n.Right)
	}
	if d := c.Compile(n.Right); d != nil {
		return d
	}
	switch n.Operator {
	case "-":
		c.emit(code.OpNeg)
	case "+":
		c.emit(code.OpUnaryPlus)
	case "!":
		c.emit(code.OpLogicalNot)
	case "~":
		c.emit(code.OpBitNot)
	default:
		return diag.New(diag.Compile, diag.ExpectedGot, n.Sp, "unknown prefix operator %q", n.Operator)
	}
	return nil
}

func (c *Compiler) compilePostfix(n *ast.PostfixExpression) *diag.Diagnostic {
	return c.compileUpdate(n.Sp, n.Left, n.Operator == "++", false)
}

// compileUpdate lowers `++`/`--`, prefix or postfix. A local identifier
// uses the dedicated single-instruction fast path (OpIncLocal /
// OpDecLocal); everything else (globals, members) desugars to an
// explicit load/add/store sequence.
func (c *Compiler) compileUpdate(sp span.Span, target ast.Expression, isIncr, prefix bool) *diag.Diagnostic {
	if ident, ok := target.(*ast.Identifier); ok {
		if sym, ok := c.symbolTable.Resolve(ident.Value); ok && sym.Scope == LocalScope {
			if sym.Const {
				return diag.New(diag.Compile, diag.AssignToConst, sp, "cannot assign to const binding %q", sym.Name)
			}
			flag := 0
			if prefix {
				flag = 1
			}
			if isIncr {
				c.emit(code.OpIncLocal, sym.Index, flag)
			} else {
				c.emit(code.OpDecLocal, sym.Index, flag)
			}
			return nil
		}
	}

	op := "+"
	if !isIncr {
		op = "-"
	}
	one := func() { c.emit(code.OpConstant, c.addConstant(value.Number(1))) }

	switch t := target.(type) {
	case *ast.Identifier:
		sym, ok := c.symbolTable.Resolve(t.Value)
		if !ok {
			sym = Symbol{Name: t.Value, Scope: GlobalScope}
		}
		if !prefix {
			c.loadSymbol(sym)
			c.emit(code.OpPush)
		}
		c.loadSymbol(sym)
		c.emit(code.OpPush)
		one()
		c.emit(binaryOpcode(op))
		if d := c.storeSymbol(sp, sym); d != nil {
			return d
		}
		if !prefix {
			c.emit(code.OpPopToAcc)
		}
		return nil
	case *ast.MemberExpression:
		if !prefix {
			if d := c.compileMemberLoad(t); d != nil {
				return d
			}
			c.emit(code.OpPush)
		}
		named, idx, d := c.compileMemberAddress(t)
		if d != nil {
			return d
		}
		if d := c.compileMemberLoad(t); d != nil {
			return d
		}
		c.emit(code.OpPush)
		one()
		c.emit(binaryOpcode(op))
		c.finishMemberStore(named, idx)
		if !prefix {
			c.emit(code.OpPopToAcc)
		}
		return nil
	default:
		return diag.New(diag.Compile, diag.ExpectedGot, target.Span(), "invalid increment/decrement target")
	}
}

func (c *Compiler) compileDelete(target ast.Expression) *diag.Diagnostic {
	me, ok := target.(*ast.MemberExpression)
	if !ok {
		c.emit(code.OpConstant, c.addConstant(value.True))
		return nil
	}
	var key ast.Expression
	if me.Computed {
		key = me.Property
	} else {
		ident := me.Property.(*ast.Identifier)
		key = &ast.StringLiteral{Sp: ident.Sp, Value: ident.Value}
	}
	c.emitBuiltinCall("delete", me.Object, key)
	return nil
}

// ---- calls ----

func (c *Compiler) compileCall(n *ast.CallExpression) *diag.Diagnostic {
	if me, ok := n.Callee.(*ast.MemberExpression); ok {
		if d := c.compileMemberLoad(me); d != nil {
			return d
		}
		c.emit(code.OpPush)
		if d := c.Compile(me.Object); d != nil {
			return d
		}
		c.emit(code.OpPush)
	} else {
		if d := c.Compile(n.Callee); d != nil {
			return d
		}
		c.emit(code.OpPush)
		c.emit(code.OpConstant, c.addConstant(value.UndefinedValue))
		c.emit(code.OpPush)
	}
	for _, arg := range n.Arguments {
		if d := c.Compile(arg); d != nil {
			return d
		}
		c.emit(code.OpPush)
	}
	c.emit(code.OpCall, len(n.Arguments))
	return nil
}

// emitBuiltinCall invokes a registered builtin by name using the same
// calling convention ordinary calls use (push callee, push `this` as
// undefined, push arguments), the mechanism `typeof` and member
// `delete` lower through since the instruction set has no dedicated
// opcode for either of them.
func (c *Compiler) emitBuiltinCall(name string, argExprs ...ast.Expression) *diag.Diagnostic {
	idx := c.nameConstant(name)
	c.emit(code.OpLoadGlobal, idx)
	c.emit(code.OpPush)
	c.emit(code.OpConstant, c.addConstant(value.UndefinedValue))
	c.emit(code.OpPush)
	for _, a := range argExprs {
		if d := c.Compile(a); d != nil {
			return d
		}
		c.emit(code.OpPush)
	}
	c.emit(code.OpCall, len(argExprs))
	return nil
}

// ---- object/array/function literals ----

func (c *Compiler) compileObjectLiteral(n *ast.ObjectLiteral) *diag.Diagnostic {
	c.emit(code.OpCreateObject)
	tmp := c.defineTemp()
	if d := c.storeSymbol(n.Sp, tmp); d != nil {
		return d
	}
	for _, prop := range n.Properties {
		c.loadSymbol(tmp)
		c.emit(code.OpPush)
		var keyName string
		switch k := prop.Key.(type) {
		case *ast.Identifier:
			keyName = k.Value
		case *ast.StringLiteral:
			keyName = k.Value
		}
		idx := c.nameConstant(keyName)
		if d := c.Compile(prop.Value); d != nil {
			return d
		}
		c.emit(code.OpStoreNamed, idx)
	}
	c.loadSymbol(tmp)
	return nil
}

// defineTemp allocates a hidden binding to hold an object literal's
// result while its properties are populated. The name is prefixed
// with a digit, which no identifier the lexer produces can start
// with, so it can never collide with a user-declared name.
func (c *Compiler) defineTemp() Symbol {
	name := fmt.Sprintf("0tmp%d", c.tempCounter)
	c.tempCounter++
	return c.symbolTable.Define(name)
}

func (c *Compiler) compileFunctionLiteral(n *ast.FunctionLiteral) *diag.Diagnostic {
	var selfSym Symbol
	hasSelf := n.Name != nil
	if hasSelf {
		selfSym = c.symbolTable.Define(n.Name.Value)
	}

	c.enterScope()
	c.symbolTable.Define("this")
	for _, p := range n.Parameters {
		c.symbolTable.Define(p.Value)
	}
	// A loop's break/continue never reaches through a nested function
	// body, so function scopes start with no enclosing loop in scope.
	outerLoops := c.loops
	c.loops = nil
	if d := c.Compile(n.Body); d != nil {
		c.loops = outerLoops
		c.leaveScope()
		return d
	}
	c.loops = outerLoops
	if !c.lastInstructionIs(code.OpReturnValue) && !c.lastInstructionIs(code.OpReturnUndefined) {
		c.emit(code.OpReturnValue)
	}
	sc, numLocals := c.leaveScope()

	fn := &value.CompiledFunction{
		Name:          functionName(n.Name),
		Instructions:  sc.instructions,
		NumParameters: len(n.Parameters),
		NumLocals:     numLocals,
		MaxStackDepth: sc.maxDepth,
		Lines:         sc.lines,
	}
	c.emit(code.OpCreateClosure, c.addConstant(fn))
	if hasSelf {
		return c.storeSymbol(n.Sp, selfSym)
	}
	return nil
}

func functionName(ident *ast.Identifier) string {
	if ident == nil {
		return ""
	}
	return ident.Value
}

func (c *Compiler) enterScope() {
	c.scopes = append(c.scopes, newCompilationScope())
	c.scopeIndex++
	c.symbolTable = NewFunctionSymbolTable(c.symbolTable)
}

func (c *Compiler) leaveScope() (CompilationScope, int) {
	sc := c.scopes[c.scopeIndex]
	numLocals := *c.symbolTable.MaxLocals
	c.scopes = c.scopes[:len(c.scopes)-1]
	c.scopeIndex--
	c.symbolTable = c.symbolTable.Outer
	return sc, numLocals
}

// ---- identifiers ----

func (c *Compiler) compileIdentifierLoad(ident *ast.Identifier) {
	sym, ok := c.symbolTable.Resolve(ident.Value)
	if ok {
		c.loadSymbol(sym)
		return
	}
	idx := c.nameConstant(ident.Value)
	c.emit(code.OpLoadGlobal, idx)
}

func (c *Compiler) loadSymbol(sym Symbol) {
	switch sym.Scope {
	case LocalScope:
		c.emit(code.OpLoadLocal, sym.Index)
	default: // GlobalScope, BuiltinScope: both live in the VM's global table by name.
		idx := c.nameConstant(sym.Name)
		c.emit(code.OpLoadGlobal, idx)
	}
}

func (c *Compiler) storeSymbol(sp span.Span, sym Symbol) *diag.Diagnostic {
	if sym.Const {
		return diag.New(diag.Compile, diag.AssignToConst, sp, "cannot assign to const binding %q", sym.Name)
	}
	switch sym.Scope {
	case LocalScope:
		c.emit(code.OpStoreLocal, sym.Index)
	default:
		idx := c.nameConstant(sym.Name)
		c.emit(code.OpStoreGlobal, idx)
	}
	return nil
}

// ---- binary operators ----

var binaryOpcodes = map[string]code.Opcode{
	"+": code.OpAdd, "-": code.OpSub, "*": code.OpMul, "/": code.OpDiv, "%": code.OpMod, "**": code.OpPow,
	"==": code.OpEq, "!=": code.OpNotEq, "===": code.OpStrictEq, "!==": code.OpStrictNotEq,
	"<": code.OpLess, ">": code.OpGreater, "<=": code.OpLessEq, ">=": code.OpGreaterEq,
	"&": code.OpBitAnd, "|": code.OpBitOr, "^": code.OpBitXor,
	"<<": code.OpShl, ">>": code.OpShr, ">>>": code.OpUShr,
}

func binaryOpcode(op string) code.Opcode { return binaryOpcodes[op] }

func (c *Compiler) emitBinaryOp(sp span.Span, op string) *diag.Diagnostic {
	opcode, ok := binaryOpcodes[op]
	if !ok {
		return diag.New(diag.Compile, diag.ExpectedGot, sp, "unknown binary operator %q", op)
	}
	c.emit(opcode)
	return nil
}

// ---- constant pool ----

func (c *Compiler) addConstant(v value.Value) int {
	key := value.ConstantKey(v)
	if idx, ok := c.constantIndex.Get(key); ok {
		return idx
	}
	idx := len(c.constants)
	c.constants = append(c.constants, v)
	c.constantIndex.Put(key, idx)
	return idx
}

func (c *Compiler) nameConstant(name string) int {
	return c.addConstant(value.String(name))
}

// ---- instruction emission ----

func (c *Compiler) currentInstructions() code.Instructions {
	return c.scopes[c.scopeIndex].instructions
}

func isJumpOp(op code.Opcode) bool {
	switch op {
	case code.OpJump, code.OpJumpIfFalse, code.OpJumpIfTrue, code.OpJumpIfNullish:
		return true
	default:
		return false
	}
}

// stackEffect returns the net change an instruction makes to the
// explicit operand stack (not counting the accumulator), used to track
// each code object's MaxStackDepth.
func stackEffect(op code.Opcode, operands []int) int {
	switch op {
	case code.OpPush:
		return 1
	case code.OpPopToAcc, code.OpStoreNamed, code.OpLoadKeyed:
		return -1
	case code.OpStoreKeyed:
		return -2
	case code.OpCall:
		return -(operands[0] + 2)
	case code.OpCreateArray:
		return -operands[0]
	case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpMod, code.OpPow,
		code.OpEq, code.OpNotEq, code.OpStrictEq, code.OpStrictNotEq,
		code.OpLess, code.OpGreater, code.OpLessEq, code.OpGreaterEq,
		code.OpBitAnd, code.OpBitOr, code.OpBitXor, code.OpShl, code.OpShr, code.OpUShr:
		return -1
	default:
		return 0
	}
}

func (c *Compiler) emit(op code.Opcode, operands ...int) int {
	var ins code.Instructions
	if isJumpOp(op) {
		operand := 0
		if len(operands) > 0 {
			operand = operands[0]
		}
		ins = code.MakeSigned(op, operand)
	} else {
		ins = code.Make(op, operands...)
	}

	pos := len(c.currentInstructions())
	sc := &c.scopes[c.scopeIndex]
	sc.instructions = append(sc.instructions, ins...)
	sc.lines[pos] = c.currentLine

	sc.previousInstruction = sc.lastInstruction
	sc.lastInstruction = EmittedInstruction{Opcode: op, Position: pos}

	sc.depth += stackEffect(op, operands)
	if sc.depth > sc.maxDepth {
		sc.maxDepth = sc.depth
	}
	return pos
}

func (c *Compiler) lastInstructionIs(op code.Opcode) bool {
	sc := c.scopes[c.scopeIndex]
	if len(sc.instructions) == 0 {
		return false
	}
	return sc.lastInstruction.Opcode == op
}

func (c *Compiler) replaceInstruction(pos int, newInstruction code.Instructions) {
	ins := c.currentInstructions()
	copy(ins[pos:], newInstruction)
}

func (c *Compiler) patchJump(pos int, target int) {
	ins := c.currentInstructions()
	op := code.Opcode(ins[pos])
	offset := target - (pos + 3)
	c.replaceInstruction(pos, code.MakeSigned(op, offset))
}
