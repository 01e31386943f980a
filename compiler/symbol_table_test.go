package compiler

import "testing"

func TestDefineGlobal(t *testing.T) {
	global := NewSymbolTable()

	a := global.Define("a")
	if a.Scope != GlobalScope {
		t.Fatalf("expected GlobalScope, got %s", a.Scope)
	}

	b := global.DefineConst("b")
	if !b.Const {
		t.Fatalf("expected b to be const")
	}
}

func TestDefineResolveLocal(t *testing.T) {
	global := NewSymbolTable()
	global.Define("a")

	fn := NewFunctionSymbolTable(global)
	fn.Define("b")
	fn.Define("c")

	sym, ok := fn.Resolve("b")
	if !ok || sym.Scope != LocalScope || sym.Index != 0 {
		t.Fatalf("expected local b at index 0, got %+v ok=%v", sym, ok)
	}

	sym, ok = fn.Resolve("c")
	if !ok || sym.Index != 1 {
		t.Fatalf("expected local c at index 1, got %+v", sym)
	}

	sym, ok = fn.Resolve("a")
	if !ok || sym.Scope != GlobalScope {
		t.Fatalf("expected a to resolve to global scope, got %+v ok=%v", sym, ok)
	}
}

func TestNestedFunctionDoesNotSeeOuterLocals(t *testing.T) {
	global := NewSymbolTable()
	outer := NewFunctionSymbolTable(global)
	outer.Define("x")

	inner := NewFunctionSymbolTable(outer)
	if _, ok := inner.Resolve("x"); ok {
		t.Fatalf("inner function scope should not see outer function's local x")
	}
}

func TestBlockScopeSharesFunctionSlotCounter(t *testing.T) {
	global := NewSymbolTable()
	fn := NewFunctionSymbolTable(global)
	fn.Define("a")

	block := NewEnclosedSymbolTable(fn)
	mark := block.Mark()
	b := block.Define("b")
	if b.Index != 1 {
		t.Fatalf("expected block-local b at slot 1, got %d", b.Index)
	}
	block.LeaveBlock(mark)

	sibling := NewEnclosedSymbolTable(fn)
	c := sibling.Define("c")
	if c.Index != 1 {
		t.Fatalf("expected sibling block to reuse slot 1, got %d", c.Index)
	}
	if *fn.MaxLocals != 2 {
		t.Fatalf("expected MaxLocals to remain at high-water mark 2, got %d", *fn.MaxLocals)
	}
}

func TestBlockAtRootDefinesGlobals(t *testing.T) {
	global := NewSymbolTable()

	block := NewEnclosedSymbolTable(global)
	mark := block.Mark()
	i := block.Define("i")
	if i.Scope != GlobalScope {
		t.Fatalf("expected a block nested directly under the root to define globals, got %+v", i)
	}
	block.LeaveBlock(mark)
}

func TestDefinedInThisScope(t *testing.T) {
	global := NewSymbolTable()
	global.Define("a")

	if !global.DefinedInThisScope("a") {
		t.Fatalf("expected a to be defined in this scope")
	}
	if global.DefinedInThisScope("b") {
		t.Fatalf("did not expect b to be defined")
	}
}

func TestDefineBuiltin(t *testing.T) {
	global := NewSymbolTable()
	global.DefineBuiltin(0, "print")

	sym, ok := global.Resolve("print")
	if !ok || sym.Scope != BuiltinScope || sym.Index != 0 {
		t.Fatalf("expected builtin print at index 0, got %+v ok=%v", sym, ok)
	}
}
