// Package runtime wires the lexer, parser, compiler, and VM together
// behind the three entry points a driver (the CLI, the REPL, a test)
// actually needs: Tokenize, Parse, and Execute.
package runtime

import (
	"github.com/dr8co/ember/ast"
	"github.com/dr8co/ember/compiler"
	"github.com/dr8co/ember/diag"
	"github.com/dr8co/ember/lexer"
	"github.com/dr8co/ember/parser"
	"github.com/dr8co/ember/token"
	"github.com/dr8co/ember/value"
	"github.com/dr8co/ember/vm"
)

// Tokenize scans source into its full token stream, continuing past
// lexical errors the way the lexer always does, and returns whatever
// diagnostics it accumulated along the way.
func Tokenize(source string) ([]token.Token, []diag.Diagnostic) {
	return lexer.Tokenize(source)
}

// Parse scans and parses source into a syntax tree. A non-empty
// diagnostic slice does not necessarily mean prog is nil: the parser
// resynchronizes after an error and keeps parsing, so prog may still
// be a partial but useful tree.
func Parse(source string) (*ast.Program, []diag.Diagnostic) {
	l := lexer.New(source)
	prog, perrs := parser.ParseProgram(l)
	diags := append(append([]diag.Diagnostic{}, l.Diagnostics...), perrs...)
	return prog, diags
}

// Session is a REPL-friendly, stateful execution context: it carries
// the compiler's symbol table and constant pool, and the VM's global
// store, across successive Execute calls so that a `let x = 1;`
// entered on one line is visible to `x + 1;` entered on the next.
type Session struct {
	symbolTable *compiler.SymbolTable
	constants   []value.Value
	globals     *vm.GlobalsStore
}

// NewSession creates an empty REPL session.
func NewSession() *Session {
	c := compiler.New()
	return &Session{
		symbolTable: c.SymbolTable(),
		constants:   c.Constants(),
		globals:     vm.NewGlobalsStore(),
	}
}

// Execute lexes, parses, compiles, and runs source against one-shot
// state: every call starts from a fresh compiler and VM, with no
// memory of any prior call. Use Session.Execute to retain bindings
// across calls.
func Execute(source string) (value.Value, []diag.Diagnostic) {
	return NewSession().Execute(source)
}

// Execute lexes, parses, compiles, and runs source against s's
// accumulated symbol table, constant pool, and globals, updating them
// in place on success so a later call sees this call's bindings.
func (s *Session) Execute(source string) (value.Value, []diag.Diagnostic) {
	prog, diags := Parse(source)
	if len(diags) != 0 {
		return nil, diags
	}

	c := compiler.NewWithState(s.symbolTable, s.constants)
	fn, d := c.CompileProgram(prog)
	if d != nil {
		return nil, []diag.Diagnostic{*d}
	}

	machine := vm.NewWithGlobalsStore(fn, c.Constants(), s.globals)
	if d := machine.Run(); d != nil {
		return nil, []diag.Diagnostic{*d}
	}

	s.constants = c.Constants()
	return machine.Result(), nil
}
