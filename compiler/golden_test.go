package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dr8co/ember/code"
)

// TestDisassemblyGoldenCorpus compiles each end-to-end scenario source
// through the real lexer/parser/compiler pipeline and checks its
// top-level disassembly against a checked-in golden fixture
// byte-for-byte, per spec.md §8's disassembly-oracle contract.
func TestDisassemblyGoldenCorpus(t *testing.T) {
	tests := []struct {
		golden string
		input  string
	}{
		{
			"while_loop.txt",
			"let n = 5; let r = 1; while (n > 1) { r = r * n; n = n - 1; } r;",
		},
		{
			"recursive_call.txt",
			"function gcd(a,b){ if(b==0){ return a; } return gcd(b, a%b);} gcd(48, 18);",
		},
		{
			"object_member_access.txt",
			`let o = {x:1, y:2}; o.x + o["y"];`,
		},
		{
			"array_for_loop.txt",
			"let a = [3,1,4,1,5,9,2,6]; let s=0; for(let i=0;i<8;i=i+1){ s=s+a[i]; } s;",
		},
		{
			"function_call.txt",
			"let f = function(x){return x*2;}; f(21);",
		},
		{
			"strict_equality.txt",
			"let a=1; let b=2; a===b;",
		},
		{
			"block_shadowing.txt",
			"(function(){ let x=10; { let x=20; } return x; })();",
		},
	}

	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			ins, consts := compileSource(t, tt.input)
			got := code.Disassemble(ins, consts)

			want, err := os.ReadFile(filepath.Join("..", "testdata", "golden", tt.golden))
			if err != nil {
				t.Fatalf("reading golden file: %v", err)
			}
			if got != string(want) {
				t.Fatalf("disassembly for %q does not match %s:\n--- got ---\n%s--- want ---\n%s", tt.input, tt.golden, got, string(want))
			}
		})
	}
}
