// ember compiles a small JavaScript-like language into bytecode and
// runs it in an accumulator/stack virtual machine.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/dr8co/ember/diag"
	"github.com/dr8co/ember/repl"
	"github.com/dr8co/ember/runtime"
)

const version = "0.1.0"

// printUsage displays custom usage information
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `Ember v%s

USAGE:
    %s [OPTIONS]

DESCRIPTION:
    Ember compiles source code into bytecode and runs it in a virtual machine.
    Without any flags, it starts an interactive REPL (Read-Eval-Print-Loop).

OPTIONS:
    -f, --file <path>       Execute a script file
    -e, --eval <code>       Evaluate an expression and print the result
    -d, --debug             Enable debug mode with more verbose output
    -v, --version           Show version information
    -h, --help              Show this help message

EXAMPLES:
    # Start interactive REPL
    %s

    # Execute a script file
    %s -f script.ember
    %s --file script.ember

    # Evaluate an expression
    %s -e "let x = 5; x * 2"
    %s --eval "print(\"Hello, World!\")"

    # Execute with debug mode
    %s -f script.ember -d

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	// Set custom usage function
	flag.Usage = printUsage

	// Define command-line flags
	fileFlag := flag.String("file", "", "Execute a script file")
	evalFlag := flag.String("eval", "", "Evaluate an expression and print the result")
	debugFlag := flag.Bool("debug", false, "Enable debug mode with more verbose output")
	versionFlag := flag.Bool("version", false, "Show version information")

	// Define short flag aliases
	flag.StringVar(fileFlag, "f", "", "Execute a script file")
	flag.StringVar(evalFlag, "e", "", "Evaluate an expression and print the result")
	flag.BoolVar(debugFlag, "d", false, "Enable debug mode with more verbose output")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	// Parse command-line flags
	flag.Parse()

	// Show version information if requested
	if *versionFlag {
		fmt.Printf("Ember v%s\n", version)
		return
	}

	// Execute a file if specified
	if *fileFlag != "" {
		executeFile(*fileFlag, *debugFlag)
		return
	}

	// Evaluate an expression if specified
	if *evalFlag != "" {
		evaluateExpression(*evalFlag)
		return
	}

	// Get current user
	username := "unknown"
	if usr, err := user.Current(); err == nil {
		username = usr.Username
	}

	fmt.Println("Hello", username+",", "welcome to ember!")
	fmt.Println("Feel free to type in some code. (Ctrl+D or Ctrl+C to exit)")

	// Start the REPL
	cfg, err := runtime.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %s\n", err)
		os.Exit(1)
	}
	repl.Start(username, repl.Options{Debug: *debugFlag}, cfg)
}

// executeFile reads and executes a script file
func executeFile(filename string, debug bool) {
	cleaned := filepath.Clean(filename)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		fmt.Printf("Error getting absolute path: %s\n", err)
		os.Exit(1)
	}
	if debug {
		fmt.Printf("Executing file: %s\n", absolute)
	}

	//nolint:gosec // filename comes from a trusted CLI flag, not untrusted user input
	content, err := os.ReadFile(absolute)
	if err != nil {
		fmt.Printf("Error reading file: %s\n", err)
		os.Exit(1)
	}

	result, diags := runtime.Execute(string(content))
	if len(diags) != 0 {
		printDiagnostics(diags)
		os.Exit(1)
	}

	if debug && result != nil {
		fmt.Println(result.String())
	}
}

// evaluateExpression evaluates a single expression
func evaluateExpression(expr string) {
	result, diags := runtime.Execute(expr)
	if len(diags) != 0 {
		printDiagnostics(diags)
		os.Exit(1)
	}

	if result != nil {
		fmt.Println(result.String())
	}
}

// printDiagnostics prints lexical, parse, compile, or runtime
// diagnostics to stderr.
func printDiagnostics(diags []diag.Diagnostic) {
	_, _ = fmt.Fprintln(os.Stderr, "errors:")
	for _, d := range diags {
		_, _ = fmt.Fprintln(os.Stderr, "\t"+d.Error())
	}
}
