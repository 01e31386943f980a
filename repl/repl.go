// Package repl implements the Read-Eval-Print Loop for ember.
//
// The REPL provides an interactive interface for entering ember code,
// having it evaluated, and seeing the results immediately. It uses the
// Charm libraries (Bubbletea, Bubbles, and Lipgloss) to create a
// modern, user-friendly terminal interface with features like syntax
// highlighting and command history.
//
// Key features:
//   - Interactive command input and execution
//   - Command history tracking
//   - Styled output with different colors for results and errors
//   - Persistent bindings across commands, via a [runtime.Session]
//
// The main entry point is the Start function, which initializes and
// runs the REPL with the given username.
package repl

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dr8co/ember/diag"
	"github.com/dr8co/ember/lexer"
	"github.com/dr8co/ember/runtime"
	"github.com/dr8co/ember/token"
)

const (
	// Prompt is the default prompt for the REPL
	Prompt = ">> "

	// ContPrompt is the continuation prompt used in multiline input mode within the REPL.
	ContPrompt = ".. "
)

// Options contains configuration options for the REPL
type Options struct {
	NoColor bool // Disable syntax highlighting and colored output
	Debug   bool // Enable debug mode with more verbose output
}

// Start initializes and runs the REPL with the given username, options,
// and config. It creates a new bubbletea program with an initial model
// and runs it. If an error occurs while running the program, it is
// printed to the console.
func Start(username string, options Options, cfg runtime.Config) {
	p := tea.NewProgram(initialModel(username, options, cfg))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error running program:", err)
	}
}

// Styling
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	// Error styles
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	lexParseErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF5F87")).
				Bold(true)

	runtimeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF8700")).
				Bold(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	// Syntax highlighting styles
	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF79C6")).
			Bold(true)

	identifierStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F8F8F2"))

	literalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	operatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	delimiterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BD93F9"))

	stringStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))
)

// ErrorType represents the type of error that occurred
type ErrorType int

const (
	// NoError indicates that no error occurred.
	NoError ErrorType = iota

	// LexParseError indicates a lexical or parse-stage diagnostic.
	LexParseError

	// RuntimeErr indicates a compile- or runtime-stage diagnostic.
	RuntimeErr
)

// Custom message for async evaluation
type evalResultMsg struct {
	output    string
	isError   bool
	errorType ErrorType
	elapsed   time.Duration
}

// The model represents the state of the application
type model struct {
	textInput       textinput.Model
	history         []historyEntry
	session         *runtime.Session
	username        string
	evaluating      bool
	currentInput    string
	multilineBuffer string // Buffer for multiline input
	isMultiline     bool   // Flag to indicate if we're in multiline mode
	spinner         spinner.Model
	options         Options
	cfg             runtime.Config
}

// applyStyle applies a lipgloss style to a string, respecting the NoColor option
func (m model) applyStyle(style lipgloss.Style, text string) string {
	if m.options.NoColor {
		return text
	}
	return style.Render(text)
}

// historyEntry represents a single entry in the REPL history
type historyEntry struct {
	input          string
	output         string
	isError        bool
	errorType      ErrorType
	evaluationTime time.Duration // Time taken to evaluate
}

// initialModel creates a new model with default values
func initialModel(username string, options Options, cfg runtime.Config) model {
	ti := textinput.New()
	ti.Placeholder = "Enter code"
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		textInput:       ti,
		history:         make([]historyEntry, 0, cfg.HistorySize),
		session:         runtime.NewSession(),
		username:        username,
		evaluating:      false,
		multilineBuffer: "",
		isMultiline:     false,
		spinner:         s,
		options:         options,
		cfg:             cfg,
	}
}

// Init is the first function that will be called
func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// isBalanced checks if brackets, braces, and parentheses are balanced in the input
func isBalanced(input string) bool {
	var stack []rune

	for _, char := range input {
		switch char {
		case '(', '{', '[':
			stack = append(stack, char)
		case ')':
			if len(stack) == 0 || stack[len(stack)-1] != '(' {
				return false
			}
			stack = stack[:len(stack)-1]
		case '}':
			if len(stack) == 0 || stack[len(stack)-1] != '{' {
				return false
			}
			stack = stack[:len(stack)-1]
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}

	return len(stack) == 0
}

// diagnosticErrorType reports whether diags (all from the same
// runtime.Session.Execute call) should be rendered as a lex/parse
// error or a compile/runtime error.
func diagnosticErrorType(diags []diag.Diagnostic) ErrorType {
	if len(diags) == 0 {
		return NoError
	}
	switch diags[0].Stage {
	case diag.Lexical, diag.Parse:
		return LexParseError
	default:
		return RuntimeErr
	}
}

func formatDiagnostics(diags []diag.Diagnostic) string {
	var s strings.Builder
	if len(diags) == 1 {
		s.WriteString(diags[0].Error())
	} else {
		for i, d := range diags {
			if i > 0 {
				s.WriteString("\n")
			}
			s.WriteString(d.Error())
		}
	}
	return s.String()
}

// evalCmd is a command that evaluates ember code asynchronously
// against session.
func evalCmd(input string, session *runtime.Session, debug bool) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()

		result, diags := session.Execute(input)

		var output string
		isError := false
		errorType := NoError

		if len(diags) != 0 {
			isError = true
			errorType = diagnosticErrorType(diags)
			output = formatDiagnostics(diags)
		} else if result != nil {
			output = result.String()
		} else {
			output = "undefined"
		}

		elapsed := time.Since(start)
		if debug {
			fmt.Printf("DEBUG: execution time: %v\n", elapsed)
		}

		return evalResultMsg{
			output:    output,
			isError:   isError,
			errorType: errorType,
			elapsed:   elapsed,
		}
	}
}

// formatError writes entry's output to s, styled with errorStyle.
func (m model) formatError(errorStyle lipgloss.Style, entry *historyEntry, s *strings.Builder) {
	if m.options.NoColor {
		s.WriteString(entry.output)
	} else {
		s.WriteString(errorStyle.Render(entry.output))
	}
}

// Update handles all the updates to our model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.evaluating {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case evalResultMsg:
		// Evaluation completed
		m.evaluating = false

		// Add to history, bounded by HistorySize
		m.history = append(m.history, historyEntry{
			input:          m.currentInput,
			output:         msg.output,
			isError:        msg.isError,
			errorType:      msg.errorType,
			evaluationTime: msg.elapsed,
		})
		if m.cfg.HistorySize > 0 && len(m.history) > m.cfg.HistorySize {
			m.history = m.history[len(m.history)-m.cfg.HistorySize:]
		}

		m.currentInput = ""
		return m, nil

	case tea.KeyMsg:
		// If we're evaluating, ignore key presses except for Ctrl+C
		if m.evaluating && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			input := m.textInput.Value()
			if input == "" {
				// If we're in multiline mode and the user enters an empty line, evaluate the buffer
				if m.isMultiline {
					if m.multilineBuffer == "" {
						m.isMultiline = false
						return m, nil
					}

					m.evaluating = true
					m.currentInput = m.multilineBuffer
					m.textInput.SetValue("")
					m.isMultiline = false

					buffer := m.multilineBuffer
					m.multilineBuffer = ""

					return m, evalCmd(buffer, m.session, m.options.Debug)
				}
				return m, nil
			}

			// If we're in multiline mode, append the input to the buffer
			if m.isMultiline {
				m.multilineBuffer += "\n" + input
				m.textInput.SetValue("")

				if isBalanced(m.multilineBuffer) {
					m.evaluating = true
					m.currentInput = m.multilineBuffer
					m.isMultiline = false

					buffer := m.multilineBuffer
					m.multilineBuffer = ""

					return m, evalCmd(buffer, m.session, m.options.Debug)
				}

				return m, nil
			}

			// Check if the input has balanced brackets
			if !isBalanced(input) {
				m.isMultiline = true
				m.multilineBuffer = input
				m.textInput.SetValue("")
				return m, nil
			}

			m.evaluating = true
			m.currentInput = input
			m.textInput.SetValue("")

			return m, evalCmd(input, m.session, m.options.Debug)
		}
	}

	// Only update the text input if we're not evaluating
	if !m.evaluating {
		m.textInput, cmd = m.textInput.Update(msg)
	}

	// Ensure the spinner keeps ticking while evaluating
	if m.evaluating {
		return m, m.spinner.Tick
	}

	return m, cmd
}

// View renders the current UI
func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, " Ember REPL "))
	s.WriteString("\n")

	if m.username != "" {
		s.WriteString(fmt.Sprintf("\nHello %s! Feel free to type in some code\n", m.username))
	}
	s.WriteString("\n")

	// History
	for _, entry := range m.history {
		lines := strings.Split(entry.input, "\n")
		for i, line := range lines {
			if i == 0 {
				s.WriteString(m.applyStyle(promptStyle, Prompt))
			} else {
				s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			}
			s.WriteString(m.highlightCode(line))
			s.WriteString("\n")
		}

		if entry.isError {
			switch entry.errorType {
			case LexParseError:
				m.formatError(lexParseErrorStyle, &entry, &s)
			case RuntimeErr:
				m.formatError(runtimeErrorStyle, &entry, &s)
			default:
				m.formatError(errorStyle, &entry, &s)
			}
		} else {
			if m.options.NoColor {
				s.WriteString(entry.output)
			} else {
				s.WriteString(resultStyle.Render(entry.output))
			}
		}

		// Show evaluation time if it took more than 10 ms
		if entry.evaluationTime > 10*time.Millisecond {
			timeStr := fmt.Sprintf(" (%.2fs)", entry.evaluationTime.Seconds())
			s.WriteString(m.applyStyle(historyStyle, timeStr))
		}

		s.WriteString("\n\n")
	}

	// Current evaluation
	if m.evaluating {
		s.WriteString(m.applyStyle(promptStyle, Prompt))
		s.WriteString(m.highlightCode(m.currentInput))
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" Evaluating...")
		s.WriteString("\n\n")
	}

	// Show multiline buffer if in multiline mode
	if m.isMultiline && !m.evaluating {
		s.WriteString(m.applyStyle(historyStyle, "Current multiline input:\n"))
		s.WriteString(m.highlightCode(m.multilineBuffer))
		s.WriteString("\n")
	}

	// Input
	if !m.evaluating {
		if m.isMultiline {
			m.textInput.Prompt = m.applyStyle(promptStyle, ContPrompt)
		} else {
			m.textInput.Prompt = m.applyStyle(promptStyle, Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	helpText := "\nPress Esc or Ctrl+C/D to exit"
	if m.isMultiline {
		helpText += " | Multiline mode: Enter empty line to evaluate or continue typing"
	} else {
		helpText += " | Multiline input supported for unbalanced brackets"
	}
	s.WriteString(m.applyStyle(historyStyle, helpText))

	return s.String()
}

// tokenStyle classifies tok and returns the style its text should be
// rendered with, and whether it is a recognized category at all.
func tokenStyle(tok token.Token) (lipgloss.Style, bool) {
	switch tok.Type {
	case token.FUNCTION, token.LET, token.VAR, token.CONST, token.IF, token.ELSE,
		token.WHILE, token.FOR, token.BREAK, token.CONTINUE, token.RETURN, token.THIS,
		token.NEW, token.TYPEOF, token.INSTANCEOF, token.IN, token.DELETE, token.VOID,
		token.CLASS, token.EXTENDS, token.SUPER, token.IMPORT, token.EXPORT, token.YIELD,
		token.ASYNC, token.AWAIT, token.TRUE, token.FALSE, token.NULL, token.UNDEFINED:
		return keywordStyle, true
	case token.IDENT:
		return identifierStyle, true
	case token.NUMBER, token.TEMPLATE, token.REGEXP:
		return literalStyle, true
	case token.STRING:
		return stringStyle, true
	case token.COMMA, token.COLON, token.SEMICOLON, token.DOT, token.QUESTION,
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.LBRACKET, token.RBRACKET:
		return delimiterStyle, true
	case token.ILLEGAL, token.EOF:
		return lipgloss.Style{}, false
	default:
		// Everything else left is an operator/punctuator family.
		return operatorStyle, true
	}
}

// highlightCode applies syntax highlighting to code, rendering each
// token in its category's style and reproducing the original spacing
// between tokens exactly (via each token's span), rather than
// reformatting the input.
func (m model) highlightCode(code string) string {
	if m.options.NoColor {
		return code
	}

	l := lexer.New(code)
	var s strings.Builder
	prevEnd := 0

	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}

		if tok.Span.Start > prevEnd {
			s.WriteString(code[prevEnd:tok.Span.Start])
		}

		text := code[tok.Span.Start:tok.Span.End]
		if tok.Type == token.STRING {
			// Span covers the quotes; Literal holds the decoded body,
			// so render the raw source text instead of re-quoting it.
			s.WriteString(stringStyle.Render(text))
		} else if style, ok := tokenStyle(tok); ok {
			s.WriteString(style.Render(text))
		} else {
			s.WriteString(text)
		}

		prevEnd = tok.Span.End
	}
	if prevEnd < len(code) {
		s.WriteString(code[prevEnd:])
	}

	return s.String()
}
