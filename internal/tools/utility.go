package tools

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// CalculateTool evaluates arithmetic expressions.
type CalculateTool struct{}

// NewCalculateTool creates a new CalculateTool instance.
func NewCalculateTool() *CalculateTool {
	return &CalculateTool{}
}

func (t *CalculateTool) Name() string {
	return "calculate"
}

func (t *CalculateTool) Description() string {
	return "Evaluates an arithmetic expression with +, -, *, / and parentheses."
}

func (t *CalculateTool) Permission() Level {
	return LevelAuto
}

func (t *CalculateTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"expression": {
					Type:        genai.TypeString,
					Description: "Arithmetic expression, e.g. \"(2 + 3) * 4.5\".",
				},
			},
			Required: []string{"expression"},
		},
	}
}

func (t *CalculateTool) Validate(args map[string]any) error {
	expr, ok := GetString(args, "expression")
	if !ok || strings.TrimSpace(expr) == "" {
		return NewValidationError("expression", "is required")
	}
	if i := strings.IndexFunc(expr, func(r rune) bool {
		return !strings.ContainsRune("0123456789+-*/.() ", r)
	}); i >= 0 {
		return NewValidationError("expression", fmt.Sprintf("contains invalid character %q", expr[i]))
	}
	return nil
}

func (t *CalculateTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	expr, _ := GetString(args, "expression")

	value, err := evalExpression(expr)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("cannot evaluate %q: %v", expr, err)), nil
	}
	return NewSuccessResult(strconv.FormatFloat(value, 'g', -1, 64)), nil
}

// exprParser is a recursive-descent evaluator for + - * / and parentheses.
type exprParser struct {
	input string
	pos   int
}

func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	value, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseSum() (float64, error) {
	value, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			value += rhs
		case '-':
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			value -= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	value, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			value *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			value /= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		value, err := p.parseUnary()
		return -value, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		value, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}

	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == '.' || (p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected a number at position %d", start)
	}
	return strconv.ParseFloat(p.input[start:p.pos], 64)
}

// CurrentTimeTool reports the current date and time.
type CurrentTimeTool struct{}

// NewCurrentTimeTool creates a new CurrentTimeTool instance.
func NewCurrentTimeTool() *CurrentTimeTool {
	return &CurrentTimeTool{}
}

func (t *CurrentTimeTool) Name() string {
	return "get_current_time"
}

func (t *CurrentTimeTool) Description() string {
	return "Returns the current date and time. Formats: iso (default), unix, human."
}

func (t *CurrentTimeTool) Permission() Level {
	return LevelAuto
}

func (t *CurrentTimeTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"format": {
					Type:        genai.TypeString,
					Description: "Output format: iso, unix, or human. Defaults to iso.",
				},
			},
			Required: []string{},
		},
	}
}

func (t *CurrentTimeTool) Validate(args map[string]any) error {
	format := GetStringDefault(args, "format", "iso")
	switch format {
	case "iso", "unix", "human":
		return nil
	}
	return NewValidationError("format", "must be iso, unix, or human")
}

func (t *CurrentTimeTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	format := GetStringDefault(args, "format", "iso")
	now := time.Now()

	var out string
	switch format {
	case "unix":
		out = strconv.FormatInt(now.Unix(), 10)
	case "human":
		out = now.Format("2006-01-02 15:04:05")
	default:
		out = now.Format(time.RFC3339)
	}

	zone, _ := now.Zone()
	return NewSuccessResult(fmt.Sprintf("%s (%s)", out, zone)), nil
}

// SystemInfoTool reports basic host information.
type SystemInfoTool struct{}

// NewSystemInfoTool creates a new SystemInfoTool instance.
func NewSystemInfoTool() *SystemInfoTool {
	return &SystemInfoTool{}
}

func (t *SystemInfoTool) Name() string {
	return "get_system_info"
}

func (t *SystemInfoTool) Description() string {
	return "Returns basic system information: OS, architecture, hostname, CPU count."
}

func (t *SystemInfoTool) Permission() Level {
	return LevelAuto
}

func (t *SystemInfoTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  &genai.Schema{Type: genai.TypeObject},
	}
}

func (t *SystemInfoTool) Validate(args map[string]any) error {
	return nil
}

func (t *SystemInfoTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "(unknown)"
	}

	info := fmt.Sprintf("os: %s\narch: %s\nhostname: %s\ncpus: %d\nruntime: %s",
		runtime.GOOS, runtime.GOARCH, hostname, runtime.NumCPU(), runtime.Version())
	return NewSuccessResult(info), nil
}

// RandomTool generates random numbers or strings.
type RandomTool struct{}

// NewRandomTool creates a new RandomTool instance.
func NewRandomTool() *RandomTool {
	return &RandomTool{}
}

func (t *RandomTool) Name() string {
	return "generate_random"
}

func (t *RandomTool) Description() string {
	return "Generates a random value. Types: number (integer in [min,max]), float (in [min,max)), string (alphanumeric of given length)."
}

func (t *RandomTool) Permission() Level {
	return LevelAuto
}

func (t *RandomTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"type": {
					Type:        genai.TypeString,
					Description: "Kind of value: number, float, or string. Defaults to number.",
				},
				"min": {
					Type:        genai.TypeInteger,
					Description: "Lower bound for number/float. Defaults to 1.",
				},
				"max": {
					Type:        genai.TypeInteger,
					Description: "Upper bound for number/float. Defaults to 100.",
				},
				"length": {
					Type:        genai.TypeInteger,
					Description: "Length for string. Defaults to 10.",
				},
			},
			Required: []string{},
		},
	}
}

func (t *RandomTool) Validate(args map[string]any) error {
	kind := GetStringDefault(args, "type", "number")
	switch kind {
	case "number", "float":
		min := GetIntDefault(args, "min", 1)
		max := GetIntDefault(args, "max", 100)
		if min > max {
			return NewValidationError("min", "must not exceed max")
		}
	case "string":
		if length := GetIntDefault(args, "length", 10); length <= 0 {
			return NewValidationError("length", "must be positive")
		}
	default:
		return NewValidationError("type", "must be number, float, or string")
	}
	return nil
}

const randomStringChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (t *RandomTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	kind := GetStringDefault(args, "type", "number")
	min := GetIntDefault(args, "min", 1)
	max := GetIntDefault(args, "max", 100)

	switch kind {
	case "float":
		value := float64(min) + rand.Float64()*float64(max-min)
		return NewSuccessResult(strconv.FormatFloat(value, 'g', -1, 64)), nil

	case "string":
		length := GetIntDefault(args, "length", 10)
		b := make([]byte, length)
		for i := range b {
			b[i] = randomStringChars[rand.IntN(len(randomStringChars))]
		}
		return NewSuccessResult(string(b)), nil

	default:
		return NewSuccessResult(strconv.Itoa(min + rand.IntN(max-min+1))), nil
	}
}
