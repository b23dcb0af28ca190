package builtin

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/parley/pkg/schema"
	"github.com/aretw0/parley/pkg/tools"
)

type calcArgs struct {
	Expression string `mapstructure:"expression"`
}

// Calculator evaluates arithmetic expressions with + - * / % and parentheses.
// Whole results are returned as integers: {"result": 42}.
func Calculator() tools.Tool {
	return tools.Tool{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression such as (40+2)*3.",
		Parameters: &schema.Schema{
			Type:     schema.TypeObject,
			Required: []string{"expression"},
			Properties: map[string]schema.Property{
				"expression": {Type: schema.TypeString, Description: "Arithmetic expression"},
			},
		},
		Execute: tools.Typed(func(_ context.Context, args calcArgs) (any, error) {
			v, err := Evaluate(args.Expression)
			if err != nil {
				return nil, err
			}
			if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
				return map[string]any{"result": int64(v)}, nil
			}
			return map[string]any{"result": v}, nil
		}),
	}
}

var errDivByZero = errors.New("division by zero")

// Evaluate computes the value of an arithmetic expression.
func Evaluate(expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, errors.New("expression is required")
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid expression %q", expr)
	}
	return eval(node)
}

func eval(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unexpected literal %s", n.Value)
		}
		return strconv.ParseFloat(n.Value, 64)
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)
	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, errDivByZero
			}
			return x / y, nil
		case token.REM:
			if y == 0 {
				return 0, errDivByZero
			}
			return math.Mod(x, y), nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)
	default:
		return 0, fmt.Errorf("unsupported expression %T", node)
	}
}
