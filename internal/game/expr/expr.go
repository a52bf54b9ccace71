// Package expr evaluates the short arithmetic expressions attached to card
// effects. Operators apply strictly left to right with no precedence.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
)

// MaxLength is the longest expression a card effect can carry.
const MaxLength = 15

var (
	// ErrMissingOperand is returned when an operator ends the expression.
	ErrMissingOperand = errors.New("no token on right side of binary operator")
	// ErrDivideByZero is returned when a division has a zero right operand.
	ErrDivideByZero = errors.New("division by zero in expression")
	// ErrTooLong is returned for expressions longer than MaxLength.
	ErrTooLong = errors.New("expression too long")
)

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ref", Pattern: `[a-z]+`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "FloorDivide", Pattern: `//`},
	{Name: "Op", Pattern: `[-+*/]`},
	{Name: "Space", Pattern: ` `},
})

var (
	tokRef         = exprLexer.Symbols()["Ref"]
	tokNumber      = exprLexer.Symbols()["Number"]
	tokFloorDivide = exprLexer.Symbols()["FloorDivide"]
	tokOp          = exprLexer.Symbols()["Op"]
)

type opKind uint8

const (
	opNone opKind = iota
	opAdd
	opSubtract
	opMultiply
	opRoundDivide
	opFloorDivide
)

type token struct {
	op    opKind
	value int32
}

// Result is the outcome of one evaluation.
type Result struct {
	Value int32
	// DiceUsed is set when the expression referenced a die roll.
	DiceUsed bool
}

// Evaluate computes an expression against a stats snapshot.
func Evaluate(text string, stats *Stats) (Result, error) {
	var res Result
	if len(text) > MaxLength {
		return res, fmt.Errorf("%q: %w", text, ErrTooLong)
	}
	tokens, err := tokenize(text, stats, &res)
	if err != nil {
		return res, err
	}

	var value int32
	for z := 0; z < len(tokens); z++ {
		tok := tokens[z]
		if tok.op == opNone {
			value = tok.value
			continue
		}
		if z >= len(tokens)-1 {
			return res, fmt.Errorf("%q: %w", text, ErrMissingOperand)
		}
		z++
		right := tokens[z]
		if right.op != opNone {
			return res, fmt.Errorf("%q: operator on right side of operator", text)
		}
		switch tok.op {
		case opAdd:
			value += right.value
		case opSubtract:
			value -= right.value
		case opMultiply:
			value *= right.value
		case opRoundDivide:
			if right.value == 0 {
				return res, fmt.Errorf("%q: %w", text, ErrDivideByZero)
			}
			value = int32(math.Round(float64(value) / float64(right.value)))
		case opFloorDivide:
			if right.value == 0 {
				return res, fmt.Errorf("%q: %w", text, ErrDivideByZero)
			}
			q := value / right.value
			if (value%right.value != 0) && ((value < 0) != (right.value < 0)) {
				q--
			}
			value = q
		}
	}
	res.Value = value
	return res, nil
}

func tokenize(text string, stats *Stats, res *Result) ([]token, error) {
	lex, err := exprLexer.LexString("", text)
	if err != nil {
		return nil, fmt.Errorf("invalid card effect expression %q: %w", text, err)
	}
	var tokens []token
	for {
		t, err := lex.Next()
		if err != nil {
			return nil, fmt.Errorf("invalid card effect expression %q: %w", text, err)
		}
		switch t.Type {
		case lexer.EOF:
			return tokens, nil
		case tokRef:
			st, ok := LookupStat(t.Value)
			if !ok {
				return nil, fmt.Errorf("expression %q: unknown reference %q", text, t.Value)
			}
			if st.IsDiceRoll() {
				res.DiceUsed = true
			}
			tokens = append(tokens, token{value: int32(stats.Get(st))})
		case tokNumber:
			n, err := strconv.ParseInt(t.Value, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("expression %q: %w", text, err)
			}
			tokens = append(tokens, token{value: int32(n)})
		case tokFloorDivide:
			tokens = append(tokens, token{op: opFloorDivide})
		case tokOp:
			tokens = append(tokens, token{op: opForSymbol(t.Value)})
		default:
			return nil, fmt.Errorf("expression %q contains a space", text)
		}
	}
}

func opForSymbol(s string) opKind {
	switch s {
	case "+":
		return opAdd
	case "-":
		return opSubtract
	case "*":
		return opMultiply
	case "/":
		return opRoundDivide
	}
	return opNone
}

// Clamp limits v to the [-99, 99] stat range.
func Clamp(v int32) int32 {
	return max(-99, min(99, v))
}
