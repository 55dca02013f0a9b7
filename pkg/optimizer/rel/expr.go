package rel

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Expr 标量表达式
type Expr interface {
	String() string
	expr()
}

// Op 运算符
type Op string

const (
	OpAnd          Op = "AND"
	OpOr           Op = "OR"
	OpNot          Op = "NOT"
	OpEquals       Op = "="
	OpNotEquals    Op = "<>"
	OpGreaterThan  Op = ">"
	OpGreaterEqual Op = ">="
	OpLessThan     Op = "<"
	OpLessEqual    Op = "<="
	OpPlus         Op = "+"
	OpMinus        Op = "-"
	OpTimes        Op = "*"
	OpDivide       Op = "/"
)

// InputRef 引用输入的第 Index 列
type InputRef struct {
	Index int
}

func (InputRef) expr() {}

func (r InputRef) String() string { return fmt.Sprintf("$%d", r.Index) }

// Literal 常量
type Literal struct {
	Value any
}

func (Literal) expr() {}

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + v + "'"
	default:
		return cast.ToString(v)
	}
}

// Call 运算符调用
type Call struct {
	Op       Op
	Operands []Expr
}

func (Call) expr() {}

func (c Call) String() string {
	parts := make([]string, len(c.Operands))
	for i, o := range c.Operands {
		parts[i] = o.String()
	}
	return string(c.Op) + "(" + strings.Join(parts, ", ") + ")"
}

// Ref 构造列引用
func Ref(index int) InputRef { return InputRef{Index: index} }

// Lit 构造常量
func Lit(v any) Literal { return Literal{Value: v} }

// NewCall 构造运算
func NewCall(op Op, operands ...Expr) Call {
	return Call{Op: op, Operands: operands}
}

// Eq 构造等值比较
func Eq(left, right Expr) Call { return NewCall(OpEquals, left, right) }

// And 合取，展开嵌套的 AND；无条件时返回 nil
func And(conds ...Expr) Expr {
	var flat []Expr
	for _, c := range conds {
		flat = append(flat, Conjunctions(c)...)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return Call{Op: OpAnd, Operands: flat}
	}
}

// Conjunctions 拆分 AND 为合取项
func Conjunctions(e Expr) []Expr {
	if e == nil {
		return nil
	}
	if c, ok := e.(Call); ok && c.Op == OpAnd {
		var out []Expr
		for _, o := range c.Operands {
			out = append(out, Conjunctions(o)...)
		}
		return out
	}
	return []Expr{e}
}

// ExprString nil 安全的字符串形式
func ExprString(e Expr) string {
	if e == nil {
		return "true"
	}
	return e.String()
}

// SubstituteRefs 将 $i 替换为 exprs[i]
func SubstituteRefs(e Expr, exprs []Expr) Expr {
	switch v := e.(type) {
	case nil:
		return nil
	case InputRef:
		if v.Index < len(exprs) {
			return exprs[v.Index]
		}
		return v
	case Call:
		operands := make([]Expr, len(v.Operands))
		for i, o := range v.Operands {
			operands[i] = SubstituteRefs(o, exprs)
		}
		return Call{Op: v.Op, Operands: operands}
	default:
		return e
	}
}

// ShiftRefs 所有列引用平移 offset
func ShiftRefs(e Expr, offset int) Expr {
	switch v := e.(type) {
	case nil:
		return nil
	case InputRef:
		return InputRef{Index: v.Index + offset}
	case Call:
		operands := make([]Expr, len(v.Operands))
		for i, o := range v.Operands {
			operands[i] = ShiftRefs(o, offset)
		}
		return Call{Op: v.Op, Operands: operands}
	default:
		return e
	}
}

// EquiKeys 从连接条件中提取等值键，leftCount 为左输入列数
func EquiKeys(cond Expr, leftCount int) (leftKeys, rightKeys []int) {
	for _, c := range Conjunctions(cond) {
		call, ok := c.(Call)
		if !ok || call.Op != OpEquals || len(call.Operands) != 2 {
			continue
		}
		a, okA := call.Operands[0].(InputRef)
		b, okB := call.Operands[1].(InputRef)
		if !okA || !okB {
			continue
		}
		if a.Index > b.Index {
			a, b = b, a
		}
		if a.Index < leftCount && b.Index >= leftCount {
			leftKeys = append(leftKeys, a.Index)
			rightKeys = append(rightKeys, b.Index-leftCount)
		}
	}
	return leftKeys, rightKeys
}

// exprType 推导表达式类型
func exprType(e Expr, input []Column) string {
	switch v := e.(type) {
	case InputRef:
		if v.Index < len(input) {
			return input[v.Index].Type
		}
	case Literal:
		switch v.Value.(type) {
		case string:
			return TypeVarchar
		case bool:
			return TypeBoolean
		case float32, float64:
			return TypeDouble
		case nil:
			return TypeNull
		default:
			return TypeInteger
		}
	case Call:
		switch v.Op {
		case OpAnd, OpOr, OpNot, OpEquals, OpNotEquals, OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
			return TypeBoolean
		default:
			if len(v.Operands) > 0 {
				return exprType(v.Operands[0], input)
			}
		}
	}
	return TypeAny
}
