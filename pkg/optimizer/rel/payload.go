package rel

import (
	"fmt"
	"strings"
)

// 列类型
const (
	TypeAny     = "ANY"
	TypeNull    = "NULL"
	TypeInteger = "INTEGER"
	TypeBigint  = "BIGINT"
	TypeDouble  = "DOUBLE"
	TypeVarchar = "VARCHAR"
	TypeBoolean = "BOOLEAN"
)

// Column 输出列
type Column struct {
	Name string
	Type string
}

// JoinType 连接类型
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinSemi
	JoinAnti
)

func (t JoinType) String() string {
	switch t {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinFull:
		return "full"
	case JoinSemi:
		return "semi"
	case JoinAnti:
		return "anti"
	default:
		return "unknown"
	}
}

// ProjectsRight 输出是否包含右输入的列
func (t JoinType) ProjectsRight() bool {
	return t != JoinSemi && t != JoinAnti
}

// AggFunc 聚合函数
type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// AggCall 聚合调用
type AggCall struct {
	Func     AggFunc
	Args     []int
	Distinct bool
	Name     string
}

func (a AggCall) String() string {
	args := make([]string, len(a.Args))
	for i, arg := range a.Args {
		args[i] = fmt.Sprintf("$%d", arg)
	}
	distinct := ""
	if a.Distinct {
		distinct = "DISTINCT "
	}
	return fmt.Sprintf("%s(%s%s)", a.Func, distinct, strings.Join(args, ", "))
}

// Equal 是否相同的聚合（忽略别名）
func (a AggCall) Equal(o AggCall) bool {
	return a.String() == o.String()
}

func (a AggCall) resultType(input []Column) string {
	switch a.Func {
	case AggCount:
		return TypeBigint
	case AggAvg:
		return TypeDouble
	default:
		if len(a.Args) > 0 && a.Args[0] < len(input) {
			return input[a.Args[0]].Type
		}
		return TypeAny
	}
}

// Payload 各算子的专有参数
type Payload interface {
	digest() string
}

// ScanPayload 表扫描
type ScanPayload struct {
	Table []string
}

// TableName 返回限定名的最后一段
func (p ScanPayload) TableName() string {
	if len(p.Table) == 0 {
		return ""
	}
	return p.Table[len(p.Table)-1]
}

func (p ScanPayload) digest() string {
	return "table=[" + strings.Join(p.Table, ", ") + "]"
}

// ProjectPayload 投影
type ProjectPayload struct {
	Exprs []Expr
	Names []string
}

func (p ProjectPayload) digest() string {
	return "exprs=" + exprList(p.Exprs)
}

// IsTrivial 是否为原样输出 inputCount 列的投影
func (p ProjectPayload) IsTrivial(inputCount int) bool {
	if len(p.Exprs) != inputCount {
		return false
	}
	for i, e := range p.Exprs {
		if ref, ok := e.(InputRef); !ok || ref.Index != i {
			return false
		}
	}
	return true
}

// FilterPayload 过滤
type FilterPayload struct {
	Condition Expr
}

func (p FilterPayload) digest() string {
	return "condition=[" + ExprString(p.Condition) + "]"
}

// CalcPayload 投影与过滤合并后的计算
type CalcPayload struct {
	Exprs     []Expr
	Names     []string
	Condition Expr
}

func (p CalcPayload) digest() string {
	d := "exprs=" + exprList(p.Exprs)
	if p.Condition != nil {
		d += ", condition=[" + p.Condition.String() + "]"
	}
	return d
}

// JoinPayload 连接，逻辑与物理连接共用
type JoinPayload struct {
	Type      JoinType
	Condition Expr
	LeftKeys  []int
	RightKeys []int
}

// IsEquiJoin 是否存在等值键
func (p JoinPayload) IsEquiJoin() bool {
	return len(p.LeftKeys) > 0
}

func (p JoinPayload) digest() string {
	return fmt.Sprintf("condition=[%s], joinType=[%s]", ExprString(p.Condition), p.Type)
}

// AggregatePayload 聚合
type AggregatePayload struct {
	GroupKeys []int
	Calls     []AggCall
}

func (p AggregatePayload) digest() string {
	calls := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		calls[i] = c.String()
	}
	return fmt.Sprintf("group=%v, calls=[%s]", p.GroupKeys, strings.Join(calls, ", "))
}

// SortPayload 排序
type SortPayload struct {
	Collation Collation
}

func (p SortPayload) digest() string {
	return "sort=" + p.Collation.String()
}

// SetRefPayload 等价集合引用
type SetRefPayload struct {
	Set int
}

func (p SetRefPayload) digest() string {
	return fmt.Sprintf("set=%d", p.Set)
}

func exprList(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = ExprString(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// payloadFits 载荷类型是否与算子类型一致
func payloadFits(kind Kind, p Payload) bool {
	switch p.(type) {
	case ScanPayload:
		return kind == KindTableScan
	case ProjectPayload:
		return kind == KindProject
	case FilterPayload:
		return kind == KindFilter
	case CalcPayload:
		return kind == KindCalc
	case JoinPayload:
		return kind.IsJoin()
	case AggregatePayload:
		return kind == KindAggregate
	case SortPayload:
		return kind == KindSort
	case SetRefPayload:
		return kind == KindSetRef
	default:
		return false
	}
}
