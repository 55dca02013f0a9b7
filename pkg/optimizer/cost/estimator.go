package cost

import (
	"strings"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// DefaultRowCount 没有统计信息的表的行数估计
const DefaultRowCount = 100

// Statistics 表统计信息
type Statistics struct {
	RowCount int64
}

// Estimator 基于成本模型估算节点的行数与自身代价
type Estimator struct {
	model       CostModel
	stats       map[string]Statistics
	defaultRows int64
}

// EstimatorOption 估算器选项
type EstimatorOption func(*Estimator)

// WithStatistics 设置表统计信息，表名不区分大小写
func WithStatistics(table string, s Statistics) EstimatorOption {
	return func(e *Estimator) {
		e.stats[strings.ToUpper(table)] = s
	}
}

// WithDefaultRowCount 设置缺省行数
func WithDefaultRowCount(rows int64) EstimatorOption {
	return func(e *Estimator) {
		if rows > 0 {
			e.defaultRows = rows
		}
	}
}

// NewEstimator 创建估算器，model 为 nil 时使用默认成本模型
func NewEstimator(model CostModel, opts ...EstimatorOption) *Estimator {
	if model == nil {
		model = NewDefaultCostModel()
	}
	e := &Estimator{
		model:       model,
		stats:       make(map[string]Statistics),
		defaultRows: DefaultRowCount,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model 返回成本模型
func (e *Estimator) Model() CostModel {
	return e.model
}

// TableRows 表的行数
func (e *Estimator) TableRows(table string) int64 {
	if s, ok := e.stats[strings.ToUpper(table)]; ok && s.RowCount >= 0 {
		return s.RowCount
	}
	return e.defaultRows
}

// RowCount 估算节点输出行数，inputRows 为各输入的行数
func (e *Estimator) RowCount(n *rel.Node, inputRows []float64) float64 {
	input := func(i int) float64 {
		if i < len(inputRows) {
			return inputRows[i]
		}
		return float64(e.defaultRows)
	}
	switch p := n.Payload().(type) {
	case rel.ScanPayload:
		return float64(e.TableRows(p.TableName()))
	case rel.FilterPayload:
		return input(0) * Selectivity(p.Condition)
	case rel.CalcPayload:
		return input(0) * Selectivity(p.Condition)
	case rel.JoinPayload:
		left, right := input(0), input(1)
		rows := left * right * Selectivity(p.Condition)
		switch p.Type {
		case rel.JoinLeft:
			rows = max(rows, left)
		case rel.JoinRight:
			rows = max(rows, right)
		case rel.JoinFull:
			rows = max(rows, left+right)
		case rel.JoinSemi:
			rows = left * 0.5
		case rel.JoinAnti:
			rows = left * 0.5
		}
		return rows
	case rel.AggregatePayload:
		if len(p.GroupKeys) == 0 {
			return 1
		}
		return max(1, input(0)*0.1)
	default:
		return input(0)
	}
}

// NodeCost 节点自身的代价；逻辑算子与占位符不可执行，返回无穷大
func (e *Estimator) NodeCost(n *rel.Node, inputRows []float64) Cost {
	if n.Kind() == rel.KindSetRef || n.Convention() == rel.ConventionNone {
		return Infinite()
	}
	rows := e.RowCount(n, inputRows)
	in := func(i int) int64 {
		if i < len(inputRows) {
			return int64(inputRows[i])
		}
		return e.defaultRows
	}

	c := Cost{Rows: rows}
	switch p := n.Payload().(type) {
	case rel.ScanPayload:
		c.IO = e.model.ScanCost(p.TableName(), int64(rows))
	case rel.FilterPayload:
		c.CPU = e.model.FilterCost(in(0), Selectivity(p.Condition))
	case rel.ProjectPayload:
		c.CPU = e.model.ProjectCost(in(0), len(p.Exprs))
	case rel.CalcPayload:
		c.CPU = e.model.ProjectCost(in(0), len(p.Exprs))
		if p.Condition != nil {
			c.CPU += e.model.FilterCost(in(0), Selectivity(p.Condition))
		}
	case rel.JoinPayload:
		c.CPU = e.model.JoinCost(in(0), in(1), n.Kind())
	case rel.AggregatePayload:
		c.CPU = e.model.AggregateCost(in(0), len(p.GroupKeys), len(p.Calls))
	case rel.SortPayload:
		c.CPU = e.model.SortCost(in(0))
	default:
		return Infinite()
	}
	return c
}

// Selectivity 条件的选择率估计：等值 0.15，范围 0.5，其余 0.25，合取项相乘
func Selectivity(cond rel.Expr) float64 {
	if cond == nil {
		return 1.0
	}
	sel := 1.0
	for _, c := range rel.Conjunctions(cond) {
		call, ok := c.(rel.Call)
		if !ok {
			sel *= 0.25
			continue
		}
		switch call.Op {
		case rel.OpEquals:
			sel *= 0.15
		case rel.OpGreaterThan, rel.OpGreaterEqual, rel.OpLessThan, rel.OpLessEqual:
			sel *= 0.5
		case rel.OpNotEquals:
			sel *= 0.85
		default:
			sel *= 0.25
		}
	}
	return sel
}
