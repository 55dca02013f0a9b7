package cost

import (
	"math"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// CostModel is the interface for cost estimation models.
// It provides methods to estimate the cost of different physical operators.
type CostModel interface {
	// ScanCost estimates the cost of scanning a table.
	ScanCost(tableName string, rowCount int64) float64

	// FilterCost estimates the cost of applying filters.
	// selectivity: fraction of rows that pass the filter (0-1)
	FilterCost(inputRows int64, selectivity float64) float64

	// JoinCost estimates the cost of a join with the given physical algorithm.
	JoinCost(leftRows, rightRows int64, algorithm rel.Kind) float64

	// AggregateCost estimates the cost of aggregation.
	AggregateCost(inputRows int64, groupByCols, aggFuncs int) float64

	// ProjectCost estimates the cost of projection.
	ProjectCost(inputRows int64, projCols int) float64

	// SortCost estimates the cost of sorting.
	SortCost(inputRows int64) float64

	// GetCostFactors returns the cost factors used by the model.
	GetCostFactors() *AdaptiveCostFactor
}

// DefaultCostModel 默认成本模型
type DefaultCostModel struct {
	CPUFactor    float64
	IoFactor     float64
	MemoryFactor float64
}

// NewDefaultCostModel 创建默认成本模型
func NewDefaultCostModel() *DefaultCostModel {
	return &DefaultCostModel{
		CPUFactor:    0.01,
		IoFactor:     0.1,
		MemoryFactor: 0.001,
	}
}

// ScanCost 计算扫描成本
func (cm *DefaultCostModel) ScanCost(tableName string, rowCount int64) float64 {
	return float64(rowCount)*cm.IoFactor + float64(rowCount)*cm.CPUFactor
}

// FilterCost 计算过滤成本
func (cm *DefaultCostModel) FilterCost(inputRows int64, selectivity float64) float64 {
	// 成本 = 读取所有行 + 比较成本
	outputRows := float64(inputRows) * selectivity
	return float64(inputRows)*cm.CPUFactor + outputRows*cm.CPUFactor
}

// JoinCost 计算连接成本
func (cm *DefaultCostModel) JoinCost(leftRows, rightRows int64, algorithm rel.Kind) float64 {
	l, r := float64(leftRows), float64(rightRows)
	switch algorithm {
	case rel.KindHashJoin:
		// 构建 hash + 探测 hash
		buildCost := r * cm.CPUFactor
		probeCost := l * cm.CPUFactor
		memoryCost := r * cm.MemoryFactor
		return buildCost + probeCost + memoryCost
	case rel.KindMergeJoin:
		return (l + r) * cm.CPUFactor
	case rel.KindNestedLoopJoin:
		return l * r * cm.CPUFactor
	default:
		return math.Inf(1)
	}
}

// AggregateCost 计算聚合成本
func (cm *DefaultCostModel) AggregateCost(inputRows int64, groupByCols, aggFuncs int) float64 {
	// 成本 = 分组 + 聚合
	groupCost := float64(inputRows) * cm.CPUFactor * float64(groupByCols)
	aggCost := float64(inputRows) * cm.CPUFactor * float64(max(aggFuncs, 1))
	return groupCost + aggCost
}

// ProjectCost 计算投影成本
func (cm *DefaultCostModel) ProjectCost(inputRows int64, projCols int) float64 {
	// 成本 = 计算每个表达式
	return float64(inputRows) * float64(projCols) * cm.CPUFactor
}

// SortCost 计算排序成本：n * log(n)
func (cm *DefaultCostModel) SortCost(inputRows int64) float64 {
	if inputRows <= 1 {
		return cm.CPUFactor
	}
	return float64(inputRows) * math.Log2(float64(inputRows)) * cm.CPUFactor
}

// GetCostFactors 返回成本因子
func (cm *DefaultCostModel) GetCostFactors() *AdaptiveCostFactor {
	return &AdaptiveCostFactor{
		IOFactor:     cm.IoFactor,
		CPUFactor:    cm.CPUFactor,
		MemoryFactor: cm.MemoryFactor,
	}
}
