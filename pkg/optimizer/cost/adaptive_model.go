package cost

import (
	"fmt"
	"math"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// AdaptiveCostModel 自适应成本模型
// 成本因子由硬件配置推导，连接与聚合额外考虑哈希表的内存开销
type AdaptiveCostModel struct {
	hardware *HardwareProfile
	factors  *AdaptiveCostFactor
}

// NewAdaptiveCostModel 创建自适应成本模型，hardware 为 nil 时自动检测
func NewAdaptiveCostModel(hardware *HardwareProfile) *AdaptiveCostModel {
	if hardware == nil {
		hardware = DetectHardwareProfile()
	}
	return &AdaptiveCostModel{
		hardware: hardware,
		factors:  hardware.CalculateCostFactors(),
	}
}

// ScanCost 计算扫描成本
func (acm *AdaptiveCostModel) ScanCost(tableName string, rowCount int64) float64 {
	if rowCount <= 0 {
		return 0
	}
	return float64(rowCount)*acm.factors.IOFactor + float64(rowCount)*acm.factors.CPUFactor
}

// FilterCost 计算过滤成本
func (acm *AdaptiveCostModel) FilterCost(inputRows int64, selectivity float64) float64 {
	// 读取成本 + 输出成本
	readCost := float64(inputRows) * acm.factors.CPUFactor
	outputCost := float64(inputRows) * selectivity * acm.factors.CPUFactor * 0.5
	return readCost + outputCost
}

// JoinCost 计算连接成本
func (acm *AdaptiveCostModel) JoinCost(leftRows, rightRows int64, algorithm rel.Kind) float64 {
	switch algorithm {
	case rel.KindHashJoin:
		return acm.buildHashTableCost(rightRows) + acm.probeHashTableCost(leftRows)
	case rel.KindMergeJoin:
		return float64(leftRows+rightRows) * acm.factors.CPUFactor
	case rel.KindNestedLoopJoin:
		return float64(leftRows) * float64(rightRows) * acm.factors.CPUFactor
	default:
		return math.Inf(1)
	}
}

// AggregateCost 计算聚合成本
func (acm *AdaptiveCostModel) AggregateCost(inputRows int64, groupByCols, aggFuncs int) float64 {
	// 分组成本：每行 * 分组列数 * CPU因子
	groupingCost := float64(inputRows) * float64(groupByCols) * acm.factors.CPUFactor
	// 聚合函数成本
	aggregationCost := float64(inputRows) * float64(max(aggFuncs, 1)) * acm.factors.CPUFactor
	// 内存成本：哈希表构建
	hashTableCost := float64(inputRows) * acm.factors.MemoryFactor * 0.05
	return groupingCost + aggregationCost + hashTableCost
}

// ProjectCost 计算投影成本
func (acm *AdaptiveCostModel) ProjectCost(inputRows int64, projCols int) float64 {
	baseCost := float64(inputRows) * float64(projCols) * acm.factors.CPUFactor
	memoryCost := float64(inputRows) * float64(projCols) * acm.factors.MemoryFactor * 0.001
	return baseCost + memoryCost
}

// SortCost 计算排序成本
func (acm *AdaptiveCostModel) SortCost(inputRows int64) float64 {
	// 快速排序成本：n * log(n)
	if inputRows <= 1 {
		return acm.factors.CPUFactor
	}
	return float64(inputRows) * math.Log2(float64(inputRows)) * acm.factors.CPUFactor
}

// buildHashTableCost 构建哈希表 = 计算哈希 + 插入哈希
func (acm *AdaptiveCostModel) buildHashTableCost(rows int64) float64 {
	hashCost := float64(rows) * acm.factors.CPUFactor * 2.0
	memoryCost := float64(rows) * acm.factors.MemoryFactor * 0.01
	return hashCost + memoryCost
}

// probeHashTableCost 探测成本
func (acm *AdaptiveCostModel) probeHashTableCost(probeRows int64) float64 {
	return float64(probeRows) * acm.factors.CPUFactor
}

// GetHardwareProfile 返回硬件配置
func (acm *AdaptiveCostModel) GetHardwareProfile() *HardwareProfile {
	return acm.hardware
}

// GetCostFactors 返回成本因子
func (acm *AdaptiveCostModel) GetCostFactors() *AdaptiveCostFactor {
	return acm.factors
}

// Explain 返回模型说明
func (acm *AdaptiveCostModel) Explain() string {
	return fmt.Sprintf("AdaptiveCostModel(%s, IO=%.4f, CPU=%.4f, Mem=%.4f)",
		acm.hardware, acm.factors.IOFactor, acm.factors.CPUFactor, acm.factors.MemoryFactor)
}
