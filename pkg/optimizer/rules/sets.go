package rules

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// LogicalRules 常用逻辑重写
func LogicalRules() []rule.Rule {
	return []rule.Rule{
		FilterMerge(),
		ProjectMerge(),
		ProjectRemove(),
		FilterProjectTranspose(),
		AggregateReduceFunctions(),
	}
}

// EnumerableRules 全部调用约定转换规则
func EnumerableRules() []rule.Rule {
	return []rule.Rule{
		EnumerableTableScan(),
		EnumerableProject(),
		EnumerableFilter(),
		EnumerableCalc(),
		EnumerableAggregate(),
		EnumerableSort(),
		EnumerableHashJoin(),
		EnumerableMergeJoin(),
		EnumerableNestedLoopJoin(),
	}
}

// Converters 全部属性转换
func Converters() []rule.Converter {
	return []rule.Converter{SortConverter()}
}

// ByID 按标识查找规则，用于配置中按名称启用规则
func ByID(id rule.ID) (rule.Rule, bool) {
	for _, r := range append(append(LogicalRules(), ProjectToCalc()), EnumerableRules()...) {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}
