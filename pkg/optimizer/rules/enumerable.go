package rules

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// 调用约定转换规则标识
const (
	EnumerableTableScanID      rule.ID = "EnumerableTableScanRule"
	EnumerableProjectID        rule.ID = "EnumerableProjectRule"
	EnumerableFilterID         rule.ID = "EnumerableFilterRule"
	EnumerableCalcID           rule.ID = "EnumerableCalcRule"
	EnumerableAggregateID      rule.ID = "EnumerableAggregateRule"
	EnumerableSortID           rule.ID = "EnumerableSortRule"
	EnumerableHashJoinID       rule.ID = "EnumerableHashJoinRule"
	EnumerableMergeJoinID      rule.ID = "EnumerableMergeJoinRule"
	EnumerableNestedLoopJoinID rule.ID = "EnumerableNestedLoopJoinRule"
)

var toEnumerable = rule.TraitConstraint{
	Required: rel.NewTraitSet(rel.ConventionNone),
	Produced: rel.NewTraitSet(rel.ConventionEnumerable),
}

var enumerableTraits = rel.NewTraitSet(rel.ConventionEnumerable)

func enumerableInputs(n *rel.Node) []*rel.Node {
	inputs := n.Inputs()
	for i, in := range inputs {
		inputs[i] = rel.Convert(in, enumerableTraits)
	}
	return inputs
}

// convertAs 同类型算子转为 ENUMERABLE，输入同样要求 ENUMERABLE
func convertAs(id rule.ID, kind rel.Kind) rule.Rule {
	return rule.New(id, logicalAny(kind), toEnumerable, func(call *rule.Call) *rel.Node {
		n := call.Rel(0)
		return n.Derive(rel.ConventionEnumerable, enumerableInputs(n)...)
	})
}

// EnumerableTableScan 表扫描
func EnumerableTableScan() rule.Rule { return convertAs(EnumerableTableScanID, rel.KindTableScan) }

// EnumerableProject 投影
func EnumerableProject() rule.Rule { return convertAs(EnumerableProjectID, rel.KindProject) }

// EnumerableFilter 过滤
func EnumerableFilter() rule.Rule { return convertAs(EnumerableFilterID, rel.KindFilter) }

// EnumerableCalc 计算
func EnumerableCalc() rule.Rule { return convertAs(EnumerableCalcID, rel.KindCalc) }

// EnumerableAggregate 聚合
func EnumerableAggregate() rule.Rule { return convertAs(EnumerableAggregateID, rel.KindAggregate) }

// EnumerableSort 排序
func EnumerableSort() rule.Rule { return convertAs(EnumerableSortID, rel.KindSort) }

// EnumerableHashJoin 等值连接转哈希连接
func EnumerableHashJoin() rule.Rule {
	return rule.New(EnumerableHashJoinID, logicalAny(rel.KindJoin), toEnumerable, func(call *rule.Call) *rel.Node {
		join := call.Rel(0)
		if !join.AsJoin().IsEquiJoin() {
			return nil
		}
		return join.DeriveAs(rel.KindHashJoin, join.Payload(), rel.ConventionEnumerable, enumerableInputs(join)...)
	})
}

// EnumerableMergeJoin 内连接转归并连接，要求两侧按连接键有序
func EnumerableMergeJoin() rule.Rule {
	return rule.New(EnumerableMergeJoinID, logicalAny(rel.KindJoin), toEnumerable, func(call *rule.Call) *rel.Node {
		join := call.Rel(0)
		p := join.AsJoin()
		if !p.IsEquiJoin() || p.Type != rel.JoinInner {
			return nil
		}
		left := rel.Convert(join.Input(0), rel.NewTraitSet(rel.ConventionEnumerable, rel.NewCollation(p.LeftKeys...)))
		right := rel.Convert(join.Input(1), rel.NewTraitSet(rel.ConventionEnumerable, rel.NewCollation(p.RightKeys...)))
		return join.DeriveAs(rel.KindMergeJoin, p, rel.ConventionEnumerable, left, right)
	})
}

// EnumerableNestedLoopJoin 任意连接都可用的嵌套循环连接
func EnumerableNestedLoopJoin() rule.Rule {
	return rule.New(EnumerableNestedLoopJoinID, logicalAny(rel.KindJoin), toEnumerable, func(call *rule.Call) *rel.Node {
		join := call.Rel(0)
		return join.DeriveAs(rel.KindNestedLoopJoin, join.Payload(), rel.ConventionEnumerable, enumerableInputs(join)...)
	})
}
