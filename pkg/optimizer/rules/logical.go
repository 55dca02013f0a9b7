package rules

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// 规则标识
const (
	ProjectToCalcID            rule.ID = "ProjectToCalcRule"
	FilterMergeID              rule.ID = "FilterMergeRule"
	ProjectMergeID             rule.ID = "ProjectMergeRule"
	ProjectRemoveID            rule.ID = "ProjectRemoveRule"
	FilterProjectTransposeID   rule.ID = "FilterProjectTransposeRule"
	AggregateReduceFunctionsID rule.ID = "AggregateReduceFunctionsRule"
)

var logical = rule.TraitConstraint{
	Required: rel.NewTraitSet(rel.ConventionNone),
	Produced: rel.NewTraitSet(rel.ConventionNone),
}

func logicalOperand(kind rel.Kind, inputs ...*rule.Operand) *rule.Operand {
	return rule.OperandOf(kind, inputs...).WithConvention(rel.ConventionNone)
}

func logicalAny(kind rel.Kind) *rule.Operand {
	return rule.AnyOperand(kind).WithConvention(rel.ConventionNone)
}

// ProjectToCalc 将投影改写为计算节点
func ProjectToCalc() rule.Rule {
	return rule.New(ProjectToCalcID, logicalAny(rel.KindProject), logical, func(call *rule.Call) *rel.Node {
		project := call.Rel(0)
		p := project.AsProject()
		return project.DeriveAs(rel.KindCalc, rel.CalcPayload{Exprs: p.Exprs, Names: p.Names}, project.Convention(), project.Inputs()...)
	})
}

// FilterMerge 合并相邻的两个过滤
func FilterMerge() rule.Rule {
	op := logicalOperand(rel.KindFilter, logicalAny(rel.KindFilter))
	return rule.New(FilterMergeID, op, logical, func(call *rule.Call) *rel.Node {
		top, bottom := call.Rel(0), call.Rel(1)
		cond := rel.And(bottom.AsFilter().Condition, top.AsFilter().Condition)
		return top.DeriveAs(rel.KindFilter, rel.FilterPayload{Condition: cond}, top.Convention(), bottom.Input(0)).
			Absorb(bottom)
	})
}

// ProjectMerge 合并相邻的两个投影
func ProjectMerge() rule.Rule {
	op := logicalOperand(rel.KindProject, logicalAny(rel.KindProject))
	return rule.New(ProjectMergeID, op, logical, func(call *rule.Call) *rel.Node {
		top, bottom := call.Rel(0), call.Rel(1)
		tp, bp := top.AsProject(), bottom.AsProject()
		exprs := make([]rel.Expr, len(tp.Exprs))
		for i, e := range tp.Exprs {
			exprs[i] = rel.SubstituteRefs(e, bp.Exprs)
		}
		names := tp.Names
		if len(names) == 0 {
			names = columnNames(top)
		}
		return top.DeriveAs(rel.KindProject, rel.ProjectPayload{Exprs: exprs, Names: names}, top.Convention(), bottom.Input(0)).
			Absorb(bottom)
	})
}

// ProjectRemove 去掉原样输出输入列的投影
func ProjectRemove() rule.Rule {
	return rule.New(ProjectRemoveID, logicalAny(rel.KindProject), logical, func(call *rule.Call) *rel.Node {
		project := call.Rel(0)
		input := project.Input(0)
		if !project.AsProject().IsTrivial(len(input.Columns())) {
			return nil
		}
		if !sameNames(project.Columns(), input.Columns()) {
			return nil
		}
		return input
	})
}

// FilterProjectTranspose 过滤下推到投影之下
func FilterProjectTranspose() rule.Rule {
	op := logicalOperand(rel.KindFilter, logicalAny(rel.KindProject))
	return rule.New(FilterProjectTransposeID, op, logical, func(call *rule.Call) *rel.Node {
		filter, project := call.Rel(0), call.Rel(1)
		p := project.AsProject()
		cond := rel.SubstituteRefs(filter.AsFilter().Condition, p.Exprs)
		pushed := filter.DeriveAs(rel.KindFilter, rel.FilterPayload{Condition: cond}, filter.Convention(), project.Input(0))
		return project.DeriveAs(rel.KindProject, p, project.Convention(), pushed)
	})
}

// AggregateReduceFunctions 将 AVG 拆为 SUM/COUNT，外加一个做除法的投影
func AggregateReduceFunctions() rule.Rule {
	return rule.New(AggregateReduceFunctionsID, logicalAny(rel.KindAggregate), logical, func(call *rule.Call) *rel.Node {
		agg := call.Rel(0)
		p := agg.AsAggregate()
		if !hasAvg(p.Calls) {
			return nil
		}

		groups := len(p.GroupKeys)
		var calls []rel.AggCall
		indexOf := func(c rel.AggCall) int {
			for i, existing := range calls {
				if existing.Equal(c) {
					return groups + i
				}
			}
			calls = append(calls, c)
			return groups + len(calls) - 1
		}

		exprs := make([]rel.Expr, 0, groups+len(p.Calls))
		for i := 0; i < groups; i++ {
			exprs = append(exprs, rel.Ref(i))
		}
		for _, c := range p.Calls {
			if c.Func != rel.AggAvg {
				exprs = append(exprs, rel.Ref(indexOf(c)))
				continue
			}
			sum := indexOf(rel.AggCall{Func: rel.AggSum, Args: c.Args, Distinct: c.Distinct})
			count := indexOf(rel.AggCall{Func: rel.AggCount, Args: c.Args, Distinct: c.Distinct})
			exprs = append(exprs, rel.NewCall(rel.OpDivide, rel.Ref(sum), rel.Ref(count)))
		}

		reduced := agg.DeriveAs(rel.KindAggregate, rel.AggregatePayload{GroupKeys: p.GroupKeys, Calls: calls}, agg.Convention(), agg.Inputs()...)
		return rel.New(rel.KindProject, rel.ProjectPayload{Exprs: exprs, Names: columnNames(agg)}, agg.Convention(), reduced)
	})
}

func hasAvg(calls []rel.AggCall) bool {
	for _, c := range calls {
		if c.Func == rel.AggAvg {
			return true
		}
	}
	return false
}

func columnNames(n *rel.Node) []string {
	cols := n.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func sameNames(a, b []rel.Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}
