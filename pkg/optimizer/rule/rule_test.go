package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

func scan(name string) *rel.Node {
	return rel.NewTableScan([]string{name}, []rel.Column{
		{Name: "ID", Type: rel.TypeInteger},
		{Name: "NAME", Type: rel.TypeVarchar},
	})
}

func TestMatch_PreOrderBinding(t *testing.T) {
	filter := rel.NewFilter(scan("EMP"), rel.Eq(rel.Ref(0), rel.Lit(1)))
	project := rel.NewProject(filter, []rel.Expr{rel.Ref(1)}, nil)

	op := OperandOf(rel.KindProject, OperandOf(rel.KindFilter, AnyOperand(rel.KindTableScan)))
	bindings := Match(op, project, TreeInputs)
	require.Len(t, bindings, 1)
	require.Len(t, bindings[0], 3)
	assert.Same(t, project, bindings[0][0])
	assert.Same(t, filter, bindings[0][1])
	assert.Equal(t, rel.KindTableScan, bindings[0][2].Kind())
	assert.Equal(t, 3, op.Size())
}

func TestMatch_ArityAndConvention(t *testing.T) {
	join := rel.NewJoin(scan("EMP"), scan("DEPT"), rel.JoinInner, rel.Eq(rel.Ref(0), rel.Ref(2)))

	assert.Empty(t, Match(OperandOf(rel.KindJoin, AnyOperand(rel.KindAny)), join, TreeInputs))
	assert.Len(t, Match(AnyOperand(rel.KindJoin), join, TreeInputs), 1)
	assert.Empty(t, Match(AnyOperand(rel.KindJoin).WithConvention(rel.ConventionEnumerable), join, TreeInputs))

	merge := join.DeriveAs(rel.KindMergeJoin, join.Payload(), rel.ConventionEnumerable, join.Inputs()...)
	assert.Empty(t, Match(AnyOperand(rel.KindJoin), merge, TreeInputs))
	assert.Len(t, Match(AnyOperand(rel.KindJoin).OfFamily(), merge, TreeInputs), 1)
}

func TestMatch_EnumeratesAlternatives(t *testing.T) {
	a := scan("A")
	b := scan("B")
	project := rel.NewProject(a, []rel.Expr{rel.Ref(0)}, nil)
	expand := func(n *rel.Node, i int) []*rel.Node { return []*rel.Node{a, b} }

	bindings := Match(OperandOf(rel.KindProject, AnyOperand(rel.KindTableScan)), project, expand)
	require.Len(t, bindings, 2)
	assert.Same(t, a, bindings[0][1])
	assert.Same(t, b, bindings[1][1])
}

func TestBindings_RequiredTraits(t *testing.T) {
	r := New("EnumerableOnly", AnyOperand(rel.KindTableScan),
		TraitConstraint{Required: rel.NewTraitSet(rel.ConventionEnumerable)},
		func(call *Call) *rel.Node { return nil })

	assert.Empty(t, Bindings(r, scan("EMP"), TreeInputs))
	assert.Len(t, Bindings(r, scan("EMP").WithConvention(rel.ConventionEnumerable), TreeInputs), 1)
}

func TestPropagate_ShapePreservingRule(t *testing.T) {
	h := rel.NewHintBuilder("no_hash_join").MustBuild()
	join := rel.Attach(rel.NewJoin(scan("EMP"), scan("DEPT"), rel.JoinInner, rel.Eq(rel.Ref(0), rel.Ref(2))), h)

	r := New("ToEnumerable", AnyOperand(rel.KindJoin), TraitConstraint{}, func(call *Call) *rel.Node {
		j := call.Rel(0)
		return j.Derive(rel.ConventionEnumerable, j.Inputs()...)
	})

	out, ok := TryApply(r, join)
	require.True(t, ok)
	require.Len(t, out.Hints(), 1)
	assert.Equal(t, "NO_HASH_JOIN", out.Hints()[0].Name())
	assert.Equal(t, []int{0}, out.Hints()[0].InheritPath())
	assert.Empty(t, out.Origins())
	// 未改动的子树原样复用
	assert.Same(t, join.Input(0), out.Input(0))
	// 原节点不受影响
	assert.Empty(t, join.Hints()[0].InheritPath())
}

func TestPropagate_MultiNodeRule(t *testing.T) {
	top := rel.NewHintBuilder("resource").KVOption("MEM", "1024").MustBuild()
	bottom := rel.NewHintBuilder("resource").KVOption("MEM", "1024").MustBuild()

	base := scan("EMP")
	project := rel.Attach(rel.NewProject(base, []rel.Expr{rel.Ref(0), rel.Ref(1)}, nil), bottom)
	filter := rel.Attach(rel.NewFilter(project, rel.Eq(rel.Ref(0), rel.Lit(1))), top)

	// Filter(Project(x)) => Project(Filter(x))
	r := New("Transpose", OperandOf(rel.KindFilter, AnyOperand(rel.KindProject)), TraitConstraint{}, func(call *Call) *rel.Node {
		f, p := call.Rel(0), call.Rel(1)
		cond := rel.SubstituteRefs(f.AsFilter().Condition, p.AsProject().Exprs)
		newFilter := f.DeriveAs(rel.KindFilter, rel.FilterPayload{Condition: cond}, f.Convention(), p.Input(0))
		return p.DeriveAs(rel.KindProject, p.Payload(), p.Convention(), newFilter)
	})

	out, ok := TryApply(r, filter)
	require.True(t, ok)
	assert.Equal(t, rel.KindProject, out.Kind())
	require.Len(t, out.Hints(), 1)
	assert.Equal(t, []int{1}, out.Hints()[0].InheritPath())

	pushed := out.Input(0)
	assert.Equal(t, rel.KindFilter, pushed.Kind())
	require.Len(t, pushed.Hints(), 1)
	assert.Equal(t, []int{0}, pushed.Hints()[0].InheritPath())
	assert.Same(t, base, pushed.Input(0))

	// 相同名称与选项、不同路径的 hint 不会合并
	assert.False(t, out.Hints()[0].Equal(pushed.Hints()[0]))
}

func TestPropagate_FreshNodesCarryNoHints(t *testing.T) {
	h := rel.NewHintBuilder("agg_strategy").Option("TWO_PHASE").MustBuild()
	base := scan("EMP")
	agg := rel.Attach(rel.NewAggregate(base, []int{1}, []rel.AggCall{{Func: rel.AggCount}}), h)

	r := New("WrapInProject", AnyOperand(rel.KindAggregate), TraitConstraint{}, func(call *Call) *rel.Node {
		a := call.Rel(0)
		inner := a.Derive(a.Convention(), a.Inputs()...)
		return rel.NewProject(inner, []rel.Expr{rel.Ref(1), rel.Ref(0)}, nil)
	})

	out, ok := TryApply(r, agg)
	require.True(t, ok)
	assert.Empty(t, out.Hints())
	require.Len(t, out.Input(0).Hints(), 1)
	assert.Equal(t, []int{0}, out.Input(0).Hints()[0].InheritPath())
}

func TestTryApply_NoOpIsNotAMatch(t *testing.T) {
	r := New("Identity", AnyOperand(rel.KindTableScan), TraitConstraint{}, func(call *Call) *rel.Node {
		return call.Rel(0).Derive(call.Rel(0).Convention())
	})
	_, ok := TryApply(r, scan("EMP"))
	assert.False(t, ok)
}

func TestTryApply_GuardSkipsBinding(t *testing.T) {
	r := New("ToEnumerable", AnyOperand(rel.KindTableScan), TraitConstraint{}, func(call *Call) *rel.Node {
		return call.Rel(0).Derive(rel.ConventionEnumerable)
	})
	_, ok := TryApply(r, scan("EMP"), func(*Call) bool { return false })
	assert.False(t, ok)
}

func TestIsConverterRule(t *testing.T) {
	conv := New("C", AnyOperand(rel.KindAny), TraitConstraint{
		Required: rel.NewTraitSet(rel.ConventionNone),
		Produced: rel.NewTraitSet(rel.ConventionEnumerable),
	}, func(*Call) *rel.Node { return nil })
	logical := New("L", AnyOperand(rel.KindAny), TraitConstraint{}, func(*Call) *rel.Node { return nil })

	assert.True(t, IsConverterRule(conv))
	assert.False(t, IsConverterRule(logical))
}
