package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

func emp() *rel.Node {
	return rel.NewTableScan([]string{"CATALOG", "SALES", "EMP"}, []rel.Column{
		{Name: "EMPNO", Type: rel.TypeInteger},
		{Name: "ENAME", Type: rel.TypeVarchar},
		{Name: "DEPTNO", Type: rel.TypeInteger},
		{Name: "SAL", Type: rel.TypeInteger},
	})
}

func dept() *rel.Node {
	return rel.NewTableScan([]string{"CATALOG", "SALES", "DEPT"}, []rel.Column{
		{Name: "DEPTNO", Type: rel.TypeInteger},
		{Name: "NAME", Type: rel.TypeVarchar},
	})
}

func resourceHint() rel.Hint {
	return rel.NewHintBuilder("resource").KVOption("MEM", "1024MB").MustBuild()
}

func TestProjectToCalc_KeepsHints(t *testing.T) {
	project := rel.Attach(rel.NewProject(emp(), []rel.Expr{rel.Ref(1), rel.Ref(3)}, nil), resourceHint())

	out, ok := rule.TryApply(ProjectToCalc(), project)
	require.True(t, ok)
	assert.Equal(t, rel.KindCalc, out.Kind())
	require.Len(t, out.Hints(), 1)
	assert.Equal(t, "RESOURCE", out.Hints()[0].Name())
	assert.Equal(t, []int{0}, out.Hints()[0].InheritPath())
	assert.Equal(t, project.Columns(), out.Columns())
}

func TestFilterMerge_CarriesBothHints(t *testing.T) {
	bottom := rel.Attach(rel.NewFilter(emp(), rel.Eq(rel.Ref(2), rel.Lit(10))), resourceHint())
	top := rel.Attach(rel.NewFilter(bottom, rel.NewCall(rel.OpGreaterThan, rel.Ref(3), rel.Lit(100))), resourceHint())

	out, ok := rule.TryApply(FilterMerge(), top)
	require.True(t, ok)
	assert.Equal(t, "AND(=($2, 10), >($3, 100))", out.AsFilter().Condition.String())
	require.Len(t, out.Hints(), 2)
	assert.Equal(t, []int{0}, out.Hints()[0].InheritPath())
	assert.Equal(t, []int{1}, out.Hints()[1].InheritPath())
	assert.Equal(t, rel.KindTableScan, out.Input(0).Kind())
}

func TestProjectMerge(t *testing.T) {
	bottom := rel.NewProject(emp(), []rel.Expr{rel.Ref(3), rel.Ref(1)}, []string{"SAL", "ENAME"})
	top := rel.NewProject(bottom, []rel.Expr{rel.Ref(1)}, nil)

	out, ok := rule.TryApply(ProjectMerge(), top)
	require.True(t, ok)
	assert.Equal(t, "[$1]", "["+out.AsProject().Exprs[0].String()+"]")
	assert.Equal(t, "ENAME", out.Columns()[0].Name)
	assert.Empty(t, out.Hints())
}

func TestProjectRemove(t *testing.T) {
	scan := emp()
	trivial := rel.NewProject(scan, []rel.Expr{rel.Ref(0), rel.Ref(1), rel.Ref(2), rel.Ref(3)}, nil)
	out, ok := rule.TryApply(ProjectRemove(), trivial)
	require.True(t, ok)
	assert.Same(t, scan, out)

	renamed := rel.NewProject(scan, []rel.Expr{rel.Ref(0), rel.Ref(1), rel.Ref(2), rel.Ref(3)}, []string{"A", "B", "C", "D"})
	_, ok = rule.TryApply(ProjectRemove(), renamed)
	assert.False(t, ok)

	narrowing := rel.NewProject(scan, []rel.Expr{rel.Ref(0)}, nil)
	_, ok = rule.TryApply(ProjectRemove(), narrowing)
	assert.False(t, ok)
}

func TestFilterProjectTranspose_PathsPerOperand(t *testing.T) {
	project := rel.Attach(rel.NewProject(emp(), []rel.Expr{rel.Ref(2), rel.Ref(3)}, nil), resourceHint())
	filter := rel.NewFilter(project, rel.Eq(rel.Ref(0), rel.Lit(10)))

	out, ok := rule.TryApply(FilterProjectTranspose(), filter)
	require.True(t, ok)
	assert.Equal(t, rel.KindProject, out.Kind())
	require.Len(t, out.Hints(), 1)
	assert.Equal(t, []int{1}, out.Hints()[0].InheritPath())

	pushed := out.Input(0)
	assert.Equal(t, rel.KindFilter, pushed.Kind())
	assert.Equal(t, "=($2, 10)", pushed.AsFilter().Condition.String())
	assert.Empty(t, pushed.Hints())
}

func TestAggregateReduceFunctions(t *testing.T) {
	h := rel.NewHintBuilder("agg_strategy").Option("TWO_PHASE").MustBuild()
	agg := rel.Attach(rel.NewAggregate(emp(), []int{1}, []rel.AggCall{
		{Func: rel.AggAvg, Args: []int{3}, Name: "AVG_SAL"},
		{Func: rel.AggSum, Args: []int{3}, Name: "SUM_SAL"},
	}), h)

	out, ok := rule.TryApply(AggregateReduceFunctions(), agg)
	require.True(t, ok)

	assert.Equal(t, rel.KindProject, out.Kind())
	assert.Empty(t, out.Hints())
	assert.Equal(t, []string{"ENAME", "AVG_SAL", "SUM_SAL"}, columnNames(out))
	exprs := out.AsProject().Exprs
	assert.Equal(t, "/($1, $2)", exprs[1].String())
	assert.Equal(t, "$1", exprs[2].String())

	reduced := out.Input(0)
	assert.Equal(t, rel.KindAggregate, reduced.Kind())
	calls := reduced.AsAggregate().Calls
	require.Len(t, calls, 2)
	assert.Equal(t, rel.AggSum, calls[0].Func)
	assert.Equal(t, rel.AggCount, calls[1].Func)
	require.Len(t, reduced.Hints(), 1)
	assert.True(t, reduced.Hints()[0].Equal(h.WithInheritPath(0)))

	_, ok = rule.TryApply(AggregateReduceFunctions(), reduced)
	assert.False(t, ok)
}

func TestEnumerableJoinRules(t *testing.T) {
	h := rel.NewHintBuilder("no_hash_join").MustBuild()
	join := rel.Attach(rel.NewJoin(emp(), dept(), rel.JoinInner, rel.Eq(rel.Ref(2), rel.Ref(4))), h)

	hash, ok := rule.TryApply(EnumerableHashJoin(), join)
	require.True(t, ok)
	assert.Equal(t, rel.KindHashJoin, hash.Kind())
	assert.Equal(t, rel.ConventionEnumerable, hash.Convention())
	assert.Equal(t, []int{0}, hash.Hints()[0].InheritPath())

	merge, ok := rule.TryApply(EnumerableMergeJoin(), join)
	require.True(t, ok)
	assert.Equal(t, rel.KindMergeJoin, merge.Kind())
	assert.Equal(t, rel.KindSort, merge.Input(0).Kind())
	assert.Equal(t, rel.NewCollation(2), merge.Input(0).Traits().Collation())
	assert.Equal(t, rel.NewCollation(0), merge.Input(1).Traits().Collation())
	assert.Empty(t, merge.Input(0).Hints())

	cross := rel.NewJoin(emp(), dept(), rel.JoinInner, nil)
	_, ok = rule.TryApply(EnumerableHashJoin(), cross)
	assert.False(t, ok)
	_, ok = rule.TryApply(EnumerableMergeJoin(), cross)
	assert.False(t, ok)
	nl, ok := rule.TryApply(EnumerableNestedLoopJoin(), cross)
	require.True(t, ok)
	assert.Equal(t, rel.KindNestedLoopJoin, nl.Kind())
}

func TestEnumerableRules_SkipPhysicalNodes(t *testing.T) {
	scan, ok := rule.TryApply(EnumerableTableScan(), emp())
	require.True(t, ok)
	_, ok = rule.TryApply(EnumerableTableScan(), scan)
	assert.False(t, ok)
	assert.True(t, rule.IsConverterRule(EnumerableTableScan()))
	assert.False(t, rule.IsConverterRule(FilterMerge()))
}

func TestSortConverter(t *testing.T) {
	c := SortConverter()
	assert.Equal(t, rel.DimCollation, c.Dimension())
	assert.True(t, c.CanConvert(rel.Collation(nil), rel.NewCollation(1)))
	assert.False(t, c.CanConvert(rel.NewCollation(1, 2), rel.NewCollation(1)))
	assert.False(t, c.CanConvert(rel.NewCollation(1), rel.Collation(nil)))

	ref := rel.NewSetRef(0, rel.NewTraitSet(rel.ConventionEnumerable), emp().Columns())
	sorted := c.Convert(ref, rel.NewTraitSet(rel.ConventionEnumerable, rel.NewCollation(1)))
	assert.Equal(t, rel.KindSort, sorted.Kind())
	assert.Equal(t, "ENUMERABLE.[1]", sorted.Traits().Digest())
}

func TestByID(t *testing.T) {
	r, ok := ByID(EnumerableMergeJoinID)
	require.True(t, ok)
	assert.Equal(t, EnumerableMergeJoinID, r.ID())
	_, ok = ByID("Missing")
	assert.False(t, ok)
}
