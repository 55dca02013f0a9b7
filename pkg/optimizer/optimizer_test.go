package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kasuganosora/relopt/pkg/config"
	"github.com/kasuganosora/relopt/pkg/optimizer/cost"
	"github.com/kasuganosora/relopt/pkg/optimizer/heuristic"
	"github.com/kasuganosora/relopt/pkg/optimizer/hint"
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rules"
)

var enumerable = rel.NewTraitSet(rel.ConventionEnumerable)

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

func empDept() *rel.Node {
	return rel.NewJoin(emp(), dept(), rel.JoinInner, rel.Eq(rel.Ref(2), rel.Ref(4)))
}

func testConfig() config.OptimizerConfig {
	cfg := config.DefaultConfig().Optimizer
	cfg.Cost.Tables = map[string]int64{"EMP": 14, "DEPT": 4}
	return cfg
}

func joinHints(b *hint.TableBuilder) {
	b.StrategyOf("no_hash_join", hint.NewStrategyBuilder(hint.Join).
		ExcludedRules(rules.EnumerableHashJoinID).Build()).
		Strategy("index", hint.TableScan)
}

func newOptimizer(t *testing.T, cfg config.OptimizerConfig, opts ...Option) *Optimizer {
	t.Helper()
	o, err := NewOptimizer(cfg, append([]Option{WithHintStrategies(joinHints)}, opts...)...)
	require.NoError(t, err)
	return o
}

func TestOptimize_DefaultConfigPicksHashJoin(t *testing.T) {
	o := newOptimizer(t, testConfig())

	plan, err := o.Optimize(context.Background(), empDept(), enumerable)
	require.NoError(t, err)
	assert.Equal(t, rel.KindHashJoin, plan.Kind())
	assert.Equal(t, 2, o.HintTable().Len())
}

func TestOptimize_PropagatesQueryBlockHint(t *testing.T) {
	cfg := testConfig()
	cfg.Volcano.Rules = []string{
		string(rules.EnumerableTableScanID),
		string(rules.EnumerableProjectID),
		string(rules.EnumerableHashJoinID),
		string(rules.EnumerableMergeJoinID),
	}
	o := newOptimizer(t, cfg)

	hinted := rel.NewHintBuilder("no_hash_join").MustBuild()
	root := rel.Attach(rel.NewProject(empDept(), []rel.Expr{rel.Ref(1), rel.Ref(5)}, nil), hinted)

	plan, err := o.Optimize(context.Background(), root, enumerable)
	require.NoError(t, err)

	require.Equal(t, rel.KindProject, plan.Kind())
	join := plan.Input(0)
	require.Equal(t, rel.KindMergeJoin, join.Kind())
	require.Len(t, join.Hints(), 1)
	assert.Equal(t, "NO_HASH_JOIN", join.Hints()[0].Name())
	assert.Equal(t, []int{0, 0}, join.Hints()[0].InheritPath())
}

func TestOptimize_WithoutPropagationHintStaysOnProject(t *testing.T) {
	cfg := testConfig()
	cfg.PropagateHints = false
	o := newOptimizer(t, cfg)

	hinted := rel.NewHintBuilder("no_hash_join").MustBuild()
	root := rel.Attach(rel.NewProject(empDept(), []rel.Expr{rel.Ref(1), rel.Ref(5)}, nil), hinted)

	plan, err := o.Optimize(context.Background(), root, enumerable)
	require.NoError(t, err)
	assert.Equal(t, rel.KindHashJoin, plan.Input(0).Kind())
}

func TestOptimize_HeuristicPhaseRunsFirst(t *testing.T) {
	o := newOptimizer(t, testConfig())
	gt := func(field int) rel.Expr { return rel.NewCall(rel.OpGreaterThan, rel.Ref(field), rel.Lit(1)) }

	plan, err := o.Optimize(context.Background(), rel.NewFilter(rel.NewFilter(emp(), gt(0)), gt(3)), enumerable)
	require.NoError(t, err)

	require.Equal(t, rel.KindFilter, plan.Kind())
	assert.Len(t, rel.Conjunctions(plan.AsFilter().Condition), 2)
	assert.Equal(t, rel.KindTableScan, plan.Input(0).Kind())
	assert.Equal(t, rel.ConventionEnumerable, plan.Convention())
}

func TestOptimize_ConfiguredHeuristicPhases(t *testing.T) {
	cfg := testConfig()
	cfg.Heuristic.Phases = []config.PhaseConfig{
		{Name: "merge", Order: "top_down", Termination: "fixpoint", Rules: []string{"FilterMergeRule"}},
		{Name: "calc", Order: "bottom_up", Termination: "once", Rules: []string{"ProjectToCalcRule"}},
	}
	o := newOptimizer(t, cfg)

	phases := o.program.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, "merge", phases[0].Name)
	assert.Equal(t, heuristic.TopDown, phases[0].Order)
	assert.Equal(t, heuristic.UntilFixpoint, phases[0].Termination)
	assert.Equal(t, "calc", phases[1].Name)
	assert.Equal(t, heuristic.BottomUp, phases[1].Order)
	assert.Equal(t, heuristic.OncePerNode, phases[1].Termination)

	gt := func(field int) rel.Expr { return rel.NewCall(rel.OpGreaterThan, rel.Ref(field), rel.Lit(1)) }
	root := rel.NewProject(rel.NewFilter(rel.NewFilter(emp(), gt(0)), gt(3)), []rel.Expr{rel.Ref(0), rel.Ref(2)}, nil)
	plan, err := o.Optimize(context.Background(), root, enumerable)
	require.NoError(t, err)

	require.Equal(t, rel.KindCalc, plan.Kind())
	filter := plan.Input(0)
	require.Equal(t, rel.KindFilter, filter.Kind())
	assert.Len(t, rel.Conjunctions(filter.AsFilter().Condition), 2)
	assert.Equal(t, rel.KindTableScan, filter.Input(0).Kind())
}

func TestNewOptimizer_InvalidPhase(t *testing.T) {
	cfg := testConfig()
	cfg.Heuristic.Phases = []config.PhaseConfig{{Name: "p", Order: "sideways", Termination: "never", Rules: []string{"FilterMergeRule"}}}

	_, err := NewOptimizer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown order: sideways")
	assert.Contains(t, err.Error(), "unknown termination: never")
}

func TestOptimize_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	o := newOptimizer(t, cfg)

	root := empDept()
	plan, err := o.Optimize(context.Background(), root, enumerable)
	require.NoError(t, err)
	assert.Same(t, root, plan)

	_, err = o.Optimize(context.Background(), nil, enumerable)
	assert.Error(t, err)
}

func TestOptimize_StrictHints(t *testing.T) {
	cfg := testConfig()
	cfg.StrictHints = true
	o := newOptimizer(t, cfg)

	root := rel.Attach(empDept(), rel.NewHintBuilder("mystery").MustBuild())
	_, err := o.Optimize(context.Background(), root, enumerable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Hint: MYSTERY should be registered in the HintStrategyTable")
}

func TestOptimize_WarnModeLogsAndContinues(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	o := newOptimizer(t, testConfig(), WithLogger(zap.New(core)))

	root := rel.Attach(empDept(), rel.NewHintBuilder("mystery").MustBuild())
	plan, err := o.Optimize(context.Background(), root, enumerable)
	require.NoError(t, err)
	assert.Equal(t, rel.KindHashJoin, plan.Kind())
	// 只在入口校验一次
	assert.Equal(t, 1, logs.FilterMessage("Hint: MYSTERY should be registered in the HintStrategyTable").Len())
}

func TestOptimize_NoPlanWrapsSentinel(t *testing.T) {
	cfg := testConfig()
	cfg.Volcano.Rules = nil
	o := newOptimizer(t, cfg)

	_, err := o.Optimize(context.Background(), emp(), enumerable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plan found")
}

func TestNewOptimizer_UnknownRules(t *testing.T) {
	cfg := testConfig()
	cfg.Heuristic.Phases = []config.PhaseConfig{{Name: "logical", Rules: []string{"BogusRule"}}}
	cfg.Volcano.Rules = []string{"EnumerableTableScanRule", "AlsoBogusRule"}

	_, err := NewOptimizer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "创建优化器失败")
	assert.Contains(t, err.Error(), "未知的规则: BogusRule")
	assert.Contains(t, err.Error(), "未知的规则: AlsoBogusRule")
}

func TestNewOptimizer_HintRegistrationErrors(t *testing.T) {
	_, err := NewOptimizer(testConfig(), WithHintStrategies(func(b *hint.TableBuilder) {
		b.Strategy("index", hint.TableScan).Strategy("INDEX", hint.TableScan)
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestNewEstimator(t *testing.T) {
	cfg := testConfig().Cost
	cfg.CPUFactor = 0.5
	cfg.DefaultRowCount = 42

	e := NewEstimator(cfg)
	model, ok := e.Model().(*cost.DefaultCostModel)
	require.True(t, ok)
	assert.Equal(t, 0.5, model.CPUFactor)
	assert.Equal(t, 0.1, model.IoFactor)
	assert.Equal(t, int64(14), e.TableRows("emp"))
	assert.Equal(t, int64(42), e.TableRows("salgrade"))

	cfg.Model = "adaptive"
	assert.IsType(t, &cost.AdaptiveCostModel{}, NewEstimator(cfg).Model())
}

func TestWithEstimator(t *testing.T) {
	e := cost.NewEstimator(nil)
	o := newOptimizer(t, testConfig(), WithEstimator(e))
	assert.Same(t, e, o.Estimator())
}

func TestDefaultHintStrategies(t *testing.T) {
	o, err := NewOptimizer(testConfig(), WithHintStrategies(DefaultHintStrategies))
	require.NoError(t, err)
	assert.Equal(t, 10, o.HintTable().Len())

	// MERGE_JOIN(EMP, DEPT) 只允许归并连接，嵌套循环与哈希连接都被排除
	mergeJoin := rel.NewHintBuilder("merge_join").Option("EMP", "DEPT").MustBuild()
	root := rel.NewProject(rel.Attach(empDept(), mergeJoin), []rel.Expr{rel.Ref(1), rel.Ref(5)}, nil)

	plan, err := o.Optimize(context.Background(), root, enumerable)
	require.NoError(t, err)
	assert.Equal(t, rel.KindMergeJoin, plan.Input(0).Kind())

	bad := rel.Attach(rel.NewAggregate(emp(), []int{2}, nil),
		rel.NewHintBuilder("agg_strategy").Option("THREE_PHASE").MustBuild())
	cfg := testConfig()
	cfg.StrictHints = true
	strict, err := NewOptimizer(cfg, WithHintStrategies(DefaultHintStrategies))
	require.NoError(t, err)
	_, err = strict.Optimize(context.Background(), bad, enumerable)
	assert.ErrorContains(t, err, "Hint AGG_STRATEGY only allows single option")
}
