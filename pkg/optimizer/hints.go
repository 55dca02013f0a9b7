package optimizer

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/hint"
	"github.com/kasuganosora/relopt/pkg/optimizer/rules"
)

// DefaultHintStrategies 注册兼容 TiDB 命名的常用 hint
//
// 连接算法:
//   - HASH_JOIN(t1, t2) / MERGE_JOIN(t1, t2): 只允许对应的连接实现，选项为连接两侧的表名
//   - NO_HASH_JOIN / NO_MERGE_JOIN: 禁止对应的连接实现
//
// 其余 hint 只做校验与下推，不影响规则选择:
//   - USE_INDEX / FORCE_INDEX / IGNORE_INDEX: 表扫描
//   - HASH_AGG / STREAM_AGG / AGG_STRATEGY(ONE_PHASE|TWO_PHASE): 聚合
func DefaultHintStrategies(b *hint.TableBuilder) {
	b.StrategyOf("hash_join", hint.NewStrategyBuilder(hint.JoinWithTables()).
		ConverterRules(rules.EnumerableHashJoinID).Build()).
		StrategyOf("merge_join", hint.NewStrategyBuilder(hint.JoinWithTables()).
			ConverterRules(rules.EnumerableMergeJoinID).Build()).
		StrategyOf("no_hash_join", hint.NewStrategyBuilder(hint.Join).
			ExcludedRules(rules.EnumerableHashJoinID).Build()).
		StrategyOf("no_merge_join", hint.NewStrategyBuilder(hint.Join).
			ExcludedRules(rules.EnumerableMergeJoinID).Build()).
		Strategy("use_index", hint.TableScan).
		Strategy("force_index", hint.TableScan).
		Strategy("ignore_index", hint.TableScan).
		Strategy("hash_agg", hint.Aggregate).
		Strategy("stream_agg", hint.Aggregate).
		StrategyOf("agg_strategy", hint.NewStrategyBuilder(hint.Aggregate).
			OptionChecker(hint.SingleOptionOf("ONE_PHASE", "TWO_PHASE")).Build())
}
