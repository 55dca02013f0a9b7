package optimizer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kasuganosora/relopt/pkg/config"
	"github.com/kasuganosora/relopt/pkg/optimizer/cost"
	"github.com/kasuganosora/relopt/pkg/optimizer/heuristic"
	"github.com/kasuganosora/relopt/pkg/optimizer/hint"
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
	"github.com/kasuganosora/relopt/pkg/optimizer/rules"
	"github.com/kasuganosora/relopt/pkg/optimizer/volcano"
)

// Option 优化器选项
type Option func(*Optimizer)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHintStrategies 注册 hint 策略，可多次使用
func WithHintStrategies(register func(b *hint.TableBuilder)) Option {
	return func(o *Optimizer) {
		if register != nil {
			o.registers = append(o.registers, register)
		}
	}
}

// WithEstimator 替换按配置构造的代价估算器
func WithEstimator(e *cost.Estimator) Option {
	return func(o *Optimizer) {
		o.estimator = e
	}
}

// Optimizer 优化器：校验并下推 hint，执行启发式改写，再做基于代价的搜索。
// 构造后只读，每次 Optimize 使用新的规划器实例，可并发调用。
type Optimizer struct {
	cfg       config.OptimizerConfig
	logger    *zap.Logger
	registers []func(b *hint.TableBuilder)

	table      *hint.Table
	program    *heuristic.Program
	rules      []rule.Rule
	converters []rule.Converter
	estimator  *cost.Estimator
}

// NewOptimizer 按配置创建优化器，规则名称未知时返回全部错误
func NewOptimizer(cfg config.OptimizerConfig, opts ...Option) (*Optimizer, error) {
	o := &Optimizer{
		cfg:        cfg,
		logger:     zap.NewNop(),
		converters: rules.Converters(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var errs error

	b := hint.NewTableBuilder().Logger(o.logger)
	if cfg.StrictHints {
		b.ErrorHandler(hint.Strict())
	}
	for _, register := range o.registers {
		register(b)
	}
	table, err := b.Build()
	errs = multierr.Append(errs, err)
	o.table = table

	if cfg.Heuristic.Enabled && len(cfg.Heuristic.Phases) > 0 {
		program, err := buildProgram(cfg.Heuristic.Phases)
		errs = multierr.Append(errs, err)
		o.program = program
	}

	rs, err := resolveRules(cfg.Volcano.Rules)
	errs = multierr.Append(errs, err)
	o.rules = rs

	if o.estimator == nil {
		o.estimator = NewEstimator(cfg.Cost)
	}

	if errs != nil {
		return nil, fmt.Errorf("创建优化器失败: %w", errs)
	}
	return o, nil
}

// buildProgram 按配置顺序组装启发式阶段
func buildProgram(phases []config.PhaseConfig) (*heuristic.Program, error) {
	var errs error
	b := heuristic.NewProgramBuilder()
	for _, phase := range phases {
		order, err := heuristic.ParseOrder(phase.Order)
		errs = multierr.Append(errs, err)
		termination, err := heuristic.ParseTermination(phase.Termination)
		errs = multierr.Append(errs, err)
		rs, err := resolveRules(phase.Rules)
		errs = multierr.Append(errs, err)
		if errs == nil {
			b.AddPhase(phase.Name, order, termination, rs...)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return b.Build()
}

// resolveRules 按标识查找规则，汇总全部未知名称
func resolveRules(ids []string) ([]rule.Rule, error) {
	var (
		out  []rule.Rule
		errs error
	)
	for _, id := range ids {
		r, ok := rules.ByID(rule.ID(id))
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("未知的规则: %s", id))
			continue
		}
		out = append(out, r)
	}
	return out, errs
}

// NewEstimator 按成本配置构造估算器
func NewEstimator(cfg config.CostConfig) *cost.Estimator {
	var model cost.CostModel
	switch cfg.Model {
	case "adaptive":
		model = cost.NewAdaptiveCostModel(nil)
	default:
		m := cost.NewDefaultCostModel()
		if cfg.CPUFactor > 0 {
			m.CPUFactor = cfg.CPUFactor
		}
		if cfg.IOFactor > 0 {
			m.IoFactor = cfg.IOFactor
		}
		if cfg.MemoryFactor > 0 {
			m.MemoryFactor = cfg.MemoryFactor
		}
		model = m
	}

	opts := []cost.EstimatorOption{cost.WithDefaultRowCount(cfg.DefaultRowCount)}
	for table, rows := range cfg.Tables {
		opts = append(opts, cost.WithStatistics(table, cost.Statistics{RowCount: rows}))
	}
	return cost.NewEstimator(model, opts...)
}

// HintTable 构造出的 hint 注册表
func (o *Optimizer) HintTable() *hint.Table { return o.table }

// Estimator 代价估算器
func (o *Optimizer) Estimator() *cost.Estimator { return o.estimator }

// Optimize 返回满足 required 的最便宜计划。
// 优化器关闭时原样返回输入；hint 校验失败（严格模式）、启发式阶段超出迭代上限
// 或找不到计划时返回错误。
func (o *Optimizer) Optimize(ctx context.Context, root *rel.Node, required rel.TraitSet) (*rel.Node, error) {
	if root == nil {
		return nil, errors.New("optimize: nil plan")
	}
	if !o.cfg.Enabled {
		return root, nil
	}

	if err := o.table.ValidateTree(root); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if o.cfg.PropagateHints {
		root = o.table.Propagate(root)
	}

	if o.program != nil {
		hp := heuristic.NewPlanner(o.program,
			heuristic.WithLogger(o.logger),
			heuristic.WithHintTable(o.table),
			heuristic.WithMaxIterations(o.cfg.Heuristic.MaxIterations),
			heuristic.WithoutHintValidation())
		if err := hp.SetRoot(root); err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
		rewritten, err := hp.FindBestExp(ctx)
		if err != nil {
			return nil, fmt.Errorf("optimize: heuristic: %w", err)
		}
		root = rewritten
	}

	vp := volcano.NewPlanner(
		volcano.WithLogger(o.logger),
		volcano.WithHintTable(o.table),
		volcano.WithEstimator(o.estimator),
		volcano.WithMaxRounds(o.cfg.Volcano.MaxRounds),
		volcano.WithTimeout(o.cfg.Volcano.Timeout),
		volcano.WithConverterExclusion(o.cfg.Volcano.ExcludeConvertersByHint),
		volcano.WithoutHintValidation())
	if err := vp.AddRule(o.rules...); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if err := vp.AddConverter(o.converters...); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if err := vp.SetRoot(root, required); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	plan, err := vp.FindBestExp(ctx)
	if err != nil {
		return nil, fmt.Errorf("optimize: volcano: %w", err)
	}

	o.logger.Debug("plan optimized",
		zap.String("run", vp.RunID()),
		zap.Int("rounds", vp.Rounds()),
		zap.Stringer("cost", vp.BestCost()))
	return plan, nil
}
