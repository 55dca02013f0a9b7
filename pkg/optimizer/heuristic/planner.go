package heuristic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasuganosora/relopt/pkg/optimizer/hint"
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// DefaultMaxIterations 每个阶段默认允许的规则应用次数
const DefaultMaxIterations = 1000

// State 规划器状态
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option 规划器选项
type Option func(*Planner)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHintTable 设置 hint 注册表，用于规则禁用判断和根节点校验
func WithHintTable(table *hint.Table) Option {
	return func(p *Planner) {
		if table != nil {
			p.table = table
		}
	}
}

// WithMaxIterations 设置每个阶段的迭代上限
func WithMaxIterations(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxIterations = n
		}
	}
}

// WithoutHintValidation SetRoot 不再校验 hint，用于调用方已校验过的树
func WithoutHintValidation() Option {
	return func(p *Planner) {
		p.skipValidation = true
	}
}

// Planner 启发式规划器：按程序顺序执行阶段，每个位置应用第一个匹配且未被禁用的规则，不比较代价。
// 单个实例不能并发使用。
type Planner struct {
	program        *Program
	table          *hint.Table
	logger         *zap.Logger
	maxIterations  int
	skipValidation bool

	root  *rel.Node
	state State
	runID string
}

// NewPlanner 创建启发式规划器
func NewPlanner(program *Program, opts ...Option) *Planner {
	if program == nil {
		program = &Program{}
	}
	p := &Planner{
		program:       program,
		table:         hint.EmptyTable(),
		logger:        zap.NewNop(),
		maxIterations: DefaultMaxIterations,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State 当前状态
func (p *Planner) State() State { return p.state }

// Root 当前根节点，运行结束后为改写结果
func (p *Planner) Root() *rel.Node { return p.root }

// RunID 最近一次运行的标识
func (p *Planner) RunID() string { return p.runID }

// SetRoot 设置待改写的树，并用注册表校验树上的 hint。
// 严格模式下校验失败返回错误，规划器保持原状态。
func (p *Planner) SetRoot(root *rel.Node) error {
	if p.state == StateRunning {
		return ErrPlannerBusy
	}
	if root == nil {
		return ErrNoRoot
	}
	if !p.skipValidation {
		if err := p.table.ValidateTree(root); err != nil {
			return fmt.Errorf("set root: %w", err)
		}
	}
	p.root = root
	p.state = StateIdle
	return nil
}

// FindBestExp 依次执行所有阶段，返回改写后的树；没有规则匹配时返回原树
func (p *Planner) FindBestExp(ctx context.Context) (*rel.Node, error) {
	if p.state == StateRunning {
		return nil, ErrPlannerBusy
	}
	if p.root == nil {
		return nil, ErrNoRoot
	}

	p.state = StateRunning
	p.runID = uuid.NewString()
	logger := p.logger.With(zap.String("run", p.runID))

	current := p.root
	for _, phase := range p.program.phases {
		logger.Debug("phase start",
			zap.String("phase", phase.Name),
			zap.Stringer("order", phase.Order),
			zap.Stringer("termination", phase.Termination))

		r := &phaseRun{
			ctx:    ctx,
			phase:  phase,
			limit:  p.maxIterations,
			logger: logger,
			guard:  p.notExcluded(logger),
		}
		next, err := r.execute(current)
		if err != nil {
			p.state = StateAborted
			logger.Debug("run aborted", zap.String("phase", phase.Name), zap.Error(err))
			return nil, err
		}
		current = next
		logger.Debug("phase done", zap.String("phase", phase.Name), zap.Int("iterations", r.iterations))
	}

	p.root = current
	p.state = StateDone
	return current, nil
}

// notExcluded 绑定中任一节点的 hint 禁止该规则时跳过
func (p *Planner) notExcluded(logger *zap.Logger) rule.Guard {
	return func(call *rule.Call) bool {
		for _, n := range call.Rels() {
			if p.table.IsRuleExcluded(n, call.Rule()) {
				logger.Debug("rule excluded by hint",
					zap.String("rule", string(call.Rule().ID())),
					zap.String("hints", rel.HintsString(n.Hints())))
				return false
			}
		}
		return true
	}
}

// phaseRun 单个阶段的一次执行
type phaseRun struct {
	ctx        context.Context
	phase      Phase
	limit      int
	logger     *zap.Logger
	guard      rule.Guard
	iterations int
}

func (r *phaseRun) execute(root *rel.Node) (*rel.Node, error) {
	if r.phase.Termination == OncePerNode {
		out, _, err := r.sweep(root)
		return out, err
	}

	for {
		var (
			next    *rel.Node
			changed bool
			err     error
		)
		if r.phase.Order == Arbitrary {
			next, changed, err = r.sweep(root)
		} else {
			next, changed, err = r.rewriteFirst(root)
		}
		if err != nil {
			return nil, err
		}
		if !changed {
			return root, nil
		}
		root = next
	}
}

// rewriteFirst 按遍历顺序找到第一个可改写的位置，替换后立即返回
func (r *phaseRun) rewriteFirst(n *rel.Node) (*rel.Node, bool, error) {
	if r.phase.Order == TopDown {
		if out, ok, err := r.applyAt(n); err != nil || ok {
			return out, ok, err
		}
	}
	for i, in := range n.Inputs() {
		next, ok, err := r.rewriteFirst(in)
		if err != nil {
			return nil, false, err
		}
		if ok {
			inputs := n.Inputs()
			inputs[i] = next
			return n.WithInputs(inputs...), true, nil
		}
	}
	if r.phase.Order == BottomUp {
		return r.applyAt(n)
	}
	return n, false, nil
}

// sweep 每个节点处理一次；自顶向下时继续处理替换结果的输入
func (r *phaseRun) sweep(n *rel.Node) (*rel.Node, bool, error) {
	changed := false
	if r.phase.Order != BottomUp {
		out, ok, err := r.applyAt(n)
		if err != nil {
			return nil, false, err
		}
		n, changed = out, ok
	}

	inputs := n.Inputs()
	inputsChanged := false
	for i, in := range inputs {
		next, ok, err := r.sweep(in)
		if err != nil {
			return nil, false, err
		}
		if ok {
			inputs[i] = next
			inputsChanged = true
		}
	}
	if inputsChanged {
		n = n.WithInputs(inputs...)
		changed = true
	}

	if r.phase.Order == BottomUp {
		out, ok, err := r.applyAt(n)
		if err != nil {
			return nil, false, err
		}
		n, changed = out, changed || ok
	}
	return n, changed, nil
}

// applyAt 在节点上应用第一个产生变化的规则
func (r *phaseRun) applyAt(n *rel.Node) (*rel.Node, bool, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("heuristic phase %s: %w", r.phase.Name, err)
	}
	for _, rl := range r.phase.Rules {
		out, ok := rule.TryApply(rl, n, r.guard)
		if !ok {
			continue
		}
		r.iterations++
		if r.iterations > r.limit {
			return nil, false, NewIterationLimitError(r.phase.Name, rl.ID(), r.limit, n.Digest())
		}
		r.logger.Debug("rule fired",
			zap.String("phase", r.phase.Name),
			zap.String("rule", string(rl.ID())),
			zap.String("node", n.LocalDigest()))
		return out, true, nil
	}
	return n, false, nil
}
