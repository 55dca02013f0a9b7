package volcano

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasuganosora/relopt/pkg/optimizer/cost"
	"github.com/kasuganosora/relopt/pkg/optimizer/hint"
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/optimizer/rule"
)

// State 规划器状态
type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateSearching
	StateExtracted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConfiguring:
		return "CONFIGURING"
	case StateSearching:
		return "SEARCHING"
	case StateExtracted:
		return "EXTRACTED"
	case StateFailed:
		return "FAILED"
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

// WithHintTable 设置 hint 注册表
func WithHintTable(table *hint.Table) Option {
	return func(p *Planner) {
		if table != nil {
			p.table = table
		}
	}
}

// WithEstimator 设置代价估算器
func WithEstimator(e *cost.Estimator) Option {
	return func(p *Planner) {
		if e != nil {
			p.estimator = e
		}
	}
}

// WithMaxRounds 搜索轮数上限，0 表示不限
func WithMaxRounds(n int) Option {
	return func(p *Planner) {
		if n >= 0 {
			p.maxRounds = n
		}
	}
}

// WithTimeout 搜索时间上限，0 表示不限
func WithTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d >= 0 {
			p.timeout = d
		}
	}
}

// WithConverterExclusion hint 禁用的规则是否同样禁止属性转换
func WithConverterExclusion(enabled bool) Option {
	return func(p *Planner) {
		p.excludeConverters = enabled
	}
}

// WithoutHintValidation SetRoot 不再校验 hint，用于调用方已校验过的树
func WithoutHintValidation() Option {
	return func(p *Planner) {
		p.skipValidation = true
	}
}

// Planner 基于代价的规划器。
// 搜索在等价集合上反复触发规则直到没有新成员或预算耗尽，再按代价提取满足根属性要求的计划。
// 单个实例不能并发使用；规则与 hint 注册表只读，可在多个实例间共享。
type Planner struct {
	rules      []rule.Rule
	converters []rule.Converter

	table             *hint.Table
	estimator         *cost.Estimator
	logger            *zap.Logger
	maxRounds         int
	timeout           time.Duration
	excludeConverters bool
	skipValidation    bool

	state    State
	memo     *Memo
	rootSet  SetID
	required rel.TraitSet
	fired    map[string]bool
	rounds   int
	runID    string

	best     *rel.Node
	bestCost cost.Cost
	err      error
}

// NewPlanner 创建规划器
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		table:     hint.EmptyTable(),
		estimator: cost.NewEstimator(nil),
		logger:    zap.NewNop(),
		state:     StateIdle,
		rootSet:   noSet,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State 当前状态
func (p *Planner) State() State { return p.state }

// Memo 备忘录，SetRoot 之前为 nil
func (p *Planner) Memo() *Memo { return p.memo }

// Rounds 最近一次搜索执行的轮数
func (p *Planner) Rounds() int { return p.rounds }

// RunID 最近一次搜索的标识
func (p *Planner) RunID() string { return p.runID }

// BestCost 提取出的计划的代价
func (p *Planner) BestCost() cost.Cost { return p.bestCost }

// AddRule 注册规则，同一标识只能注册一次；有重复时一个都不注册
func (p *Planner) AddRule(rules ...rule.Rule) error {
	if err := p.configurable(); err != nil {
		return err
	}
	seen := make(map[rule.ID]bool, len(p.rules)+len(rules))
	for _, r := range p.rules {
		seen[r.ID()] = true
	}
	for _, r := range rules {
		if seen[r.ID()] {
			return fmt.Errorf("volcano planner: rule %s registered twice", r.ID())
		}
		seen[r.ID()] = true
	}
	p.rules = append(p.rules, rules...)
	p.state = StateConfiguring
	return nil
}

// AddConverter 注册属性转换
func (p *Planner) AddConverter(converters ...rule.Converter) error {
	if err := p.configurable(); err != nil {
		return err
	}
	seen := make(map[rule.ID]bool, len(p.converters)+len(converters))
	for _, c := range p.converters {
		seen[c.ID()] = true
	}
	for _, c := range converters {
		if seen[c.ID()] {
			return fmt.Errorf("volcano planner: converter %s registered twice", c.ID())
		}
		seen[c.ID()] = true
	}
	p.converters = append(p.converters, converters...)
	p.state = StateConfiguring
	return nil
}

func (p *Planner) configurable() error {
	if p.state != StateIdle && p.state != StateConfiguring {
		return fmt.Errorf("%w: cannot register rules in state %s", ErrInvalidState, p.state)
	}
	return nil
}

// SetRoot 校验 hint 并把输入树登记进新的备忘录，每个不同的逻辑节点一个集合，hint 原样保留
func (p *Planner) SetRoot(root *rel.Node, required rel.TraitSet) error {
	if p.state == StateSearching {
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

	p.memo = NewMemo(p.logger)
	p.rootSet, _ = p.memo.Register(root, noSet)
	p.required = required
	p.fired = make(map[string]bool)
	p.rounds = 0
	p.best, p.bestCost, p.err = nil, cost.Cost{}, nil
	p.state = StateConfiguring
	return nil
}

// FindBestExp 搜索并提取最便宜的计划。
// 轮数或时间预算耗尽时按已有成员提取；ctx 取消时返回 ctx 的错误。
func (p *Planner) FindBestExp(ctx context.Context) (*rel.Node, error) {
	switch p.state {
	case StateSearching:
		return nil, ErrPlannerBusy
	case StateExtracted:
		return p.best, nil
	case StateFailed:
		return nil, p.err
	}
	if p.memo == nil {
		return nil, ErrNoRoot
	}

	p.state = StateSearching
	p.runID = uuid.NewString()
	logger := p.logger.With(zap.String("run", p.runID))

	if err := p.search(ctx, logger); err != nil {
		return nil, p.fail(err)
	}

	best, c, err := p.extractRoot()
	if err != nil {
		logger.Debug("extraction failed", zap.Error(err))
		return nil, p.fail(err)
	}
	p.best, p.bestCost = best, c
	p.state = StateExtracted
	logger.Debug("plan extracted",
		zap.Int("rounds", p.rounds),
		zap.Int("sets", p.memo.SetCount()),
		zap.Int("members", p.memo.MemberCount()),
		zap.Stringer("cost", c))
	return best, nil
}

func (p *Planner) fail(err error) error {
	p.state = StateFailed
	p.err = err
	return err
}

// search 每轮先触发规则再补属性转换，没有变化即收敛
func (p *Planner) search(ctx context.Context, logger *zap.Logger) error {
	var deadline time.Time
	if p.timeout > 0 {
		deadline = time.Now().Add(p.timeout)
	}
	expired := func() bool {
		return !deadline.IsZero() && !time.Now().Before(deadline)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.maxRounds > 0 && p.rounds >= p.maxRounds {
			logger.Debug("round budget exhausted", zap.Int("rounds", p.rounds))
			return nil
		}
		if expired() {
			logger.Debug("time budget exhausted", zap.Int("rounds", p.rounds))
			return nil
		}

		p.rounds++
		changed, stopped, err := p.fireRules(ctx, logger, expired)
		if err != nil {
			return err
		}
		if stopped {
			logger.Debug("time budget exhausted", zap.Int("rounds", p.rounds))
			return nil
		}
		if p.convert(logger) {
			changed = true
		}
		if !changed {
			logger.Debug("search converged", zap.Int("rounds", p.rounds))
			return nil
		}
	}
}

// fireRules 在本轮开始时已存在的每个成员上触发全部规则，同一绑定只触发一次
func (p *Planner) fireRules(ctx context.Context, logger *zap.Logger, expired func() bool) (changed, stopped bool, err error) {
	count := len(p.memo.members)
	for id := 0; id < count; id++ {
		mem := p.memo.members[id]
		if mem.dead {
			continue
		}
		for _, r := range p.rules {
			if err := ctx.Err(); err != nil {
				return changed, false, err
			}
			if expired() {
				return changed, true, nil
			}
			for _, call := range rule.Bindings(r, mem.Node, p.memo.expand) {
				key, ok := p.bindingKey(call)
				if !ok || p.fired[key] {
					continue
				}
				p.fired[key] = true
				if p.excluded(call) {
					logger.Debug("rule excluded by hint",
						zap.String("rule", string(r.ID())),
						zap.Int("member", int(mem.ID)))
					continue
				}
				if p.apply(call, mem, logger) {
					changed = true
				}
			}
		}
	}
	return changed, false, nil
}

func (p *Planner) apply(call *rule.Call, mem *Member, logger *zap.Logger) bool {
	r := call.Rule()
	out := rule.Fire(call)
	if out == nil || out.Digest() == call.Root().Digest() {
		return false
	}
	if !out.Traits().Satisfies(r.Traits().Produced) {
		logger.Warn("rule output violates produced traits",
			zap.String("rule", string(r.ID())),
			zap.String("produced", r.Traits().Produced.Digest()),
			zap.String("actual", out.Traits().Digest()))
		return false
	}
	set, changed := p.memo.Register(out, p.memo.SetOf(mem.ID))
	if changed {
		logger.Debug("rule fired",
			zap.String("rule", string(r.ID())),
			zap.Int("member", int(mem.ID)),
			zap.Int("set", int(set)),
			zap.String("node", out.LocalDigest()))
	}
	return changed
}

func (p *Planner) bindingKey(call *rule.Call) (string, bool) {
	var sb strings.Builder
	sb.WriteString(string(call.Rule().ID()))
	for _, n := range call.Rels() {
		id, ok := p.memo.memberOf(n)
		if !ok {
			return "", false
		}
		fmt.Fprintf(&sb, ":%d", id)
	}
	return sb.String(), true
}

// excluded 绑定中任一成员携带的 hint 禁止该规则
func (p *Planner) excluded(call *rule.Call) bool {
	for _, n := range call.Rels() {
		if p.table.IsRuleExcluded(n, call.Rule()) {
			return true
		}
	}
	return false
}

// requirement 对某集合的一种属性要求，parents 为提出要求的成员
type requirement struct {
	set     SetID
	traits  rel.TraitSet
	parents []*rel.Node
}

type reqKey struct {
	set    SetID
	traits string
}

func (r *requirement) key() reqKey {
	return reqKey{set: r.set, traits: r.traits.Digest()}
}

// requirements 根要求加上每个成员对输入的要求，按首次出现的顺序
func (p *Planner) requirements() []*requirement {
	index := make(map[reqKey]*requirement)
	var out []*requirement
	add := func(set SetID, traits rel.TraitSet, parent *rel.Node) {
		r := &requirement{set: p.memo.Find(set), traits: traits}
		k := r.key()
		if existing, ok := index[k]; ok {
			r = existing
		} else {
			index[k] = r
			out = append(out, r)
		}
		if parent != nil {
			r.parents = append(r.parents, parent)
		}
	}
	add(p.rootSet, p.required, nil)
	for _, mem := range p.memo.members {
		if mem.dead {
			continue
		}
		for _, in := range mem.Node.Inputs() {
			add(SetID(in.SetID()), in.Traits(), mem.Node)
		}
	}
	return out
}

// convert 对每个属性要求，用转换在不满足要求的成员之上补一个满足要求的成员
func (p *Planner) convert(logger *zap.Logger) bool {
	if len(p.converters) == 0 {
		return false
	}
	changed := false
	for _, req := range p.requirements() {
		for _, mem := range p.memo.Members(req.set) {
			from := mem.Node.Traits()
			if from.Satisfies(req.traits) {
				continue
			}
			c, target, ok := p.converterFor(from, req.traits)
			if !ok || p.converterExcluded(c, mem.Node, req.parents) {
				continue
			}
			input := rel.NewSetRef(int(req.set), from, mem.Node.Columns())
			out := c.Convert(input, target)
			if out == nil {
				continue
			}
			if _, added := p.memo.Register(out, req.set); added {
				changed = true
				logger.Debug("trait converted",
					zap.String("converter", string(c.ID())),
					zap.Int("set", int(p.memo.Find(req.set))),
					zap.String("from", from.Digest()),
					zap.String("to", target.Digest()))
			}
		}
	}
	return changed
}

// converterFor 只有一个维度不满足且有对应转换时可转换
func (p *Planner) converterFor(from, required rel.TraitSet) (rule.Converter, rel.TraitSet, bool) {
	var missing rel.Trait
	for _, r := range required.Traits() {
		if from.Satisfies(rel.NewTraitSet(r)) {
			continue
		}
		if missing != nil {
			return nil, rel.TraitSet{}, false
		}
		missing = r
	}
	if missing == nil {
		return nil, rel.TraitSet{}, false
	}
	current, ok := from.Get(missing.Dimension())
	if !ok {
		current, _ = rel.DefaultTraitSet().Get(missing.Dimension())
	}
	for _, c := range p.converters {
		if c.Dimension() == missing.Dimension() && c.CanConvert(current, missing) {
			return c, from.Replace(missing), true
		}
	}
	return nil, rel.TraitSet{}, false
}

func (p *Planner) converterExcluded(c rule.Converter, source *rel.Node, parents []*rel.Node) bool {
	if !p.excludeConverters {
		return false
	}
	if p.table.IsConverterExcluded(source, c) {
		return true
	}
	for _, n := range parents {
		if p.table.IsConverterExcluded(n, c) {
			return true
		}
	}
	return false
}

type winner struct {
	cost   cost.Cost
	member MemberID
}

// computeBest 对每个属性要求求最便宜的成员，反复松弛直到稳定；代价相同取编号小的成员
func (p *Planner) computeBest(reqs []*requirement) map[reqKey]winner {
	best := make(map[reqKey]winner, len(reqs))
	limit := 2*len(reqs) + 2
	for i := 0; i < limit; i++ {
		changed := false
		for _, req := range reqs {
			k := req.key()
			for _, mem := range p.memo.Members(req.set) {
				if !mem.Node.Traits().Satisfies(req.traits) {
					continue
				}
				c, ok := p.memberCost(mem, best)
				if !ok {
					continue
				}
				cur, has := best[k]
				if !has || c.Less(cur.cost) || (!cur.cost.Less(c) && mem.ID < cur.member) {
					best[k] = winner{cost: c, member: mem.ID}
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	return best
}

// memberCost 成员自身代价加上各输入按其属性要求的最优代价
func (p *Planner) memberCost(mem *Member, best map[reqKey]winner) (cost.Cost, bool) {
	inputs := mem.Node.Inputs()
	rows := make([]float64, len(inputs))
	acc := cost.Zero
	for i, in := range inputs {
		w, ok := best[reqKey{set: p.memo.Find(SetID(in.SetID())), traits: in.Traits().Digest()}]
		if !ok {
			return cost.Cost{}, false
		}
		rows[i] = w.cost.Rows
		acc = acc.Plus(w.cost)
	}
	own := p.estimator.NodeCost(mem.Node, rows)
	if own.IsInfinite() {
		return own, false
	}
	return acc.Plus(own), true
}

func (p *Planner) extractRoot() (*rel.Node, cost.Cost, error) {
	best := p.computeBest(p.requirements())
	root := p.memo.Find(p.rootSet)
	w, ok := best[reqKey{set: root, traits: p.required.Digest()}]
	if !ok {
		return nil, cost.Cost{}, NewNoPlanError(root, p.required, p.memo.MemberCount())
	}
	plan, err := p.extract(root, p.required, best, make(map[reqKey]bool))
	if err != nil {
		return nil, cost.Cost{}, err
	}
	return plan, w.cost, nil
}

// extract 沿各集合的最优成员还原出一棵树
func (p *Planner) extract(set SetID, traits rel.TraitSet, best map[reqKey]winner, visiting map[reqKey]bool) (*rel.Node, error) {
	k := reqKey{set: p.memo.Find(set), traits: traits.Digest()}
	w, ok := best[k]
	if !ok {
		return nil, NewNoPlanError(k.set, traits, p.memo.MemberCount())
	}
	if visiting[k] {
		return nil, fmt.Errorf("volcano planner: cyclic plan through set #%d", k.set)
	}
	visiting[k] = true
	defer delete(visiting, k)

	n := p.memo.Member(w.member).Node
	inputs := n.Inputs()
	if len(inputs) == 0 {
		return n, nil
	}
	for i, in := range inputs {
		child, err := p.extract(SetID(in.SetID()), in.Traits(), best, visiting)
		if err != nil {
			return nil, err
		}
		inputs[i] = child
	}
	return n.WithInputs(inputs...), nil
}
