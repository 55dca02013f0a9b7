package rel

import (
	"fmt"
	"strings"
)

// Node 关系表达式节点
// 节点创建后不可变，所有修改都返回新节点并共享未变化的子树。
type Node struct {
	kind    Kind
	payload Payload
	inputs  []*Node
	columns []Column
	traits  TraitSet
	hints   []Hint
	// origins 记录派生来源，只在规则输出被规则引擎收尾前存在
	origins []*Node

	local  string
	digest string
}

func newNode(kind Kind, p Payload, convention Convention, inputs []*Node, hints []Hint) *Node {
	if !payloadFits(kind, p) {
		panic(fmt.Sprintf("rel: payload %T does not fit %s", p, kind))
	}
	n := &Node{
		kind:    kind,
		payload: p,
		inputs:  inputs,
		hints:   hints,
	}
	n.columns = deriveColumns(n)
	n.traits = NewTraitSet(convention, deriveCollation(n))
	n.local = kind.String() + "(" + p.digest() + ")"
	n.digest = n.computeDigest()
	return n
}

// NewTableScan 逻辑表扫描
func NewTableScan(table []string, columns []Column) *Node {
	n := newNode(KindTableScan, ScanPayload{Table: append([]string(nil), table...)}, ConventionNone, nil, nil)
	n.columns = append([]Column(nil), columns...)
	n.digest = n.computeDigest()
	return n
}

// NewProject 逻辑投影，names 为空时使用 $i 命名
func NewProject(input *Node, exprs []Expr, names []string) *Node {
	return newNode(KindProject, ProjectPayload{Exprs: exprs, Names: names}, ConventionNone, []*Node{input}, nil)
}

// NewFilter 逻辑过滤
func NewFilter(input *Node, condition Expr) *Node {
	return newNode(KindFilter, FilterPayload{Condition: condition}, ConventionNone, []*Node{input}, nil)
}

// NewCalc 逻辑计算，condition 可为 nil
func NewCalc(input *Node, exprs []Expr, names []string, condition Expr) *Node {
	return newNode(KindCalc, CalcPayload{Exprs: exprs, Names: names, Condition: condition}, ConventionNone, []*Node{input}, nil)
}

// NewJoin 逻辑连接，等值键从条件中提取
func NewJoin(left, right *Node, joinType JoinType, condition Expr) *Node {
	lk, rk := EquiKeys(condition, len(left.columns))
	p := JoinPayload{Type: joinType, Condition: condition, LeftKeys: lk, RightKeys: rk}
	return newNode(KindJoin, p, ConventionNone, []*Node{left, right}, nil)
}

// NewAggregate 逻辑聚合
func NewAggregate(input *Node, groupKeys []int, calls []AggCall) *Node {
	return newNode(KindAggregate, AggregatePayload{GroupKeys: groupKeys, Calls: calls}, ConventionNone, []*Node{input}, nil)
}

// NewSort 逻辑排序
func NewSort(input *Node, collation Collation) *Node {
	return newNode(KindSort, SortPayload{Collation: collation}, ConventionNone, []*Node{input}, nil)
}

// NewSetRef 等价集合占位符，traits 为对该集合的属性要求
func NewSetRef(set int, traits TraitSet, columns []Column) *Node {
	n := &Node{
		kind:    KindSetRef,
		payload: SetRefPayload{Set: set},
		columns: columns,
		traits:  traits,
	}
	n.local = fmt.Sprintf("SetRef(set=%d)", set)
	n.digest = n.computeDigest()
	return n
}

// New 按类型构造节点，用于规则构造全新的算子
func New(kind Kind, p Payload, convention Convention, inputs ...*Node) *Node {
	if kind == KindTableScan {
		panic("rel: table scans must be built with NewTableScan or derived from an existing scan")
	}
	return newNode(kind, p, convention, inputs, nil)
}

// Kind 算子类型
func (n *Node) Kind() Kind { return n.kind }

// Payload 专有参数
func (n *Node) Payload() Payload { return n.payload }

// Inputs 返回输入副本
func (n *Node) Inputs() []*Node { return append([]*Node(nil), n.inputs...) }

// Input 第 i 个输入
func (n *Node) Input(i int) *Node { return n.inputs[i] }

// InputCount 输入个数
func (n *Node) InputCount() int { return len(n.inputs) }

// Columns 输出列副本
func (n *Node) Columns() []Column { return append([]Column(nil), n.columns...) }

// Traits 物理属性
func (n *Node) Traits() TraitSet { return n.traits }

// Convention 调用约定
func (n *Node) Convention() Convention { return n.traits.Convention() }

// Hints 返回 hint 副本
func (n *Node) Hints() []Hint { return append([]Hint(nil), n.hints...) }

// Origins 派生来源
func (n *Node) Origins() []*Node { return append([]*Node(nil), n.origins...) }

// SetID 占位符引用的集合，非占位符返回 -1
func (n *Node) SetID() int {
	if p, ok := n.payload.(SetRefPayload); ok {
		return p.Set
	}
	return -1
}

// AsScan 等类型断言辅助方法
func (n *Node) AsScan() ScanPayload {
	p, _ := n.payload.(ScanPayload)
	return p
}

func (n *Node) AsProject() ProjectPayload {
	p, _ := n.payload.(ProjectPayload)
	return p
}

func (n *Node) AsFilter() FilterPayload {
	p, _ := n.payload.(FilterPayload)
	return p
}

func (n *Node) AsCalc() CalcPayload {
	p, _ := n.payload.(CalcPayload)
	return p
}

func (n *Node) AsJoin() JoinPayload {
	p, _ := n.payload.(JoinPayload)
	return p
}

func (n *Node) AsAggregate() AggregatePayload {
	p, _ := n.payload.(AggregatePayload)
	return p
}

func (n *Node) AsSort() SortPayload {
	p, _ := n.payload.(SortPayload)
	return p
}

// LocalDigest 不含输入与属性的算子描述
func (n *Node) LocalDigest() string { return n.local }

// Digest 结构摘要，包含属性与输入但不含 hint
func (n *Node) Digest() string { return n.digest }

// Signature 逻辑内容摘要，不含属性与 hint；占位符以集合编号代表
func (n *Node) Signature() string {
	if len(n.inputs) == 0 {
		return n.local
	}
	parts := make([]string, len(n.inputs))
	for i, in := range n.inputs {
		parts[i] = in.Signature()
	}
	return n.local + "{" + strings.Join(parts, ", ") + "}"
}

func (n *Node) computeDigest() string {
	var sb strings.Builder
	sb.WriteString(n.local)
	sb.WriteString("#")
	sb.WriteString(n.traits.Digest())
	if len(n.inputs) > 0 {
		sb.WriteString("{")
		for i, in := range n.inputs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(in.digest)
		}
		sb.WriteString("}")
	}
	return sb.String()
}

func (n *Node) copyNode() *Node {
	c := *n
	c.origins = nil
	return &c
}

// WithInputs 替换输入，hint 原样保留，不记录派生来源
func (n *Node) WithInputs(inputs ...*Node) *Node {
	if len(inputs) != len(n.inputs) {
		panic(fmt.Sprintf("rel: %s expects %d inputs, got %d", n.kind, len(n.inputs), len(inputs)))
	}
	c := n.copyNode()
	c.inputs = append([]*Node(nil), inputs...)
	if n.kind != KindTableScan && n.kind != KindSetRef {
		c.columns = deriveColumns(c)
	}
	c.traits = n.traits.Replace(deriveCollation(c))
	c.digest = c.computeDigest()
	return c
}

// WithConvention 替换调用约定
func (n *Node) WithConvention(convention Convention) *Node {
	c := n.copyNode()
	c.traits = n.traits.Replace(convention)
	c.digest = c.computeDigest()
	return c
}

// WithHints 替换全部 hint
func (n *Node) WithHints(hints []Hint) *Node {
	c := n.copyNode()
	c.hints = append([]Hint(nil), hints...)
	return c
}

// DeriveAs 由当前节点派生出新算子：hint 原样复制并记录派生来源
func (n *Node) DeriveAs(kind Kind, p Payload, convention Convention, inputs ...*Node) *Node {
	var d *Node
	if kind == KindTableScan {
		d = n.copyNode()
		d.payload = p
		d.traits = n.traits.Replace(convention)
		d.local = kind.String() + "(" + p.digest() + ")"
		d.digest = d.computeDigest()
	} else {
		d = newNode(kind, p, convention, inputs, n.Hints())
	}
	d.origins = []*Node{n}
	return d
}

// Derive 保持算子类型与参数，替换调用约定与输入
func (n *Node) Derive(convention Convention, inputs ...*Node) *Node {
	return n.DeriveAs(n.kind, n.payload, convention, inputs...)
}

// Absorb 记录额外的派生来源，用于合并多个算子的规则
func (n *Node) Absorb(others ...*Node) *Node {
	c := *n
	c.origins = append(append([]*Node(nil), n.origins...), others...)
	for _, o := range others {
		c.hints = append(append([]Hint(nil), c.hints...), o.hints...)
	}
	return &c
}

// Attach 为节点附加 hint，返回新节点
func Attach(n *Node, hints ...Hint) *Node {
	return n.WithHints(append(n.Hints(), hints...))
}

// Equal 结构与 hint 都相同
func Equal(a, b *Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.digest != b.digest || !HintsEqual(a.hints, b.hints) {
		return false
	}
	for i := range a.inputs {
		if !Equal(a.inputs[i], b.inputs[i]) {
			return false
		}
	}
	return true
}

// Walk 前序遍历，fn 返回 false 时不再深入该子树
func Walk(n *Node, fn func(n *Node, path []int) bool) {
	walk(n, nil, fn)
}

func walk(n *Node, path []int, fn func(n *Node, path []int) bool) {
	if !fn(n, path) {
		return
	}
	for i, in := range n.inputs {
		walk(in, append(append([]int(nil), path...), i), fn)
	}
}

// Convert 请求输入满足 required。
// 占位符只改写属性要求；树上的节点缺排序时补一个同约定的 Sort，约定交给规则转换。
func Convert(n *Node, required TraitSet) *Node {
	if n.traits.Satisfies(required) {
		return n
	}
	if n.kind == KindSetRef {
		return NewSetRef(n.SetID(), n.traits.Merge(required), n.columns)
	}
	if c := required.Collation(); len(c) > 0 && !n.traits.Collation().Satisfies(c) {
		s := NewSort(n, c)
		if n.Convention() != ConventionNone {
			s = s.WithConvention(n.Convention())
		}
		return s
	}
	return n
}

func deriveColumns(n *Node) []Column {
	switch p := n.payload.(type) {
	case ScanPayload:
		return n.columns
	case ProjectPayload:
		return projectColumns(p.Exprs, p.Names, n.inputs[0].columns)
	case CalcPayload:
		return projectColumns(p.Exprs, p.Names, n.inputs[0].columns)
	case FilterPayload, SortPayload:
		return n.inputs[0].columns
	case JoinPayload:
		out := append([]Column(nil), n.inputs[0].columns...)
		if p.Type.ProjectsRight() {
			out = append(out, n.inputs[1].columns...)
		}
		return out
	case AggregatePayload:
		input := n.inputs[0].columns
		out := make([]Column, 0, len(p.GroupKeys)+len(p.Calls))
		for _, k := range p.GroupKeys {
			if k < len(input) {
				out = append(out, input[k])
			}
		}
		for i, c := range p.Calls {
			name := c.Name
			if name == "" {
				name = fmt.Sprintf("$f%d", len(p.GroupKeys)+i)
			}
			out = append(out, Column{Name: name, Type: c.resultType(input)})
		}
		return out
	default:
		return n.columns
	}
}

func projectColumns(exprs []Expr, names []string, input []Column) []Column {
	out := make([]Column, len(exprs))
	for i, e := range exprs {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		if name == "" {
			if ref, ok := e.(InputRef); ok && ref.Index < len(input) {
				name = input[ref.Index].Name
			} else {
				name = fmt.Sprintf("$%d", i)
			}
		}
		out[i] = Column{Name: name, Type: exprType(e, input)}
	}
	return out
}

// deriveCollation 由算子语义与输入属性推导输出排序
func deriveCollation(n *Node) Collation {
	switch p := n.payload.(type) {
	case FilterPayload:
		return n.inputs[0].traits.Collation()
	case ProjectPayload:
		return mapCollation(n.inputs[0].traits.Collation(), p.Exprs)
	case CalcPayload:
		return mapCollation(n.inputs[0].traits.Collation(), p.Exprs)
	case SortPayload:
		return p.Collation
	case JoinPayload:
		if n.kind == KindMergeJoin {
			return NewCollation(p.LeftKeys...)
		}
		return nil
	case SetRefPayload:
		return n.traits.Collation()
	default:
		return nil
	}
}

// mapCollation 投影后仍保留的前缀排序
func mapCollation(input Collation, exprs []Expr) Collation {
	var out Collation
	for _, fc := range input {
		pos := -1
		for i, e := range exprs {
			if ref, ok := e.(InputRef); ok && ref.Index == fc.Field {
				pos = i
				break
			}
		}
		if pos < 0 {
			break
		}
		out = append(out, FieldCollation{Field: pos, Direction: fc.Direction})
	}
	return out
}
