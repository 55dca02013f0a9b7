package rule

import (
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// ID 规则标识，可序列化，与规则实例无关
type ID string

// TraitConstraint 规则对匹配根节点的属性要求与产出属性
type TraitConstraint struct {
	Required rel.TraitSet
	Produced rel.TraitSet
}

// Rule 重写规则
type Rule interface {
	// ID 返回规则标识
	ID() ID
	// Operand 返回匹配模式
	Operand() *Operand
	// Traits 返回属性约束
	Traits() TraitConstraint
	// Transform 对一次绑定给出替换节点，返回 nil 表示不匹配
	Transform(call *Call) *rel.Node
}

// Converter 单个属性维度上的转换规则
type Converter interface {
	ID() ID
	Dimension() rel.Dimension
	// CanConvert from 能否转换为 to
	CanConvert(from, to rel.Trait) bool
	// Convert 在 input 之上构造满足 to 的节点
	Convert(input *rel.Node, to rel.TraitSet) *rel.Node
}

// IsConverterRule 是否为改变调用约定的规则
func IsConverterRule(r Rule) bool {
	tc := r.Traits()
	if _, ok := tc.Required.Get(rel.DimConvention); !ok {
		return false
	}
	if _, ok := tc.Produced.Get(rel.DimConvention); !ok {
		return false
	}
	return tc.Required.Convention() != tc.Produced.Convention()
}

// Call 一次成功的绑定
type Call struct {
	rule Rule
	rels []*rel.Node
}

// NewCall 构造绑定，rels 按模式前序排列
func NewCall(r Rule, rels []*rel.Node) *Call {
	return &Call{rule: r, rels: rels}
}

// Rule 返回规则
func (c *Call) Rule() Rule { return c.rule }

// Rel 返回第 i 个模式节点绑定的算子
func (c *Call) Rel(i int) *rel.Node { return c.rels[i] }

// Rels 返回绑定副本
func (c *Call) Rels() []*rel.Node { return append([]*rel.Node(nil), c.rels...) }

// Root 匹配的根节点
func (c *Call) Root() *rel.Node { return c.rels[0] }

// Base 规则的公共字段，具体规则嵌入使用
type Base struct {
	id      ID
	operand *Operand
	traits  TraitConstraint
}

// NewBase 创建规则公共字段
func NewBase(id ID, operand *Operand, traits TraitConstraint) Base {
	return Base{id: id, operand: operand, traits: traits}
}

// ID 返回规则标识
func (b Base) ID() ID { return b.id }

// Operand 返回匹配模式
func (b Base) Operand() *Operand { return b.operand }

// Traits 返回属性约束
func (b Base) Traits() TraitConstraint { return b.traits }

// funcRule 以函数实现的规则
type funcRule struct {
	Base
	transform func(call *Call) *rel.Node
}

// New 由函数构造规则
func New(id ID, operand *Operand, traits TraitConstraint, transform func(call *Call) *rel.Node) Rule {
	return &funcRule{Base: NewBase(id, operand, traits), transform: transform}
}

func (r *funcRule) Transform(call *Call) *rel.Node {
	return r.transform(call)
}
