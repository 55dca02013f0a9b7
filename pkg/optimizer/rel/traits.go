package rel

import (
	"fmt"
	"sort"
	"strings"
)

// Dimension 物理属性维度
type Dimension int

const (
	DimConvention Dimension = iota
	DimCollation
)

// String 返回维度名称
func (d Dimension) String() string {
	switch d {
	case DimConvention:
		return "convention"
	case DimCollation:
		return "collation"
	default:
		return fmt.Sprintf("dimension(%d)", int(d))
	}
}

// Trait 单个维度上的物理属性值
type Trait interface {
	Dimension() Dimension
	// Satisfies 当前属性能否满足 required 的要求
	Satisfies(required Trait) bool
	String() string
}

// Convention 调用约定
type Convention string

const (
	// ConventionNone 逻辑算子，不可执行
	ConventionNone Convention = "NONE"
	// ConventionEnumerable 可执行的迭代器实现
	ConventionEnumerable Convention = "ENUMERABLE"
)

func (c Convention) Dimension() Dimension { return DimConvention }

func (c Convention) Satisfies(required Trait) bool {
	r, ok := required.(Convention)
	return ok && r == c
}

func (c Convention) String() string { return string(c) }

// Direction 排序方向
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// FieldCollation 单列排序
type FieldCollation struct {
	Field     int
	Direction Direction
}

func (fc FieldCollation) String() string {
	if fc.Direction == Descending {
		return fmt.Sprintf("%d DESC", fc.Field)
	}
	return fmt.Sprintf("%d", fc.Field)
}

// Collation 输出行的排序，空表示无序
type Collation []FieldCollation

// NewCollation 按升序构造排序
func NewCollation(fields ...int) Collation {
	c := make(Collation, len(fields))
	for i, f := range fields {
		c[i] = FieldCollation{Field: f}
	}
	return c
}

func (c Collation) Dimension() Dimension { return DimCollation }

// Satisfies required 是 c 的前缀即满足，空要求总是满足
func (c Collation) Satisfies(required Trait) bool {
	r, ok := required.(Collation)
	if !ok || len(r) > len(c) {
		return false
	}
	for i := range r {
		if r[i] != c[i] {
			return false
		}
	}
	return true
}

// Fields 返回排序列序号
func (c Collation) Fields() []int {
	fields := make([]int, len(c))
	for i, fc := range c {
		fields[i] = fc.Field
	}
	return fields
}

func (c Collation) String() string {
	parts := make([]string, len(c))
	for i, fc := range c {
		parts[i] = fc.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// defaultTrait 缺省维度的取值
func defaultTrait(d Dimension) Trait {
	switch d {
	case DimConvention:
		return ConventionNone
	default:
		return Collation(nil)
	}
}

// TraitSet 有序、不可变的物理属性集合，每个维度至多一个值
type TraitSet struct {
	traits []Trait
}

// NewTraitSet 构造属性集合，同一维度后者覆盖前者
func NewTraitSet(traits ...Trait) TraitSet {
	var ts TraitSet
	for _, t := range traits {
		ts = ts.Replace(t)
	}
	return ts
}

// DefaultTraitSet 逻辑算子的缺省属性
func DefaultTraitSet() TraitSet {
	return NewTraitSet(ConventionNone, Collation(nil))
}

// Len 维度个数
func (ts TraitSet) Len() int { return len(ts.traits) }

// Traits 返回属性副本
func (ts TraitSet) Traits() []Trait {
	return append([]Trait(nil), ts.traits...)
}

// Get 返回某维度上的属性
func (ts TraitSet) Get(d Dimension) (Trait, bool) {
	for _, t := range ts.traits {
		if t.Dimension() == d {
			return t, true
		}
	}
	return nil, false
}

// Convention 返回调用约定，缺省为 NONE
func (ts TraitSet) Convention() Convention {
	if t, ok := ts.Get(DimConvention); ok {
		return t.(Convention)
	}
	return ConventionNone
}

// Collation 返回排序，缺省为空
func (ts TraitSet) Collation() Collation {
	if t, ok := ts.Get(DimCollation); ok {
		return t.(Collation)
	}
	return nil
}

// Replace 返回替换（或新增）某维度后的新集合
func (ts TraitSet) Replace(t Trait) TraitSet {
	out := make([]Trait, 0, len(ts.traits)+1)
	replaced := false
	for _, old := range ts.traits {
		if old.Dimension() == t.Dimension() {
			out = append(out, t)
			replaced = true
			continue
		}
		out = append(out, old)
	}
	if !replaced {
		out = append(out, t)
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Dimension() < out[j].Dimension()
		})
	}
	return TraitSet{traits: out}
}

// Merge 用 other 中出现的维度覆盖当前集合
func (ts TraitSet) Merge(other TraitSet) TraitSet {
	out := ts
	for _, t := range other.traits {
		out = out.Replace(t)
	}
	return out
}

// Without 去掉某维度
func (ts TraitSet) Without(d Dimension) TraitSet {
	out := make([]Trait, 0, len(ts.traits))
	for _, t := range ts.traits {
		if t.Dimension() != d {
			out = append(out, t)
		}
	}
	return TraitSet{traits: out}
}

// Satisfies required 中每个维度都被满足；缺失的维度按缺省值比较
func (ts TraitSet) Satisfies(required TraitSet) bool {
	for _, r := range required.traits {
		t, ok := ts.Get(r.Dimension())
		if !ok {
			t = defaultTrait(r.Dimension())
		}
		if !t.Satisfies(r) {
			return false
		}
	}
	return true
}

// Equal 两个集合是否相同
func (ts TraitSet) Equal(other TraitSet) bool {
	return ts.Digest() == other.Digest()
}

// Digest 规范字符串形式，例如 ENUMERABLE.[0, 1 DESC]
func (ts TraitSet) Digest() string {
	parts := make([]string, len(ts.traits))
	for i, t := range ts.traits {
		parts[i] = t.String()
	}
	return strings.Join(parts, ".")
}

func (ts TraitSet) String() string {
	return ts.Digest()
}
