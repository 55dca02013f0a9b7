package rel

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OptionForm hint 选项形式
type OptionForm int

const (
	OptionsNone OptionForm = iota
	OptionsList
	OptionsKV
)

// Hint 附着在算子上的优化提示，创建后不可变
type Hint struct {
	name        string
	listOptions []string
	kvOptions   *orderedmap.OrderedMap[string, string]
	inheritPath []int
}

// NormalizeHintName 统一大写 hint 名称
func NormalizeHintName(name string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(name))
}

// HintBuilder hint 构造器
type HintBuilder struct {
	name string
	list []string
	kv   *orderedmap.OrderedMap[string, string]
	path []int
	err  error
}

// NewHintBuilder 创建构造器
func NewHintBuilder(name string) *HintBuilder {
	return &HintBuilder{name: NormalizeHintName(name)}
}

// Option 追加列表选项，保持原样拼写
func (b *HintBuilder) Option(values ...any) *HintBuilder {
	for _, v := range values {
		s, err := cast.ToStringE(v)
		if err != nil {
			b.err = fmt.Errorf("hint %s: option %v: %w", b.name, v, err)
			continue
		}
		b.list = append(b.list, s)
	}
	return b
}

// KVOption 设置键值选项
func (b *HintBuilder) KVOption(key string, value any) *HintBuilder {
	s, err := cast.ToStringE(value)
	if err != nil {
		b.err = fmt.Errorf("hint %s: option %s: %w", b.name, key, err)
		return b
	}
	if b.kv == nil {
		b.kv = orderedmap.New[string, string]()
	}
	b.kv.Set(key, s)
	return b
}

// InheritPath 设置继承路径
func (b *HintBuilder) InheritPath(path ...int) *HintBuilder {
	b.path = append([]int(nil), path...)
	return b
}

// Build 构造 hint
func (b *HintBuilder) Build() (Hint, error) {
	if b.err != nil {
		return Hint{}, b.err
	}
	if b.name == "" {
		return Hint{}, fmt.Errorf("hint name must not be empty")
	}
	if len(b.list) > 0 && b.kv != nil && b.kv.Len() > 0 {
		return Hint{}, fmt.Errorf("hint %s: list options and key-value options are mutually exclusive", b.name)
	}
	return Hint{
		name:        b.name,
		listOptions: b.list,
		kvOptions:   b.kv,
		inheritPath: b.path,
	}, nil
}

// MustBuild 构造失败时 panic，用于常量化的 hint
func (b *HintBuilder) MustBuild() Hint {
	h, err := b.Build()
	if err != nil {
		panic(err)
	}
	return h
}

// NewListHint 构造带列表选项的 hint
func NewListHint(name string, options ...any) (Hint, error) {
	return NewHintBuilder(name).Option(options...).Build()
}

// NewKVHint 构造带键值选项的 hint，pairs 依次为键、值
func NewKVHint(name string, pairs ...string) (Hint, error) {
	if len(pairs)%2 != 0 {
		return Hint{}, fmt.Errorf("hint %s: key-value options need an even number of arguments", NormalizeHintName(name))
	}
	b := NewHintBuilder(name)
	for i := 0; i < len(pairs); i += 2 {
		b.KVOption(pairs[i], pairs[i+1])
	}
	return b.Build()
}

// Name 返回大写名称
func (h Hint) Name() string { return h.name }

// OptionForm 返回选项形式
func (h Hint) OptionForm() OptionForm {
	switch {
	case len(h.listOptions) > 0:
		return OptionsList
	case h.kvOptions != nil && h.kvOptions.Len() > 0:
		return OptionsKV
	default:
		return OptionsNone
	}
}

// ListOptions 返回列表选项副本
func (h Hint) ListOptions() []string {
	return append([]string(nil), h.listOptions...)
}

// KVOption 按键取值
func (h Hint) KVOption(key string) (string, bool) {
	if h.kvOptions == nil {
		return "", false
	}
	return h.kvOptions.Get(key)
}

// KVKeys 按插入顺序返回键
func (h Hint) KVKeys() []string {
	if h.kvOptions == nil {
		return nil
	}
	keys := make([]string, 0, h.kvOptions.Len())
	for pair := h.kvOptions.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// InheritPath 返回继承路径副本
func (h Hint) InheritPath() []int {
	return append([]int(nil), h.inheritPath...)
}

// WithInheritPath 返回替换继承路径后的 hint
func (h Hint) WithInheritPath(path ...int) Hint {
	h.inheritPath = append([]int(nil), path...)
	return h
}

// ExtendPath 在继承路径末尾追加输入序号
func (h Hint) ExtendPath(ordinal int) Hint {
	path := make([]int, len(h.inheritPath), len(h.inheritPath)+1)
	copy(path, h.inheritPath)
	h.inheritPath = append(path, ordinal)
	return h
}

// Equal 名称、选项与继承路径都相同
func (h Hint) Equal(o Hint) bool {
	if h.name != o.name || len(h.listOptions) != len(o.listOptions) || len(h.inheritPath) != len(o.inheritPath) {
		return false
	}
	for i := range h.listOptions {
		if h.listOptions[i] != o.listOptions[i] {
			return false
		}
	}
	for i := range h.inheritPath {
		if h.inheritPath[i] != o.inheritPath[i] {
			return false
		}
	}
	keys := h.KVKeys()
	if len(keys) != len(o.KVKeys()) {
		return false
	}
	for _, k := range keys {
		v, _ := h.KVOption(k)
		ov, ok := o.KVOption(k)
		if !ok || v != ov {
			return false
		}
	}
	return true
}

// String 例如 [NO_HASH_JOIN inheritPath:[0]] 或 [PROPS inheritPath:[] options:{K1=v1}]
func (h Hint) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(h.name)
	sb.WriteString(" inheritPath:")
	sb.WriteString(intList(h.inheritPath))
	switch h.OptionForm() {
	case OptionsList:
		sb.WriteString(" options:[")
		sb.WriteString(strings.Join(h.listOptions, ", "))
		sb.WriteString("]")
	case OptionsKV:
		pairs := make([]string, 0, h.kvOptions.Len())
		for pair := h.kvOptions.Oldest(); pair != nil; pair = pair.Next() {
			pairs = append(pairs, pair.Key+"="+pair.Value)
		}
		sb.WriteString(" options:{")
		sb.WriteString(strings.Join(pairs, ", "))
		sb.WriteString("}")
	}
	sb.WriteString("]")
	return sb.String()
}

// ExtendHints 为一组 hint 的继承路径追加序号
func ExtendHints(hints []Hint, ordinal int) []Hint {
	if len(hints) == 0 {
		return nil
	}
	out := make([]Hint, len(hints))
	for i, h := range hints {
		out[i] = h.ExtendPath(ordinal)
	}
	return out
}

// HintsEqual 两组 hint 逐个相等
func HintsEqual(a, b []Hint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// HintsString 一组 hint 的字符串形式
func HintsString(hints []Hint) string {
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = h.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// HintsContent 不含继承路径的 hint 内容，名称与选项相同的两组 hint 结果相同
func HintsContent(hints []Hint) string {
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = h.WithInheritPath().String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func intList(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
