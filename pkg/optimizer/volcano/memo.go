package volcano

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
)

// SetID 等价集合编号
type SetID int

// MemberID 集合成员编号，按登记顺序递增
type MemberID int

const noSet SetID = -1

// Member 备忘录中的一个算子，输入全部是指向集合的占位符
type Member struct {
	ID   MemberID
	Node *rel.Node
	set  SetID
	dead bool
}

type eqSet struct {
	id      SetID
	parent  SetID
	members []MemberID
}

// indexEntry 按签名哈希排序，哈希相同再比较原文
type indexEntry struct {
	hash   uint64
	key    string
	set    SetID
	member MemberID
}

func lessEntry(a, b indexEntry) bool {
	if a.hash != b.hash {
		return a.hash < b.hash
	}
	return a.key < b.key
}

func newEntry(key string) indexEntry {
	return indexEntry{hash: xxhash.Sum64String(key), key: key}
}

// Memo 等价集合与成员的存储，集合合并通过并查集重定向
type Memo struct {
	sets    []*eqSet
	members []*Member
	byNode  map[*rel.Node]MemberID

	// sigs 逻辑签名到集合，keys 成员键到成员
	sigs *btree.BTreeG[indexEntry]
	keys *btree.BTreeG[indexEntry]

	logger *zap.Logger
}

// NewMemo 创建空备忘录
func NewMemo(logger *zap.Logger) *Memo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memo{
		byNode: make(map[*rel.Node]MemberID),
		sigs:   btree.NewG(16, lessEntry),
		keys:   btree.NewG(16, lessEntry),
		logger: logger,
	}
}

// Find 集合当前的代表编号
func (m *Memo) Find(id SetID) SetID {
	root := id
	for m.sets[root].parent != root {
		root = m.sets[root].parent
	}
	for m.sets[id].parent != root {
		next := m.sets[id].parent
		m.sets[id].parent = root
		id = next
	}
	return root
}

// Sets 全部存活集合，按编号升序
func (m *Memo) Sets() []SetID {
	var out []SetID
	for _, s := range m.sets {
		if s.parent == s.id {
			out = append(out, s.id)
		}
	}
	return out
}

// SetCount 存活集合数
func (m *Memo) SetCount() int {
	return len(m.Sets())
}

// MemberCount 存活成员数
func (m *Memo) MemberCount() int {
	n := 0
	for _, mem := range m.members {
		if !mem.dead {
			n++
		}
	}
	return n
}

// Members 集合的存活成员，按编号升序
func (m *Memo) Members(set SetID) []*Member {
	s := m.sets[m.Find(set)]
	out := make([]*Member, 0, len(s.members))
	for _, id := range s.members {
		if mem := m.members[id]; !mem.dead {
			out = append(out, mem)
		}
	}
	return out
}

// Member 按编号取成员
func (m *Memo) Member(id MemberID) *Member {
	return m.members[id]
}

// SetOf 成员所在集合
func (m *Memo) SetOf(id MemberID) SetID {
	return m.Find(m.members[id].set)
}

func (m *Memo) memberOf(n *rel.Node) (MemberID, bool) {
	id, ok := m.byNode[n]
	return id, ok
}

// expand 占位符输入展开为集合中满足属性要求的成员
func (m *Memo) expand(n *rel.Node, i int) []*rel.Node {
	in := n.Input(i)
	if in.Kind() != rel.KindSetRef {
		return []*rel.Node{in}
	}
	var out []*rel.Node
	for _, mem := range m.Members(SetID(in.SetID())) {
		if mem.Node.Traits().Satisfies(in.Traits()) {
			out = append(out, mem.Node)
		}
	}
	return out
}

// signature 逻辑签名：算子描述、规范化的输入集合与 hint 内容，不含属性。
// 继承路径只记录来源，不参与签名，规则往返改写同一算子时能回到已有成员。
func (m *Memo) signature(n *rel.Node) string {
	var sb strings.Builder
	sb.WriteString(n.LocalDigest())
	sb.WriteByte('(')
	for i, in := range n.Inputs() {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "#%d", m.Find(SetID(in.SetID())))
	}
	sb.WriteByte(')')
	if hints := n.Hints(); len(hints) > 0 {
		sb.WriteString(rel.HintsContent(hints))
	}
	return sb.String()
}

// memberKey 在签名基础上加入自身属性与对输入的属性要求
func (m *Memo) memberKey(n *rel.Node) string {
	var sb strings.Builder
	sb.WriteString(m.signature(n))
	sb.WriteByte('|')
	sb.WriteString(n.Traits().Digest())
	for _, in := range n.Inputs() {
		sb.WriteByte('|')
		sb.WriteString(in.Traits().Digest())
	}
	return sb.String()
}

func lookup(tree *btree.BTreeG[indexEntry], key string) (indexEntry, bool) {
	return tree.Get(newEntry(key))
}

func (m *Memo) newSet() SetID {
	id := SetID(len(m.sets))
	m.sets = append(m.sets, &eqSet{id: id, parent: id})
	return id
}

func (m *Memo) addMember(n *rel.Node, set SetID) *Member {
	mem := &Member{ID: MemberID(len(m.members)), Node: n, set: set}
	m.members = append(m.members, mem)
	m.byNode[n] = mem.ID
	s := m.sets[set]
	s.members = append(s.members, mem.ID)
	e := newEntry(m.memberKey(n))
	e.set, e.member = set, mem.ID
	m.keys.ReplaceOrInsert(e)
	return mem
}

// Register 登记一棵树，子树逐层换成占位符。
// target 不为 noSet 时结果必须落在该集合，与已有集合签名相同时两者合并。
// 返回结果所在集合，以及备忘录是否发生变化。
func (m *Memo) Register(n *rel.Node, target SetID) (SetID, bool) {
	if n.Kind() == rel.KindSetRef {
		s := m.Find(SetID(n.SetID()))
		if target != noSet && m.Find(target) != s {
			return m.merge(target, s), true
		}
		return s, false
	}

	changed := false
	inputs := n.Inputs()
	for i, in := range inputs {
		s, c := m.Register(in, noSet)
		changed = changed || c
		inputs[i] = rel.NewSetRef(int(s), in.Traits(), in.Columns())
	}
	if len(inputs) > 0 {
		n = n.WithInputs(inputs...)
	}

	set := noSet
	sig := m.signature(n)
	sigEntry, found := lookup(m.sigs, sig)
	if found {
		set = m.Find(sigEntry.set)
	}
	if target != noSet {
		t := m.Find(target)
		if set != noSet && set != t {
			set = m.merge(t, set)
			changed = true
		} else {
			set = t
		}
	}
	if set == noSet {
		set = m.newSet()
	}
	if !found {
		e := newEntry(sig)
		e.set = set
		m.sigs.ReplaceOrInsert(e)
	}

	if e, ok := lookup(m.keys, m.memberKey(n)); ok {
		if other := m.Find(e.set); other != m.Find(set) {
			m.merge(set, other)
			changed = true
		}
		return m.Find(set), changed
	}
	m.addMember(n, m.Find(set))
	return m.Find(set), true
}

// merge 合并两个集合，编号小的作为代表，随后重建索引
func (m *Memo) merge(a, b SetID) SetID {
	m.union(a, b)
	m.rehash()
	return m.Find(a)
}

func (m *Memo) union(a, b SetID) {
	a, b = m.Find(a), m.Find(b)
	if a == b {
		return
	}
	if b < a {
		a, b = b, a
	}
	m.sets[b].parent = a
	m.sets[a].members = append(m.sets[a].members, m.sets[b].members...)
	m.sets[b].members = nil
	sort.Slice(m.sets[a].members, func(i, j int) bool {
		return m.sets[a].members[i] < m.sets[a].members[j]
	})
	m.logger.Debug("sets merged", zap.Int("into", int(a)), zap.Int("from", int(b)))
}

// rehash 合并后成员的输入集合编号变化，重算签名；
// 新出现的签名冲突继续合并，成员键重复的保留编号较小者
func (m *Memo) rehash() {
	for {
		m.sigs.Clear(false)
		m.keys.Clear(false)

		var pending [][2]SetID
		for _, mem := range m.members {
			if mem.dead {
				continue
			}
			s := m.Find(mem.set)

			sig := m.signature(mem.Node)
			if e, ok := lookup(m.sigs, sig); ok {
				if other := m.Find(e.set); other != s {
					pending = append(pending, [2]SetID{other, s})
				}
			} else {
				e := newEntry(sig)
				e.set = s
				m.sigs.ReplaceOrInsert(e)
			}

			key := m.memberKey(mem.Node)
			if e, ok := lookup(m.keys, key); ok {
				mem.dead = true
				if other := m.Find(e.set); other != s {
					pending = append(pending, [2]SetID{other, s})
				}
				continue
			}
			e := newEntry(key)
			e.set, e.member = s, mem.ID
			m.keys.ReplaceOrInsert(e)
		}

		if len(pending) == 0 {
			return
		}
		for _, p := range pending {
			m.union(p[0], p[1])
		}
	}
}

// Dump 调试输出
func (m *Memo) Dump() string {
	var sb strings.Builder
	for _, s := range m.Sets() {
		fmt.Fprintf(&sb, "Set#%d\n", s)
		for _, mem := range m.Members(s) {
			fmt.Fprintf(&sb, "  %d: %s %s\n", mem.ID, rel.DisplayName(mem.Node), mem.Node.Traits().Digest())
		}
	}
	return sb.String()
}
