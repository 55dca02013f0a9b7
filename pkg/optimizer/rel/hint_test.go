package rel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHintBuilder_NameIsUpperCased(t *testing.T) {
	h, err := NewListHint("no_hash_join")
	require.NoError(t, err)
	assert.Equal(t, "NO_HASH_JOIN", h.Name())
	assert.Equal(t, OptionsNone, h.OptionForm())
}

func TestHintBuilder_ListOptionsKeepSpelling(t *testing.T) {
	h, err := NewListHint("index", "emp", "IDX1", 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"emp", "IDX1", "42"}, h.ListOptions())
	assert.Equal(t, OptionsList, h.OptionForm())
	assert.Equal(t, "[INDEX inheritPath:[] options:[emp, IDX1, 42]]", h.String())
}

func TestHintBuilder_KVOptions(t *testing.T) {
	h, err := NewKVHint("properties", "K1", "v1", "K2", "v2")
	require.NoError(t, err)
	assert.Equal(t, OptionsKV, h.OptionForm())
	assert.Equal(t, []string{"K1", "K2"}, h.KVKeys())
	v, ok := h.KVOption("K2")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
	assert.Equal(t, "[PROPERTIES inheritPath:[] options:{K1=v1, K2=v2}]", h.String())
}

func TestHintBuilder_RejectsMixedOptions(t *testing.T) {
	_, err := NewHintBuilder("resource").Option("a").KVOption("MEM", "1024").Build()
	assert.Error(t, err)

	_, err = NewKVHint("resource", "MEM")
	assert.Error(t, err)

	_, err = NewHintBuilder("  ").Build()
	assert.Error(t, err)
}

func TestHint_ExtendPathDoesNotAlias(t *testing.T) {
	base := NewHintBuilder("no_hash_join").InheritPath(0).MustBuild()
	a := base.ExtendPath(1)
	b := base.ExtendPath(2)

	assert.Equal(t, []int{0}, base.InheritPath())
	assert.Equal(t, []int{0, 1}, a.InheritPath())
	assert.Equal(t, []int{0, 2}, b.InheritPath())
}

func TestHint_Equal(t *testing.T) {
	a := NewHintBuilder("use_hash_join").Option("EMP", "DEPT").MustBuild()
	b := NewHintBuilder("USE_HASH_JOIN").Option("EMP", "DEPT").MustBuild()
	assert.True(t, a.Equal(b))

	assert.False(t, a.Equal(a.ExtendPath(0)))
	assert.False(t, a.Equal(NewHintBuilder("use_hash_join").Option("EMP").MustBuild()))

	kv1 := NewHintBuilder("props").KVOption("A", "1").KVOption("B", "2").MustBuild()
	kv2 := NewHintBuilder("props").KVOption("B", "2").KVOption("A", "1").MustBuild()
	assert.True(t, kv1.Equal(kv2))
	assert.False(t, kv1.Equal(NewHintBuilder("props").KVOption("A", "1").MustBuild()))
}

func TestHintsContent_IgnoresInheritPath(t *testing.T) {
	h := NewHintBuilder("index").Option("EMPNO").MustBuild()
	assert.Equal(t, HintsContent([]Hint{h}), HintsContent([]Hint{h.ExtendPath(0).ExtendPath(1)}))
	assert.NotEqual(t, HintsString([]Hint{h}), HintsString([]Hint{h.ExtendPath(0)}))
	assert.NotEqual(t, HintsContent([]Hint{h}), HintsContent([]Hint{NewHintBuilder("index").Option("ENAME").MustBuild()}))
}

func TestExtendHints(t *testing.T) {
	hints := []Hint{
		NewHintBuilder("a").MustBuild(),
		NewHintBuilder("b").InheritPath(1).MustBuild(),
	}
	out := ExtendHints(hints, 0)
	require.Len(t, out, 2)
	assert.Equal(t, []int{0}, out[0].InheritPath())
	assert.Equal(t, []int{1, 0}, out[1].InheritPath())
	assert.Empty(t, hints[0].InheritPath())
	assert.Nil(t, ExtendHints(nil, 3))
}
