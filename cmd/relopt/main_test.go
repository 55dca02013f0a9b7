package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHints(t *testing.T) {
	hints, err := parseHints("no_hash_join; MERGE_JOIN(EMP, DEPT);")
	require.NoError(t, err)
	require.Len(t, hints, 2)
	assert.Equal(t, "NO_HASH_JOIN", hints[0].Name())
	assert.Empty(t, hints[0].ListOptions())
	assert.Equal(t, "MERGE_JOIN", hints[1].Name())
	assert.Equal(t, []string{"EMP", "DEPT"}, hints[1].ListOptions())

	hints, err = parseHints("")
	require.NoError(t, err)
	assert.Empty(t, hints)

	_, err = parseHints("use_index(EMPNO")
	assert.Error(t, err)
}
