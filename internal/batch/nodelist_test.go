package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandNodeList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single node", "node1", []string{"node1"}},
		{"bare list", "node1,node2", []string{"node1", "node2"}},
		{"range is upper exclusive", "nodeA[0-3]", []string{"nodeA0", "nodeA1", "nodeA2"}},
		{"range plus singleton", "nodeA[0-3,7]", []string{"nodeA0", "nodeA1", "nodeA2", "nodeA7"}},
		{"multiple groups", "a[0-2],b5", []string{"a0", "a1", "b5"}},
		{"non numeric part kept verbatim", "gpu[x,1]", []string{"gpux", "gpu1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandNodeList(tt.raw))
		})
	}
}

func TestExpandTorqueNodes(t *testing.T) {
	assert.Equal(t, []string{"node1", "node1", "node2"},
		expandTorqueNodes("node1/0+node1/1+node2/0"))
	assert.Nil(t, expandTorqueNodes("--"))
	assert.Nil(t, expandTorqueNodes(""))
}

func TestOptInt(t *testing.T) {
	assert.Nil(t, optInt(""))
	assert.Nil(t, optInt("N/A"))
	assert.Nil(t, optInt("n/a"))
	assert.Equal(t, intPtr(12), optInt(" 12 "))
	assert.Nil(t, optInt("twelve"))
}

func TestOptExitCode(t *testing.T) {
	assert.Equal(t, intPtr(0), optExitCode("0:0"))
	assert.Equal(t, intPtr(9), optExitCode("1:9"))
	assert.Equal(t, intPtr(2), optExitCode("2"))
	assert.Nil(t, optExitCode(""))
}

func TestResolveUser(t *testing.T) {
	// uid 0 exists on any system we run tests on.
	assert.Equal(t, "root", resolveUser("0"))
	assert.Equal(t, "alice", resolveUser("alice"))
	assert.Equal(t, "", resolveUser(""))
}
