package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/core"
)

type appendNode struct {
	id  int64
	err error
}

func (n *appendNode) Name() string { return "test.append" }
func (n *appendNode) Kind() Kind   { return KindRecall }
func (n *appendNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	if n.err != nil {
		return nil, n.err
	}
	return append(items, core.NewItem(n.id)), nil
}

func TestPipeline_Run(t *testing.T) {
	p := &Pipeline{Nodes: []Node{&appendNode{id: 1}, &appendNode{id: 2}}}
	items, err := p.Run(context.Background(), core.NewRecommendContext("r", []int64{9}), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[1].ID)

	ext := p.Append(&appendNode{id: 3})
	assert.Len(t, p.Nodes, 2)
	assert.Len(t, ext.Nodes, 3)
}

func TestPipeline_RunError(t *testing.T) {
	boom := errors.New("boom")
	p := &Pipeline{Nodes: []Node{&appendNode{id: 1}, &appendNode{err: boom}}}
	_, err := p.Run(context.Background(), core.NewRecommendContext("r", nil), nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "test.append")
}

func TestConfig_BuildPipeline(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
pipeline:
  name: hybrid
  nodes:
    - type: test.append
      config:
        id: 7
`))
	require.NoError(t, err)
	assert.Equal(t, "hybrid", cfg.Pipeline.Name)

	f := NewNodeFactory()
	f.Register("test.append", func(c map[string]any) (Node, error) {
		return &appendNode{id: int64(c["id"].(int))}, nil
	})
	p, err := cfg.BuildPipeline(f)
	require.NoError(t, err)
	items, err := p.Run(context.Background(), core.NewRecommendContext("r", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), items[0].ID)

	bad := &Config{}
	bad.Pipeline.Nodes = []NodeConfig{{Type: "nope"}}
	_, err = bad.BuildPipeline(f)
	assert.Error(t, err)
}
