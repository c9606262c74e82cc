package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rushteam/moviematch/core"
)

func TestTopNNode(t *testing.T) {
	items := []*core.Item{core.NewItem(1), core.NewItem(2), core.NewItem(3)}

	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 3},
		{n: -1, want: 3},
		{n: 2, want: 2},
		{n: 5, want: 3},
	}
	for _, tt := range tests {
		out, err := (&TopNNode{N: tt.n}).Process(context.Background(), nil, items)
		assert.NoError(t, err)
		assert.Len(t, out, tt.want)
	}
}
