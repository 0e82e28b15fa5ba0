package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tsdbcore/model"
)

func TestShardedIndex_AddRouteByIDModN(t *testing.T) {
	si := NewShardedIndex(4)
	id := model.SeriesID(10)
	labels := cpuLabels("a")

	si.Add(id, labels)

	want := int(uint64(id) % 4)
	require.Equal(t, want, si.IndexFor(id))

	got, ok := si.GetLabels(id)
	require.True(t, ok)
	require.True(t, got.Equal(labels))
}

func TestShardedIndex_AddAtOverridesRouting(t *testing.T) {
	si := NewShardedIndex(4)
	id := model.SeriesID(10)
	natural := si.IndexFor(id)
	forced := (natural + 1) % 4

	si.AddAt(forced, id, cpuLabels("a"))

	// GetLabels still routes by id mod N, so it must NOT find the entry
	// placed in a different shard than its natural one.
	_, ok := si.GetLabels(id)
	require.False(t, ok)

	found := si.shards[forced].Find([]model.Matcher{model.NewMatcher(model.MatchEqual, "host", "a")})
	require.Equal(t, []model.SeriesID{id}, found)
}

func TestShardedIndex_RemoveAt(t *testing.T) {
	si := NewShardedIndex(4)
	id := model.SeriesID(10)
	forced := 2

	si.AddAt(forced, id, cpuLabels("a"))
	si.RemoveAt(forced, id)

	require.Equal(t, 0, si.shards[forced].Len())
}

func TestShardedIndex_FindWithLabels_Scatter(t *testing.T) {
	si := NewShardedIndex(4)
	for i := 0; i < 8; i++ {
		si.Add(model.SeriesID(i), cpuLabels("host"))
	}

	found, err := si.FindWithLabels(context.Background(), []model.Matcher{
		model.NewMatcher(model.MatchEqual, "host", "host"),
	})
	require.NoError(t, err)
	require.Len(t, found, 8)
}

func TestShardedIndex_Find_EmptyMatchersReturnsEverySeries(t *testing.T) {
	si := NewShardedIndex(3)
	si.Add(1, cpuLabels("a"))
	si.Add(2, cpuLabels("b"))

	ids, err := si.Find(context.Background(), nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []model.SeriesID{1, 2}, ids)
}

func TestShardedIndex_NamePresencePruning(t *testing.T) {
	si := NewShardedIndex(8)
	si.Add(1, model.NewLabelSet(model.Label{Name: "__name__", Value: "cpu"}))
	si.Add(2, model.NewLabelSet(model.Label{Name: "__name__", Value: "mem"}))

	matchers := []model.Matcher{model.NewMatcher(model.MatchEqual, "__name__", "cpu")}
	shards := si.shardsForQuery(matchers)

	// Only the shard(s) actually holding a "cpu" series should be
	// candidates, never the full shard set, once more than one name exists.
	require.NotEqual(t, si.NumShards(), len(shards))

	found, err := si.Find(context.Background(), matchers)
	require.NoError(t, err)
	require.Equal(t, []model.SeriesID{1}, found)
}

func TestShardedIndex_Remove_UpdatesNamePresence(t *testing.T) {
	si := NewShardedIndex(1) // single shard: the series and its name presence are in shard 0
	si.Add(1, model.NewLabelSet(model.Label{Name: "__name__", Value: "cpu"}))

	si.Remove(1)

	matchers := []model.Matcher{model.NewMatcher(model.MatchEqual, "__name__", "cpu")}
	require.Empty(t, si.shardsForQuery(matchers))
}

func TestShardedIndex_NewClampsNonPositiveShardCount(t *testing.T) {
	si := NewShardedIndex(0)
	require.Equal(t, 1, si.NumShards())
}
