package kernelcache_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"testing"

	"github.com/djdv/go-kernelcache"
)

const elementSize = 4 // float32

func TestCache(t *testing.T) {
	t.Run("invalid budget", invalidBudget)
	t.Run("empty miss", emptyMiss)
	t.Run("hit", hit)
	t.Run("grow preserves prefix", growPreservesPrefix)
	t.Run("shorter request", shorterRequest)
	t.Run("budget bounds", budgetBounds)
	t.Run("eviction order", evictionOrder)
	t.Run("one row budget", oneRowBudget)
	t.Run("grow evicts others", growEvictsOthers)
	t.Run("overflow", overflow)
	t.Run("overflow is logged", overflowLogged)
	t.Run("swap", swap)
}

func invalidBudget(t *testing.T) {
	for _, budget := range []int64{-1, 0, elementSize - 1} {
		t.Run(fmt.Sprintf("%d", budget), func(t *testing.T) {
			t.Parallel()
			cache, err := kernelcache.New[float32](budget)
			if cache != nil || !errors.Is(err, kernelcache.ErrInvalidBudget) {
				t.Errorf(
					"New did not return ErrInvalidBudget for budget %d: %v",
					budget, err,
				)
			}
		})
	}
}

func emptyMiss(t *testing.T) {
	t.Parallel()
	const length = 4
	cache := newCache(t, length)
	data, valid := cache.Fetch(0, length)
	checkValid(t, valid, 0, "empty cache")
	checkLength(t, data, length)
	checkStats(t, cache, kernelcache.Stats{
		Misses: 1, Rows: 1, Elements: length, Capacity: length,
	})
}

func hit(t *testing.T) {
	t.Parallel()
	const (
		key    = 3
		length = 5
	)
	cache := newCache(t, length*2)
	fill(cache, key, length)
	data, valid := cache.Fetch(key, length)
	checkValid(t, valid, length, "resident row")
	checkRow(t, data, key, length)
	if stats := cache.Stats(); stats.Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", stats.Hits)
	}
}

func growPreservesPrefix(t *testing.T) {
	t.Parallel()
	const (
		key   = 1
		short = 3
		long  = 7
	)
	cache := newCache(t, long)
	fill(cache, key, short)
	data, valid := cache.Fetch(key, long)
	checkValid(t, valid, short, "grown row")
	checkLength(t, data, long)
	checkRow(t, data[:short], key, short)
	checkSize(t, cache, long, "after growth")
	if stats := cache.Stats(); stats.Grows != 1 {
		t.Fatalf("expected 1 grow, got %d", stats.Grows)
	}
}

func shorterRequest(t *testing.T) {
	t.Parallel()
	const (
		key  = 2
		long = 6
	)
	cache := newCache(t, long)
	fill(cache, key, long)
	for _, length := range []int{long - 1, 1, 0} {
		data, valid := cache.Fetch(key, length)
		checkValid(t, valid, length, "shorter request")
		checkRow(t, data, key, length)
		checkSize(t, cache, long, "suffix must remain cached")
	}
}

func budgetBounds(t *testing.T) {
	const (
		length   = 4
		rows     = 3
		capacity = length * rows
	)
	for _, test := range []struct {
		name string
		keys int
	}{
		{"under budget", rows - 1},
		{"at budget", rows},
		{"must evict", rows * 3},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			cache := newCache(t, capacity)
			for key := range test.keys {
				fill(cache, key, length)
				if size := cache.Size(); size > capacity {
					t.Fatalf("budget exceeded: %d > %d", size, capacity)
				}
			}
			wantRows := min(test.keys, rows)
			checkSize(t, cache, wantRows*length, test.name)
			checkKeyLength(t, cache, wantRows, test.name)
		})
	}
}

func evictionOrder(t *testing.T) {
	const (
		length = 2
		rows   = 3
	)
	cache := newCache(t, length*rows)
	t.Run("fill cache", func(t *testing.T) {
		for key := range rows {
			fill(cache, key, length)
		}
		keysMatch(t, cache, []int{0, 1, 2}, "insertion order")
	})
	t.Run("touch oldest", func(t *testing.T) {
		_, valid := cache.Fetch(0, length)
		checkValid(t, valid, length, "touch")
		keysMatch(t, cache, []int{1, 2, 0}, "after touch")
	})
	t.Run("evict+add row", func(t *testing.T) {
		// Key 1 is now the least recently used.
		fill(cache, 3, length)
		keysMatch(t, cache, []int{2, 0, 3}, "after eviction")
		if stats := cache.Stats(); stats.Evictions != 1 {
			t.Fatalf("expected 1 eviction, got %d", stats.Evictions)
		}
	})
}

func oneRowBudget(t *testing.T) {
	t.Parallel()
	const length = 3
	cache := newCache(t, length)
	fill(cache, 0, length)
	fill(cache, 1, length)
	keysMatch(t, cache, []int{1}, "second row must evict the first")
	_, valid := cache.Fetch(0, length)
	checkValid(t, valid, 0, "evicted row must be recomputed")
}

func growEvictsOthers(t *testing.T) {
	t.Parallel()
	const (
		short    = 2
		capacity = short * 3
	)
	cache := newCache(t, capacity)
	for key := range 3 {
		fill(cache, key, short)
	}
	// Growing the oldest row must not evict the row itself.
	data, valid := cache.Fetch(0, short*2)
	checkValid(t, valid, short, "grown oldest row")
	checkRow(t, data[:short], 0, short)
	keysMatch(t, cache, []int{2, 0}, "growth evicts from the head")
	checkSize(t, cache, short+short*2, "after growth")
}

func overflow(t *testing.T) {
	t.Parallel()
	const (
		capacity = 4
		key      = 0
	)
	cache := newCache(t, capacity)
	fill(cache, key, capacity)
	fill(cache, 1, 1) // evicts key 0
	fill(cache, key, 2)
	data, valid := cache.Fetch(key, capacity+1)
	checkValid(t, valid, 0, "row longer than budget")
	checkLength(t, data, capacity+1)
	for i := range data { // Caller may write the whole row.
		data[i] = 1
	}
	if _, resident := residentKeys(cache)[key]; resident {
		t.Fatal("overflowing row must not stay resident")
	}
	if size := cache.Size(); size > capacity {
		t.Fatalf("budget exceeded: %d > %d", size, capacity)
	}
	if stats := cache.Stats(); stats.Overflows != 1 {
		t.Fatalf("expected 1 overflow, got %d", stats.Overflows)
	}
}

func overflowLogged(t *testing.T) {
	t.Parallel()
	const capacity = 2
	var (
		output bytes.Buffer
		logger = slog.New(slog.NewJSONHandler(&output, nil))
	)
	cache, err := kernelcache.New[float32](
		capacity*elementSize,
		kernelcache.WithLogger(logger),
	)
	if err != nil {
		t.Fatal(err)
	}
	fill(cache, 0, capacity)
	if output.Len() != 0 {
		t.Fatalf("unexpected log output for a fitting row: %s", output.String())
	}
	fill(cache, 7, capacity+1)
	var record struct {
		Level    string `json:"level"`
		Msg      string `json:"msg"`
		Key      int    `json:"key"`
		Length   int    `json:"length"`
		Capacity int    `json:"capacity"`
	}
	if err := json.Unmarshal(output.Bytes(), &record); err != nil {
		t.Fatalf("decoding log record %q: %v", output.String(), err)
	}
	if record.Level != slog.LevelWarn.String() ||
		record.Key != 7 ||
		record.Length != capacity+1 ||
		record.Capacity != capacity {
		t.Fatalf("unexpected log record: %+v", record)
	}
}

func swap(t *testing.T) {
	const length = 3
	t.Run("both resident", func(t *testing.T) {
		t.Parallel()
		cache := newCache(t, length*4)
		fill(cache, 0, length)
		fill(cache, 1, length)
		cache.Swap(0, 1)
		data, valid := cache.Fetch(0, length)
		checkValid(t, valid, length, "swapped row")
		checkRow(t, data, 1, length)
		data, _ = cache.Fetch(1, length)
		checkRow(t, data, 0, length)
	})
	t.Run("one resident", func(t *testing.T) {
		t.Parallel()
		cache := newCache(t, length*4)
		fill(cache, 0, length)
		cache.Swap(0, 5)
		keysMatch(t, cache, []int{5}, "relabeled")
		data, valid := cache.Fetch(5, length)
		checkValid(t, valid, length, "relabeled row")
		checkRow(t, data, 0, length)
		cache.Swap(1, 5)
		keysMatch(t, cache, []int{1}, "relabeled back")
	})
	t.Run("neither resident", func(t *testing.T) {
		t.Parallel()
		cache := newCache(t, length*4)
		fill(cache, 0, length)
		cache.Swap(1, 2)
		cache.Swap(0, 0)
		keysMatch(t, cache, []int{0}, "no-op swap")
	})
	t.Run("recency follows data", func(t *testing.T) {
		t.Parallel()
		cache := newCache(t, length*2)
		fill(cache, 0, length)
		fill(cache, 1, length)
		cache.Swap(0, 1)
		// The oldest row (data of 0) is now keyed 1.
		fill(cache, 2, length)
		keysMatch(t, cache, []int{0, 2}, "evicted by data age")
	})
}

func newCache(tb testing.TB, capacity int) *kernelcache.Cache[float32] {
	tb.Helper()
	cache, err := kernelcache.New[float32](int64(capacity * elementSize))
	if err != nil {
		tb.Fatal(err)
	}
	if got := cache.Capacity(); got != capacity {
		tb.Fatalf("expected capacity %d, got %d", capacity, got)
	}
	return cache
}

// value encodes the key and column so rows are distinguishable.
func value(key, column int) float32 {
	return float32(key*1000 + column)
}

// fill fetches key and computes its invalid suffix.
func fill(cache *kernelcache.Cache[float32], key, length int) {
	data, valid := cache.Fetch(key, length)
	for column := valid; column < length; column++ {
		data[column] = value(key, column)
	}
}

func checkRow(tb testing.TB, data []float32, key, length int) {
	tb.Helper()
	checkLength(tb, data, length)
	for column, got := range data {
		if want := value(key, column); got != want {
			tb.Fatalf(
				"row %d column %d mismatch"+
					"\n\tgot: %v"+
					"\n\twant: %v",
				key, column, got, want)
		}
	}
}

func checkLength(tb testing.TB, data []float32, length int) {
	tb.Helper()
	if got := len(data); got != length {
		tb.Fatalf(
			"expected row length to match"+
				"\n\tgot: %d"+
				"\n\twant: %d",
			got, length)
	}
}

func checkValid(tb testing.TB, got, want int, why string) {
	tb.Helper()
	if got == want {
		return
	}
	tb.Fatalf(
		"unexpected valid length for %s"+
			"\n\tgot: %d"+
			"\n\twant: %d",
		why, got, want)
}

func checkSize(tb testing.TB, cache *kernelcache.Cache[float32], size int, action string) {
	tb.Helper()
	got := cache.Size()
	if got == size {
		return
	}
	tb.Fatalf(
		"expected cache to be specific size %s"+
			"\n\tgot: %d"+
			"\n\twant: %d",
		action, got, size)
}

func checkKeyLength(tb testing.TB, cache *kernelcache.Cache[float32], length int, action string) {
	tb.Helper()
	var got int
	for range cache.Keys() {
		got++
	}
	if got != length || cache.Len() != length {
		tb.Fatalf(
			"expected cache to hold specific row count %s"+
				"\n\tgot: %d (Len %d)"+
				"\n\twant: %d",
			action, got, cache.Len(), length)
	}
}

func checkStats(tb testing.TB, cache *kernelcache.Cache[float32], want kernelcache.Stats) {
	tb.Helper()
	if got := cache.Stats(); got != want {
		tb.Fatalf(
			"unexpected stats"+
				"\n\tgot: %+v"+
				"\n\twant: %+v",
			got, want)
	}
}

// keysMatch compares resident keys in recency order.
func keysMatch(tb testing.TB, cache *kernelcache.Cache[float32], want []int, msg string) {
	tb.Helper()
	got := slices.Collect(cache.Keys())
	if !slices.Equal(got, want) {
		tb.Fatalf(
			"%s: "+
				"want: %v"+
				"\ngot %v",
			msg, want, got)
	}
}

func residentKeys(cache *kernelcache.Cache[float32]) map[int]struct{} {
	keys := make(map[int]struct{}, cache.Len())
	for key := range cache.Keys() {
		keys[key] = struct{}{}
	}
	return keys
}
