package adblock_test

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/AdguardTeam/adblock"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/require"
)

// benchRulesCount is the number of generated rules in benchmarks.
const benchRulesCount = 20_000

// generateRules returns n distinct rules of all the kinds the lookup tables
// distinguish.
func generateRules(n int) (text string) {
	b := &strings.Builder{}
	for i := range n {
		switch i % 5 {
		case 0:
			_, _ = fmt.Fprintf(b, "||ads%d.example^\n", i)
		case 1:
			_, _ = fmt.Fprintf(b, "/banner%d/$domain=site%d.example\n", i, i)
		case 2:
			_, _ = fmt.Fprintf(b, "/track/pixel%d.gif\n", i)
		case 3:
			_, _ = fmt.Fprintf(b, "site%d.example##.ad-%d\n", i, i)
		default:
			_, _ = fmt.Fprintf(b, "##.generic-%d\n", i)
		}
	}

	return b.String()
}

// alloc returns the heap and RSS memory sizes, in kibibytes.
func alloc(tb testing.TB) (heap, rss uint64) {
	tb.Helper()

	p, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(tb, err)

	mi, err := p.MemoryInfo()
	require.NoError(tb, err)

	ms := &runtime.MemStats{}
	runtime.ReadMemStats(ms)

	return ms.Alloc / 1024, mi.RSS / 1024
}

func BenchmarkNewEngine(b *testing.B) {
	text := generateRules(benchRulesCount)

	heapBefore, rssBefore := alloc(b)

	var engine *adblock.Engine
	var err error

	b.ReportAllocs()
	for b.Loop() {
		engine, err = adblock.NewEngineFromRules(text, newTestConfig())
	}

	require.NoError(b, err)
	require.NotNil(b, engine)

	heapAfter, rssAfter := alloc(b)
	b.ReportMetric(float64(heapAfter)-float64(heapBefore), "heap_kib")
	b.ReportMetric(float64(rssAfter)-float64(rssBefore), "rss_kib")
}

func BenchmarkEngine_Match(b *testing.B) {
	engine := newTestEngine(b, generateRules(benchRulesCount))

	var blocked bool

	b.ReportAllocs()
	for b.Loop() {
		blocked = engine.Match("https://ads100.example/x.js", "", "site101.example", true, "script").Blocked
	}

	require.True(b, blocked)
}

func BenchmarkEngine_URLCosmeticResources(b *testing.B) {
	engine := newTestEngine(b, generateRules(benchRulesCount))

	var res *adblock.CosmeticResources

	b.ReportAllocs()
	for b.Loop() {
		res = engine.URLCosmeticResources("https://site103.example/")
	}

	require.NotEmpty(b, res.HideSelectors)
}

func BenchmarkEngine_Serialize(b *testing.B) {
	engine := newTestEngine(b, generateRules(benchRulesCount))

	var data []byte
	var err error

	b.ReportAllocs()
	for b.Loop() {
		data, err = engine.Serialize()
	}

	require.NoError(b, err)
	b.ReportMetric(float64(len(data))/1024, "snapshot_kib")
}
