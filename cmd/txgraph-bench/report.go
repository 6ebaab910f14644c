package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

func renderTable(w io.Writer, cfg config, res result) {
	tb := tablewriter.NewWriter(w)
	tb.SetHeader([]string{"Metric", "Value"})
	tb.SetAlignment(tablewriter.ALIGN_LEFT)
	tb.AppendBulk([][]string{
		{"Threads", strconv.Itoa(cfg.threads)},
		{"Transaction size", strconv.Itoa(cfg.txnSize)},
		{"Elapsed", res.elapsed.Round(time.Millisecond).String()},
		{"Ops/s", fmt.Sprintf("%.0f", res.opsPerSec(cfg.txnSize))},
		{"Total commits", strconv.FormatInt(res.commits, 10)},
		{"Total aborts", strconv.FormatInt(res.aborts, 10)},
		{"Success rate", fmt.Sprintf("%.2f%%", 100*res.successRate())},
		{"Latency p50", latencyAt(res, 50)},
		{"Latency p99", latencyAt(res, 99)},
		{"Latency p99.9", latencyAt(res, 99.9)},
		{"Latency max", time.Duration(res.latency.Max()).String()},
		{"Helps", strconv.FormatUint(res.stats.Helps, 10)},
		{"Cycle aborts", strconv.FormatUint(res.stats.CycleAborts, 10)},
		{"Retired nodes", strconv.FormatUint(res.stats.Retired, 10)},
		{"Live vertices", strconv.FormatUint(res.vertices, 10)},
		{"Arena memory", fmt.Sprintf("%.2f MB", float64(res.memory)/(1024*1024))},
	})
	tb.Render()
}

func latencyAt(res result, p float64) string {
	return time.Duration(res.latency.ValueAtPercentile(p)).String()
}
