package tools

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/arrg-project/arrg/mcp"
	"github.com/arrg-project/arrg/schema"
)

// SystemInfo returns the system_info tool reporting CPU and memory state of
// the host the server runs on.
func SystemInfo() (mcp.ToolDefinition, mcp.Executor) {
	definition := mcp.ToolDefinition{
		Name:        toolName("SystemInfo"),
		Description: "Report CPU and memory information for the host",
		InputSchema: inputSchema(&schema.JSON{
			Properties: map[string]*schema.JSON{},
		}),
	}

	executor := mcp.ExecutorFunc(func(_ context.Context, _ map[string]any) ([]mcp.ContentBlock, error) {
		var b strings.Builder
		fmt.Fprintf(&b, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(&b, "Logical CPUs: %d\n", runtime.NumCPU())

		if cpuInfos, err := cpu.Info(); err == nil && len(cpuInfos) > 0 {
			fmt.Fprintf(&b, "CPU model: %s\n", cpuInfos[0].ModelName)
		}
		// Instantaneous sample; a zero interval avoids blocking the call.
		if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
			fmt.Fprintf(&b, "CPU usage: %.1f%%\n", percents[0])
		}

		vm, err := mem.VirtualMemory()
		if err != nil {
			return nil, fmt.Errorf("reading memory stats: %w", err)
		}
		fmt.Fprintf(&b, "Memory: %.1f GiB total, %.1f GiB available, %.1f%% used",
			gib(vm.Total), gib(vm.Available), vm.UsedPercent)

		return []mcp.ContentBlock{mcp.TextBlock(b.String())}, nil
	})

	return definition, executor
}

func gib(bytes uint64) float64 {
	return float64(bytes) / (1 << 30)
}
