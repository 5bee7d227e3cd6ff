package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/dep2p/go-fabric/internal/sim"
)

// ============================================================================
//                              环境变量覆盖（CLI 专用）
// ============================================================================

const envPrefix = "FABRIC_"

// applyEnvOverrides 应用环境变量覆盖集群形状
//
// 环境变量优先级高于默认值，但低于显式给出的命令行参数：
//   - FABRIC_RACKS: 机架数
//   - FABRIC_SHELVES: 每个机架的层板数
//   - FABRIC_SHELF: 层板芯片网格，形如 4x8
func applyEnvOverrides(spec *sim.Spec) {
	if v, ok := envInt("RACKS"); ok && !isFlagSet("racks") {
		spec.Racks = v
	}
	if v, ok := envInt("SHELVES"); ok && !isFlagSet("shelves") {
		spec.Shelves = v
	}
	if w, h, ok := parseGrid(os.Getenv(envPrefix + "SHELF")); ok {
		if !isFlagSet("width") {
			spec.Width = w
		}
		if !isFlagSet("height") {
			spec.Height = h
		}
	}
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("忽略无效的环境变量", "name", envPrefix+name, "value", v)
		return 0, false
	}
	return n, true
}

// parseGrid 解析 "WxH"
func parseGrid(s string) (int, int, bool) {
	ws, hs, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}
