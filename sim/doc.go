// Package sim 驱动一次完整的销售模拟:回合循环、终止检测与训练报告合成。
//
// Orchestrator 串行推进单次运行(回合 N+1 依赖回合 N 的外部协作方结果),
// BatchRunner 在有界工作池中并发调度多次独立运行。
package sim
