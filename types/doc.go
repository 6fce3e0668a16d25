// Copyright (c) PitchSim Authors.
// Licensed under the MIT License.

/*
Package types 提供 PitchSim 的全局共享类型定义。

# 概述

types 是仓库最底层的公共包，不依赖任何内部包，为 fsm、bandit、persona、
sim 等上层模块提供统一的类型契约。所有跨包共享的枚举、结构体和错误码
均定义于此，以避免循环依赖。

# 核心类型

  - ConversationState  — 销售对话阶段枚举（Opening → … → Completed/Failed）
  - TransitionTrigger  — 状态机触发事件枚举
  - RunStatus          — 模拟运行终止状态枚举
  - Message            — 对话消息（Role + Content）
  - Turn               — 单轮对话记录（含教练评分）
  - SimulationReport   — 训练报告（稳定的 JSON 契约，供外部报表工具消费）
  - Error / ErrorCode  — 结构化错误体系，含 Retryable 标记与原因链

# JSON 契约

SimulationReport 及其嵌套结构的 JSON 字段名是对外稳定契约，外部报表与
持久化工具依赖这些确切的字段名，修改属于破坏性变更。
*/
package types
