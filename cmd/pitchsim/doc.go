// Copyright (c) PitchSim Authors.
// Licensed under the MIT License.

/*
Package main 提供 PitchSim 命令行入口。

# 概述

cmd/pitchsim 是销售对练模拟器的可执行入口,提供单次模拟、批量模拟、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、结构化日志
(zap)、Prometheus 指标采集与 OpenTelemetry 上报。

# 主要能力

  - 子命令:run(单次模拟)、batch(批量模拟)、version、health
  - 引擎装配:状态机 + bandit 路由器 + 参考 Agent/Coach + 编排器,
    指标采集器同时挂接状态转换、路由决策与运行结果
  - 待反馈决策存储:内存(带 TTL 清扫)或 Redis,按配置选择
  - 报告持久化:--save 时经 gorm 写入 postgres / mysql / sqlite
  - Metrics 服务器:batch 期间暴露 /metrics(Prometheus)与 /healthz
  - 构建注入:Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
