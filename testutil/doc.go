// Copyright 2026 PitchSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 PitchSim 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual
  - 异步断言: AssertEventuallyTrue，支持超时轮询等待条件满足
  - 数据工具: MustJSON / FixedRand，FixedRand 返回 Float64 恒为给定值
    的随机源，用于画像模拟器与编排器的确定性测试

# 使用示例

	ctx := testutil.TestContext(t)
	rng := testutil.FixedRand(0.5)
	sim := persona.NewSimulator(profile, persona.WithRand(rng))
*/
package testutil
