// Package salesagent 提供 Agent 协作方的参考实现:从客户消息中检测
// 触发信号驱动状态机,并通过 bandit 路由器在线选择应答技巧。
// 真实部署可替换为任意满足 sim.Agent 的外部服务。
package salesagent
