// Package coach 提供 Coach 协作方的确定性参考实现:基于关键词
// 启发式的多维评分,加权汇总为 0..10 的总分。
// 真实部署可替换为任意满足 sim.Coach 的外部评估服务。
package coach
