// Package config 提供 PitchSim 的统一配置加载：
// 默认值 → YAML 文件 → 环境变量（PITCHSIM_ 前缀）三级覆盖。
package config
