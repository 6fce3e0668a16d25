// Package reportstore 持久化模拟训练报告。
// 摘要字段落在结构化列上便于检索,完整报告以 JSON 形式整体存储。
package reportstore
