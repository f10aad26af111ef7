// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

// Package config 提供 SwarmFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（SWARMFLOW_ 前缀）的顺序叠加，
// Watcher 轮询配置文件并在变更后重新加载，供 serve 模式热更新角色配额。
package config
