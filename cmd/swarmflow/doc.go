// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 SwarmFlow 调度器的命令行入口。

# 概述

cmd/swarmflow 将快照存储、模拟世界、调度驱动与运维 HTTP 服务组装在一起，
支持 YAML 配置加载、结构化日志（zap）、Prometheus 指标与 OpenTelemetry 追踪。

# 子命令

  - run：对场景文件运行 N 个周期，每个周期打印一行摘要
  - serve：按 tick 间隔常驻运行，同时提供 /health、/ready、/metrics
    与 /api/v1/status；--watch 时配置文件变更会热更新角色配额
  - inspect：打印当前快照（升级到当前版本）；--raw 打印原始字节
  - migrate：SQL 快照表的迁移（up、down、status 等）
  - version、help

# 生命周期

serve 使用 errgroup 管理 HTTP 服务、调度循环、配置监听与连接池采样。
收到 SIGINT/SIGTERM 后 context 取消：正在进行的周期放弃保存，
HTTP 服务优雅关闭。快照模式错误会终止服务，其他周期错误在下一个 tick 重试。
*/
package main
