// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 SwarmFlow 调度核心的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 swarm/*、world、config
等上层模块提供统一的错误契约，避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 Retryable 标记与 Cause 链
  - SCHEMA            — 快照 schema 无法解析（致命，整个周期放弃）
  - TARGET_GONE       — 目标实体已消失（任务 FAILED，下周期重新匹配）
  - BUSY / INSUFFICIENT_RESOURCE — 设施忙或资源不足（本周期占用设施）
  - MALFORMED_REQUEST — 请求本身无效（记录日志并丢弃请求）

# 主要能力

  - 错误构造：NewSchemaError / NewTargetGoneError / NewMalformedRequestError 等
  - 错误判断：IsErrorCode / IsFatal / IsRetryable / GetErrorCode
*/
package types
