// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的调度指标采集能力，覆盖
调度周期、请求、任务、孵化、HTTP 与数据库六个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
注册机制，可注册到默认 Registry 或调用方提供的 Registerer。
所有指标按 namespace 隔离。

# 核心类型

  - Recorder：按名称记录统计值的接口，调度器只依赖该接口。
  - NopRecorder：丢弃所有统计值。
  - Collector：Recorder 的 Prometheus 实现，同时暴露按业务域
    分组的专用记录方法。

# 主要能力

  - 周期指标：周期总数（按 ok/aborted/failed）、周期耗时。
  - 调度指标：认领数、清理数、剩余开放请求，按 region 分组；
    任务步进结果与孵化尝试结果计数。
  - HTTP 指标：请求总数与耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - 数据库指标：活跃/空闲连接数 Gauge。
*/
package metrics
