// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

/*
包 server 提供调度器运维 HTTP 服务：生命周期管理、路由与中间件。

# 核心类型

  - Manager：封装 net/http.Server，提供 Start/Run/Shutdown。Run
    阻塞到 context 结束或服务出错，然后优雅关闭，便于放入 errgroup。
  - NewHandler：/health、/ready（执行 HealthCheck）、/version、
    /metrics 与 /api/v1/status。
  - Middleware：Recovery、RequestID、RequestLogger、Metrics、
    Tracing 与基于 IP 的 RateLimiter，通过 Chain 组合。
*/
package server
