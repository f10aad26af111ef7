// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

/*
包 scheduler 实现单线程、协作式的调度周期。

# 周期流程

Driver.RunCycle 每次调用执行一个完整周期，区域按名称排序依次处理：

 1. 从 snapshot.Manager 读取快照，并按存活 worker 修剪；
 2. 按静态优先级刷新全部目标，再按全局请求顺序认领空闲 worker；
 3. 容量规划（可选）与孵化监督，每个设施每周期至多尝试一次；
 4. 每个已分配 worker 的任务推进一步；
 5. 清理已完成、超过 TTL 的请求以及死亡 worker 的分配；
 6. 写回一次快照。

context 在写回前结束时返回 ErrCycleAborted，本周期不持久化任何内容。
快照 schema 错误与存储错误使周期失败；单个请求或任务的错误只计数、记录日志。

# 观测

每个周期生成 scheduler.cycle span，每个区域生成 scheduler.region 子 span；
统计通过 metrics.Recorder 上报，Collector 额外记录类型化的 Prometheus 指标。
*/
package scheduler
