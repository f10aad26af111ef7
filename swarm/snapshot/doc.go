// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

/*
包 snapshot 负责世界模型快照的编解码、版本迁移与持久化。

# 概述

调度器每个周期从后端读取一次快照、迁移到当前版本并按存活 worker
重新校验，然后在周期结束时写回一次。快照中只保存 id 与坐标，
从不保存实时句柄。

# 核心类型

  - Snapshot / Region：按区域划分的请求、容量请求与任务描述。
  - Encode / Decode：逐变体的显式编解码，输出确定。
  - Migrate：逐版本向前迁移，缺失、小于 1 或高于 CurrentVersion
    的版本返回 SCHEMA 错误。
  - Backend：Get/Put/Ping/Close 接口，实现有 Memory、File、Redis、
    SQL（GORM）与 MongoDB。
  - Manager：Load/Save 封装。
*/
package snapshot
