// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

/*
包 migration 管理快照表 swarmflow_snapshots 的 Schema 版本，支持
PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌，也可以通过
Config.MigrationsPath 指向磁盘目录。SQLite 使用纯 Go 的 modernc
驱动，无需 CGO。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close。context 结束时在当前迁移完成后停止。
  - CLI：终端输出层，Run 按子命令分发，供 swarmflow migrate 使用。
  - NewMigratorFromConfig：从应用配置的数据库段创建迁移器。
*/
package migration
