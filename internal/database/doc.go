// Copyright (c) SwarmFlow Authors.
// Licensed under the MIT License.

/*
包 database 为快照的 SQL 后端提供 GORM 连接与连接池管理。

# 核心类型

  - Open / Dialector：按驱动名（postgres、mysql、sqlite）构造 GORM 连接，
    sqlite 使用纯 Go 实现，无需 cgo。
  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close()，后台定时健康检查。
  - WithTransaction / WithTransactionRetry：事务执行，死锁、
    序列化失败、连接中断等错误按指数退避重试。
*/
package database
