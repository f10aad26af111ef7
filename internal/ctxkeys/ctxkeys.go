// Package ctxkeys holds the context keys shared across the scheduler.
package ctxkeys

import (
	"context"

	"go.uber.org/zap"
)

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	runIDKey  contextKey = "run_id"
	cycleKey  contextKey = "cycle"
	regionKey contextKey = "region"
)

// WithRunID 设置 RunID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取 RunID
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithCycle 设置当前周期号
func WithCycle(ctx context.Context, cycle int) context.Context {
	return context.WithValue(ctx, cycleKey, cycle)
}

// Cycle 获取当前周期号
func Cycle(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(cycleKey).(int)
	return v, ok
}

// WithRegion 设置当前区域
func WithRegion(ctx context.Context, region string) context.Context {
	return context.WithValue(ctx, regionKey, region)
}

// Region 获取当前区域
func Region(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(regionKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// LogFields 返回 context 中携带的日志字段
func LogFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if v, ok := RunID(ctx); ok {
		fields = append(fields, zap.String("run_id", v))
	}
	if v, ok := Cycle(ctx); ok {
		fields = append(fields, zap.Int("cycle", v))
	}
	if v, ok := Region(ctx); ok {
		fields = append(fields, zap.String("region", v))
	}
	return fields
}
