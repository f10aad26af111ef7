// =============================================================================
// SwarmFlow OpenTelemetry SDK Initialization
// =============================================================================
// Sets up OTLP trace and metric export for the scheduler. When telemetry is
// disabled, no exporters are created and the global providers stay noop, so
// cycle spans cost nothing.
// =============================================================================

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/config"
)

// ScopeName is the instrumentation scope of scheduler spans.
const ScopeName = "github.com/BaSui01/swarmflow"

// Providers holds the OTel SDK TracerProvider and MeterProvider.
// When telemetry is disabled, both fields are nil and Shutdown is a no-op.
type Providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// =============================================================================
// 🏷️ 调度器资源属性
// =============================================================================

// 调度器实例的资源属性键
const (
	AttrStoreType    = attribute.Key("swarmflow.store.type")
	AttrSnapshotKey  = attribute.Key("swarmflow.snapshot.key")
	AttrTickInterval = attribute.Key("swarmflow.tick.interval_ms")
	AttrRequestTTL   = attribute.Key("swarmflow.request.ttl")
)

// Deployment 描述一个调度器实例。同一快照键的多个实例通过 InstanceID 区分。
type Deployment struct {
	InstanceID   string
	StoreType    string
	SnapshotKey  string
	TickInterval time.Duration
	RequestTTL   int
}

func (d Deployment) attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if d.InstanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceIDKey.String(d.InstanceID))
	}
	if d.StoreType != "" {
		attrs = append(attrs, AttrStoreType.String(d.StoreType))
	}
	if d.SnapshotKey != "" {
		attrs = append(attrs, AttrSnapshotKey.String(d.SnapshotKey))
	}
	if d.TickInterval > 0 {
		attrs = append(attrs, AttrTickInterval.Int64(d.TickInterval.Milliseconds()))
	}
	if d.RequestTTL > 0 {
		attrs = append(attrs, AttrRequestTTL.Int(d.RequestTTL))
	}
	return attrs
}

// NewResource builds the OTel resource shared by spans and metrics.
func NewResource(ctx context.Context, serviceName string, d Deployment) (*resource.Resource, error) {
	attrs := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(BuildVersion()),
	}, d.attributes()...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}
	return res, nil
}

// =============================================================================
// 🚀 初始化
// =============================================================================

// Init initializes the OTel SDK. When cfg.Enabled is false, it returns
// a noop Providers without connecting to any external service.
func Init(ctx context.Context, cfg config.TelemetryConfig, d Deployment, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("telemetry disabled, using noop providers")
		return &Providers{}, nil
	}

	res, err := NewResource(ctx, cfg.ServiceName, d)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.String("instance_id", d.InstanceID),
		zap.String("store_type", d.StoreType),
		zap.Float64("sample_rate", cfg.SampleRate),
	)

	return &Providers{tp: tp, mp: mp}, nil
}

// Tracer returns the scheduler tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}

// Shutdown flushes pending spans/metrics and closes exporters.
// Safe to call on noop Providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// BuildVersion extracts the module version from Go build info.
// Falls back to "dev" if unavailable.
func BuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
