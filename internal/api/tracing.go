package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/auth"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName 追踪和日志使用的服务名
const ServiceName = "procurement-gin"

var tracerProvider *tracesdk.TracerProvider

// TracingOptions 链路追踪参数
type TracingOptions struct {
	Endpoint    string
	Environment string
	// SampleRatio 根 span 采样比例, 不在 (0, 1] 内时全部采样
	SampleRatio float64
}

// InitTracing 初始化 OpenTelemetry 追踪, span 通过 Jaeger collector 上报
func InitTracing(opts TracingOptions) error {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)))
	if err != nil {
		return err
	}

	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(ServiceName)}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(opts.Environment))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return err
	}

	sampler := tracesdk.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = tracesdk.TraceIDRatioBased(opts.SampleRatio)
	}

	tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

// untracedPaths 探活和指标抓取不产生 span
var untracedPaths = map[string]bool{"/health": true, "/metrics": true}

// TracingMiddleware 追踪中间件
func TracingMiddleware() gin.HandlerFunc {
	return otelgin.Middleware(ServiceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !untracedPaths[r.URL.Path]
	}))
}

// SpanAttributesMiddleware 在 span 上标记请求 ID, 处理结束后补充认证得到的当前用户
// 需要放在 TracingMiddleware 和 RequestIDMiddleware 之后
func SpanAttributesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		span.SetAttributes(attribute.String("request.id", c.GetString(ContextRequestID)))
		c.Next()
		if actor, ok := auth.ActorFrom(c); ok {
			span.SetAttributes(
				attribute.String("enduser.id", actor.ID),
				attribute.String("enduser.role", actor.Role),
			)
		}
	}
}

// ShutdownTracing 关闭追踪, 刷新未发送的 span
func ShutdownTracing(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}
