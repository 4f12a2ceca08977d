// Package tracer sets up the process wide opentracing tracer
// Package tracer 初始化全局 opentracing 追踪器
package tracer

import (
	"io"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// Config 追踪配置
type Config struct {
	ServiceName string
	// AgentHostPort jaeger agent 地址，为空时使用 noop tracer
	AgentHostPort string
	// SampleRate 采样率 0..1
	SampleRate float64
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewJaegerTracer builds a jaeger tracer reporting to the agent and installs it globally.
// Without an agent the global noop tracer is kept.
func NewJaegerTracer(c Config) (opentracing.Tracer, io.Closer, error) {
	if c.AgentHostPort == "" {
		return opentracing.GlobalTracer(), nopCloser{}, nil
	}

	samplerType, param := jaeger.SamplerTypeConst, 1.0
	if c.SampleRate > 0 && c.SampleRate < 1 {
		samplerType, param = jaeger.SamplerTypeProbabilistic, c.SampleRate
	}

	cfg := &jaegercfg.Configuration{
		ServiceName: c.ServiceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  samplerType,
			Param: param,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:            false,
			BufferFlushInterval: time.Second,
			LocalAgentHostPort:  c.AgentHostPort,
		},
	}
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, nil, errors.Wrap(err, "jaeger tracer")
	}
	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}
