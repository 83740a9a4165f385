package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"civicdesk/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials/insecure"
)

// Telemetry is the observability surface of the service: domain counters,
// the request logger and a graceful shutdown hook.
type Telemetry interface {
	RecordUserRegistration(ctx context.Context, role string, success bool)
	RecordInviteRedemption(ctx context.Context, success bool)
	RecordComplaintSubmission(ctx context.Context, severity string)
	Logger() *slog.Logger
	Shutdown(ctx context.Context) error
}

type OpenTelemetry struct {
	tracerProvider *trace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
	meterProvider  *sdkmetric.MeterProvider
	config         config.TelemetryConfig

	userRegistrations    metric.Int64Counter
	inviteRedemptions    metric.Int64Counter
	complaintSubmissions metric.Int64Counter
}

// NewOpenTelemetry wires OTLP gRPC exporters for traces, logs and metrics.
// When telemetry is disabled everything degrades to no-ops and a stderr
// text logger.
func NewOpenTelemetry(cfg config.TelemetryConfig) (Telemetry, error) {
	if !cfg.Enabled || cfg.ExporterURL == "" {
		slog.Info("Telemetry disabled or no exporter URL provided")
		return &OpenTelemetry{config: cfg}, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	traceExporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(cfg.ExporterURL),
		otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	logExporter, err := otlploggrpc.New(context.Background(),
		otlploggrpc.WithEndpoint(cfg.ExporterURL),
		otlploggrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(context.Background(),
		otlpmetricgrpc.WithEndpoint(cfg.ExporterURL),
		otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(cfg.SamplingRatio)),
	)

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(10*time.Second))),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	global.SetLoggerProvider(lp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tel := &OpenTelemetry{
		tracerProvider: tp,
		loggerProvider: lp,
		meterProvider:  mp,
		config:         cfg,
	}

	if err := tel.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	slog.Info("Telemetry initialized",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"environment", cfg.Environment,
		"endpoint", cfg.ExporterURL,
		"sampling_ratio", cfg.SamplingRatio,
	)

	return tel, nil
}

func (t *OpenTelemetry) initMetrics() error {
	meter := otel.Meter(t.config.ServiceName)

	var err error

	t.userRegistrations, err = meter.Int64Counter(
		"civicdesk_user_registrations_total",
		metric.WithDescription("Total number of user registrations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create user registrations counter: %w", err)
	}

	t.inviteRedemptions, err = meter.Int64Counter(
		"civicdesk_invite_redemptions_total",
		metric.WithDescription("Total number of invite redemption attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create invite redemptions counter: %w", err)
	}

	t.complaintSubmissions, err = meter.Int64Counter(
		"civicdesk_complaint_submissions_total",
		metric.WithDescription("Total number of complaint submissions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create complaint submissions counter: %w", err)
	}

	return nil
}

func (t *OpenTelemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider shutdown: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown errors: %v", errs)
	}

	return nil
}

// Logger returns a slog.Logger that ships records over OTLP when telemetry
// is enabled, otherwise a stderr text logger.
func (t *OpenTelemetry) Logger() *slog.Logger {
	if t.IsEnabled() {
		return slog.New(NewOTelHandler(&slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (t *OpenTelemetry) IsEnabled() bool {
	return t.config.Enabled && t.tracerProvider != nil
}

func (t *OpenTelemetry) RecordUserRegistration(ctx context.Context, role string, success bool) {
	if !t.IsEnabled() || t.userRegistrations == nil {
		return
	}

	t.userRegistrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.Bool("success", success),
	))
}

func (t *OpenTelemetry) RecordInviteRedemption(ctx context.Context, success bool) {
	if !t.IsEnabled() || t.inviteRedemptions == nil {
		return
	}

	t.inviteRedemptions.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

func (t *OpenTelemetry) RecordComplaintSubmission(ctx context.Context, severity string) {
	if !t.IsEnabled() || t.complaintSubmissions == nil {
		return
	}

	t.complaintSubmissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", severity),
	))
}

// OTelHandler is a slog.Handler that forwards records to the global
// OpenTelemetry logger provider.
type OTelHandler struct {
	logger log.Logger
	opts   *slog.HandlerOptions
}

func NewOTelHandler(opts *slog.HandlerOptions) *OTelHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &OTelHandler{
		logger: global.GetLoggerProvider().Logger("civicdesk.slog"),
		opts:   opts,
	}
}

func (h *OTelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Level != nil {
		return level >= h.opts.Level.Level()
	}
	return level >= slog.LevelInfo
}

func (h *OTelHandler) Handle(ctx context.Context, record slog.Record) error {
	logRecord := log.Record{}
	logRecord.SetTimestamp(record.Time)
	logRecord.SetBody(log.StringValue(record.Message))
	logRecord.SetSeverity(convertSlogLevel(record.Level))
	logRecord.SetSeverityText(record.Level.String())

	if h.opts.AddSource {
		fs := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := fs.Next()
		if f.File != "" {
			logRecord.AddAttributes(
				log.String("code.filepath", f.File),
				log.String("code.function", f.Function),
				log.Int("code.lineno", f.Line),
			)
		}
	}

	record.Attrs(func(attr slog.Attr) bool {
		logRecord.AddAttributes(convertSlogAttr(attr))
		return true
	})

	h.logger.Emit(ctx, logRecord)

	return nil
}

func (h *OTelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &OTelHandler{logger: h.logger, opts: h.opts}
}

func (h *OTelHandler) WithGroup(name string) slog.Handler {
	return &OTelHandler{logger: h.logger, opts: h.opts}
}

func convertSlogLevel(level slog.Level) log.Severity {
	switch {
	case level >= slog.LevelError:
		return log.SeverityError
	case level >= slog.LevelWarn:
		return log.SeverityWarn
	case level >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}

func convertSlogAttr(attr slog.Attr) log.KeyValue {
	switch attr.Value.Kind() {
	case slog.KindString:
		return log.String(attr.Key, attr.Value.String())
	case slog.KindInt64:
		return log.Int64(attr.Key, attr.Value.Int64())
	case slog.KindFloat64:
		return log.Float64(attr.Key, attr.Value.Float64())
	case slog.KindBool:
		return log.Bool(attr.Key, attr.Value.Bool())
	case slog.KindDuration:
		return log.Int64(attr.Key, attr.Value.Duration().Nanoseconds())
	case slog.KindTime:
		return log.String(attr.Key, attr.Value.Time().Format(time.RFC3339))
	default:
		return log.String(attr.Key, attr.Value.String())
	}
}
