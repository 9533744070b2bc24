package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

// Config configures the OTLP meter provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the OTLP renewal and treasury instruments. A nil *Metrics records nothing.
type Metrics struct {
	opened    metric.Int64Counter
	committed metric.Int64Counter
	refused   metric.Int64Counter
	cancelled metric.Int64Counter
	entries   metric.Int64Counter
	collected metric.Float64Counter
}

// NewProvider installs the global meter provider. With OTLP disabled it is a noop.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := exporterFor(cfg)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
	}
	if log != nil {
		log.Info("otlp metrics enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

func exporterFor(cfg Config) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	endpoint := strings.TrimSpace(cfg.ExporterEndpoint)

	switch protocol := strings.ToLower(strings.TrimSpace(cfg.ExporterProtocol)); protocol {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// New registers the renewal and treasury instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tenantdesk"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.opened, "tenantdesk_renewals_opened_total", "Renewal sessions opened."},
		{&m.committed, "tenantdesk_renewals_committed_total", "Renewals committed to the tenant record."},
		{&m.refused, "tenantdesk_renewal_commits_refused_total", "Commit attempts refused."},
		{&m.cancelled, "tenantdesk_renewals_cancelled_total", "Renewal sessions cancelled."},
		{&m.entries, "tenantdesk_treasury_entries_total", "Treasury entries recorded."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	collected, err := meter.Float64Counter("tenantdesk_treasury_collected_amount",
		metric.WithDescription("Money collected into treasury accounts, in the catalog currency."))
	if err != nil {
		return nil, fmt.Errorf("register tenantdesk_treasury_collected_amount: %w", err)
	}
	m.collected = collected
	return m, nil
}

func (m *Metrics) RecordRenewalOpened(ctx context.Context, tier string) {
	if m == nil {
		return
	}
	m.opened.Add(ctx, 1, labels(attribute.String("tier", tier)))
}

func (m *Metrics) RecordRenewalCommitted(ctx context.Context, changeKind, tier string) {
	if m == nil {
		return
	}
	m.committed.Add(ctx, 1, labels(
		attribute.String("change_kind", changeKind),
		attribute.String("tier", tier),
	))
}

func (m *Metrics) RecordRenewalRefused(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.refused.Add(ctx, 1, labels(attribute.String("reason", reason)))
}

func (m *Metrics) RecordRenewalCancelled(ctx context.Context) {
	if m == nil {
		return
	}
	m.cancelled.Add(ctx, 1)
}

// RecordTreasuryEntry counts one entry and adds its amount to the collected total for method.
func (m *Metrics) RecordTreasuryEntry(ctx context.Context, method string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	opt := labels(attribute.String("method", method))
	m.entries.Add(ctx, 1, opt)
	m.collected.Add(ctx, amount.InexactFloat64(), opt)
}

func labels(attrs ...attribute.KeyValue) metric.MeasurementOption {
	for i, attr := range attrs {
		if attr.Value.Type() == attribute.STRING {
			attrs[i] = attribute.String(string(attr.Key), strings.TrimSpace(attr.Value.AsString()))
		}
	}
	return metric.WithAttributes(FilterAttributes(attrs...)...)
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"tier":        {},
	"change_kind": {},
	"method":      {},
	"reason":      {},
	"route":       {},
	"status_code": {},
}

// FilterAttributes keeps only low-cardinality labels. Tenant and renewal ids never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
