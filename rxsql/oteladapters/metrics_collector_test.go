package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/streamtx/rx-sql-go/rxsql"
	"github.com/streamtx/rx-sql-go/rxsql/oteladapters"
)

func Test_NewMetricsCollector_Construction(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	collector := oteladapters.NewMetricsCollector(meter)
	assert.NotNil(t, collector, "NewMetricsCollector should return non-nil collector")
}

func Test_MetricsCollector_ImplementsBothInterfaces(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	collector := oteladapters.NewMetricsCollector(meter)

	var base rxsql.MetricsCollector = collector
	var contextual rxsql.ContextualMetricsCollector = collector

	assert.NotNil(t, base)
	assert.NotNil(t, contextual)
}

func Test_MetricsCollector_RecordsWithoutError(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	collector := oteladapters.NewMetricsCollector(meter)

	labels := map[string]string{"statement_kind": "update"}

	assert.NotPanics(t, func() {
		collector.RecordDuration("rxsql_statement_duration_seconds", 5*time.Millisecond, labels)
		collector.IncrementCounter("rxsql_statement_errors_total", labels)
		collector.RecordValue("rxsql_open_transactions", 1, nil)
	})
}

func Test_MetricsCollector_ContextVariantsRecordWithoutError(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	collector := oteladapters.NewMetricsCollector(meter)
	ctx := context.Background()

	labels := map[string]string{"outcome": "commit"}

	assert.NotPanics(t, func() {
		collector.RecordDurationContext(ctx, "rxsql_statement_duration_seconds", 5*time.Millisecond, labels)
		collector.IncrementCounterContext(ctx, "rxsql_transactions_finished_total", labels)
		collector.RecordValueContext(ctx, "rxsql_open_transactions", 0, nil)
	})
}

func Test_MetricsCollector_ReusesInstruments(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	collector := oteladapters.NewMetricsCollector(meter)

	// same metric name twice exercises the instrument cache path
	collector.IncrementCounter("rxsql_statement_errors_total", nil)
	collector.IncrementCounter("rxsql_statement_errors_total", nil)
}
