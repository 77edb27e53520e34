package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

// Observer feeds transaction lifecycle events into the metrics collectors.
// It implements engine.Observer.
type Observer struct {
	metrics *Metrics

	mu          sync.Mutex
	stageTimers map[string]*Timer
	remotes     map[string]string
}

// NewObserver creates a metrics observer.
func NewObserver(metrics *Metrics) *Observer {
	return &Observer{
		metrics:     metrics,
		stageTimers: make(map[string]*Timer),
		remotes:     make(map[string]string),
	}
}

// TransactionStarted records the start of an update.
func (o *Observer) TransactionStarted(id string, req engine.Request) {
	o.mu.Lock()
	o.remotes[id] = req.Remote.Name
	o.mu.Unlock()
	o.metrics.RecordUpdateStarted(req.OSName)
}

// StageStarted starts the stage timer.
func (o *Observer) StageStarted(id string, stage engine.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stageTimers[id+"/"+string(stage)] = NewTimer()
}

// StageCompleted records the stage outcome and duration.
func (o *Observer) StageCompleted(id string, stage engine.Stage, err error) {
	key := id + "/" + string(stage)

	o.mu.Lock()
	timer, ok := o.stageTimers[key]
	remote := o.remotes[id]
	delete(o.stageTimers, key)
	o.mu.Unlock()

	var duration time.Duration
	if ok {
		duration = timer.Duration()
	}

	status := "succeeded"
	if err != nil {
		status = "failed"
		o.metrics.RecordStageError(string(stage))
	} else if stage == engine.StageResolve {
		o.metrics.RecordRefResolved(remote)
	}
	o.metrics.RecordStage(string(stage), status, duration)
}

// TransactionCompleted records the terminal outcome of an update.
func (o *Observer) TransactionCompleted(id string, res engine.Result) {
	o.mu.Lock()
	delete(o.remotes, id)
	o.mu.Unlock()
	o.metrics.RecordUpdateCompleted(string(res.Status), res.Duration)
}

// TracingObserver opens a child span per stage under the update span carried
// by ctx. It implements engine.Observer.
type TracingObserver struct {
	ctx    context.Context
	tracer *Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewTracingObserver creates a stage-span observer. ctx must carry the
// enclosing update span.
func NewTracingObserver(ctx context.Context, tracer *Tracer) *TracingObserver {
	return &TracingObserver{
		ctx:    ctx,
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

// TransactionStarted is a no-op; the update span is opened by the caller.
func (o *TracingObserver) TransactionStarted(string, engine.Request) {}

// StageStarted opens the stage span.
func (o *TracingObserver) StageStarted(id string, stage engine.Stage) {
	_, span := o.tracer.StartStageSpan(o.ctx, id, string(stage))

	o.mu.Lock()
	o.spans[id+"/"+string(stage)] = span
	o.mu.Unlock()
}

// StageCompleted records the outcome and ends the stage span.
func (o *TracingObserver) StageCompleted(id string, stage engine.Stage, err error) {
	key := id + "/" + string(stage)

	o.mu.Lock()
	span, ok := o.spans[key]
	delete(o.spans, key)
	o.mu.Unlock()

	if !ok {
		return
	}
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}

// TransactionCompleted ends any span left open by an aborted run.
func (o *TracingObserver) TransactionCompleted(string, engine.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, span := range o.spans {
		span.End()
		delete(o.spans, key)
	}
}
