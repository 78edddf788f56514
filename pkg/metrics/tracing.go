package metrics

import (
	"context"
	"errors"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer is a New Relic segment around one method call. A nil tracer is
// valid and does nothing, which is what TraceMethodCall returns outside a
// transaction.
type MethodTracer struct {
	txn      *newrelic.Transaction
	seg      *newrelic.Segment
	expected []error
}

// TraceMethodCall starts a "<component> <method>" segment on the transaction
// in ctx. Errors matching expected are part of the method's contract: they are
// recorded on the segment instead of being noticed on the transaction.
func TraceMethodCall(ctx context.Context, component, method string, expected ...error) *MethodTracer {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}

	return &MethodTracer{
		txn:      txn,
		seg:      txn.StartSegment(component + " " + method),
		expected: expected,
	}
}

func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t != nil {
		t.seg.AddAttribute(key, value)
	}
}

func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}

	for _, target := range t.expected {
		if errors.Is(err, target) {
			t.seg.AddAttribute("expected_error", err.Error())
			return
		}
	}
	t.txn.NoticeError(err)
}

func (t *MethodTracer) End() {
	if t != nil {
		t.seg.End()
	}
}

// Finish observes *errp and ends the segment. Defer it from a method with a
// named error result.
func (t *MethodTracer) Finish(errp *error) {
	if errp != nil {
		t.OnError(*errp)
	}
	t.End()
}
