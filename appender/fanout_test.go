package appender

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iwmforge/ebpfprof/metrics"
)

type fakeAppender struct {
	calls   int
	err     error
	samples []RawSample
}

func (a *fakeAppender) Append(ctx context.Context, labels map[string]string, samples []RawSample) error {
	a.calls++
	a.samples = samples
	return a.err
}

func newTestRegisterer() metrics.Registerer {
	return metrics.NewRegisterer(prometheus.NewRegistry())
}

func TestFanout_AppendsToEveryChild(t *testing.T) {
	a, b := &fakeAppender{}, &fakeAppender{}
	f := NewFanout(log.NewNopLogger(), []Appender{a, b}, "test", newTestRegisterer())

	if err := f.Appender().Append(context.Background(), nil, []RawSample{{Value: 1}}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected both children called once, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestFanout_ForwardsRawProfileBytes(t *testing.T) {
	a := &fakeAppender{}
	f := NewFanout(log.NewNopLogger(), []Appender{a}, "test", newTestRegisterer())

	payload := []byte{0x1f, 0x8b, 0x01, 0x02}
	if err := f.Appender().Append(context.Background(), nil, []RawSample{{ID: "checkout", RawProfile: payload}}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(a.samples) != 1 || string(a.samples[0].RawProfile) != string(payload) {
		t.Fatalf("expected the encoded profile bytes to reach the child, got %v", a.samples)
	}
}

func TestFanout_ContinuesPastFailingChild(t *testing.T) {
	failing := &fakeAppender{err: errors.New("boom")}
	ok := &fakeAppender{}
	f := NewFanout(log.NewNopLogger(), []Appender{failing, ok}, "test", newTestRegisterer())

	if err := f.Appender().Append(context.Background(), nil, nil); err != nil {
		t.Fatalf("Fanout.Append should not propagate a child error, got %v", err)
	}
	if ok.calls != 1 {
		t.Fatal("second child should still have been called despite the first failing")
	}
}
