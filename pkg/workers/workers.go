// Package workers provides ready-made api.Worker adapters over common
// asynchronous primitives: functions, channels, tickers, and one-shot
// delays. Each adapter defines the equivalence relation the side-effect
// registry uses to decide whether a running instance survives a render
// pass, so logically-identical work declared on consecutive passes is
// started exactly once.
//
// Adapters deliberately cover only standard-library primitives; bindings to
// specific reactive-stream libraries belong in their own modules, built on
// the same api.Worker contract.
package workers

import (
	"context"
	"reflect"
	"time"

	"github.com/petrijr/arbor/pkg/api"
)

// FuncWorker runs an arbitrary function, identified by a caller-chosen
// token. Two FuncWorkers are equivalent when their tokens compare equal, so
// the token should capture every parameter that distinguishes one logical
// unit of work from another (a URL, a query, an ID). Comparison uses
// reflect.DeepEqual, so any comparable or deep-comparable token works.
type FuncWorker struct {
	Token any
	Fn    func(ctx context.Context, emit func(output any))
}

var _ api.Worker = FuncWorker{}

func (w FuncWorker) Run(ctx context.Context, emit func(output any)) {
	w.Fn(ctx, emit)
}

func (w FuncWorker) Equivalent(other api.Worker) bool {
	o, ok := other.(FuncWorker)
	return ok && reflect.DeepEqual(w.Token, o.Token)
}

// TickerWorker emits the tick time at a fixed interval until cancelled.
// Two TickerWorkers are equivalent when their intervals match: re-rendering
// with the same interval keeps the running ticker (and its phase), while
// changing the interval restarts it.
type TickerWorker struct {
	Interval time.Duration
}

var _ api.Worker = TickerWorker{}

func (w TickerWorker) Run(ctx context.Context, emit func(output any)) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			emit(t)
		}
	}
}

func (w TickerWorker) Equivalent(other api.Worker) bool {
	o, ok := other.(TickerWorker)
	return ok && w.Interval == o.Interval
}

// DelayWorker emits a single value after a fixed delay, then finishes.
// Equivalence is by (Delay, Value), so an unchanged delay declared across
// passes fires exactly once rather than being restarted per pass.
type DelayWorker struct {
	Delay time.Duration
	Value any
}

var _ api.Worker = DelayWorker{}

func (w DelayWorker) Run(ctx context.Context, emit func(output any)) {
	select {
	case <-ctx.Done():
	case <-time.After(w.Delay):
		emit(w.Value)
	}
}

func (w DelayWorker) Equivalent(other api.Worker) bool {
	o, ok := other.(DelayWorker)
	return ok && w.Delay == o.Delay && reflect.DeepEqual(w.Value, o.Value)
}

// ChannelWorker forwards values received from a channel until the channel
// closes or the worker is cancelled. Two ChannelWorkers are equivalent when
// they wrap the same channel.
type ChannelWorker[T any] struct {
	Ch <-chan T
}

func (w ChannelWorker[T]) Run(ctx context.Context, emit func(output any)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-w.Ch:
			if !ok {
				return
			}
			emit(v)
		}
	}
}

func (w ChannelWorker[T]) Equivalent(other api.Worker) bool {
	o, ok := other.(ChannelWorker[T])
	return ok && w.Ch == o.Ch
}
