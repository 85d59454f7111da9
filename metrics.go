package kvs

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

type op uint8

const (
	opHas op = iota
	opGet
	opSet
	opDelete
	opPop
	opKeys
	opValues
	opItems
	opClear
	opSync
	opOptimize
	opClose
	numOps
)

var opNames = [numOps]string{
	"has", "get", "set", "delete", "pop", "keys", "values", "items", "clear", "sync", "optimize", "close",
}

func (o op) String() string { return opNames[o] }

// opMetrics is nil when metrics are disabled; its methods accept a nil receiver.
type opMetrics struct {
	calls       [numOps]*metrics.Counter
	unsupported [numOps]*metrics.Counter
}

func newOpMetrics(set *metrics.Set, store string) *opMetrics {
	if set == nil {
		return nil
	}
	m := &opMetrics{}
	for i := range numOps {
		m.calls[i] = set.GetOrCreateCounter(fmt.Sprintf(`kvs_operations_total{store=%q,op=%q}`, store, opNames[i]))
		m.unsupported[i] = set.GetOrCreateCounter(fmt.Sprintf(`kvs_unsupported_total{store=%q,op=%q}`, store, opNames[i]))
	}
	return m
}

func (m *opMetrics) call(o op) {
	if m != nil {
		m.calls[o].Inc()
	}
}

func (m *opMetrics) refuse(o op) {
	if m != nil {
		m.unsupported[o].Inc()
	}
}
