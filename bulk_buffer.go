// Copyright The JmxTrans Authors
// SPDX-License-Identifier: MIT

package elasticwriter // import "github.com/yxydde/jmxtrans"

import (
	"bytes"
	"sync"
)

// bulkBuffer accumulates ndjson action/document line pairs for one bulk
// request. It is the only state shared between producer goroutines and the
// transmitting goroutine; all access goes through a single mutex, which is
// held only for the duration of the concatenation or the swap, never across
// a network call.
type bulkBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// append adds one action/document pair to the payload, each line terminated
// by '\n'. The pair is appended atomically with respect to other appends and
// to drainAndReset.
func (b *bulkBuffer) append(action, document []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(action)
	b.buf.WriteByte('\n')
	b.buf.Write(document)
	b.buf.WriteByte('\n')
}

// drainAndReset returns the full accumulated payload and leaves the buffer
// empty. Every append that completed before the call is included in the
// result; appends that start after it land in the next cycle's payload. An
// empty buffer drains to the empty string.
func (b *bulkBuffer) drainAndReset() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	payload := b.buf.String()
	b.buf.Reset()
	return payload
}
