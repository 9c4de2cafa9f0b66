package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	lokiFlushInterval = 2 * time.Second
	lokiBatchLimit    = 256
	lokiBufferLimit   = 4096
)

// lokiWriter ships log lines to a Loki push endpoint in the background.
// Lines are batched; when the buffer is full new lines are dropped so logging
// never blocks event processing.
type lokiWriter struct {
	url    string
	labels map[string]string
	client *http.Client

	mu     sync.Mutex
	buf    []lokiEntry
	closed bool
}

type lokiEntry struct {
	ts   time.Time
	line string
}

func newLokiWriter(url string, labels map[string]string) *lokiWriter {
	if labels == nil {
		labels = map[string]string{"service": "agentflow"}
	}
	w := &lokiWriter{
		url:    url,
		labels: labels,
		client: &http.Client{Timeout: 5 * time.Second},
	}
	go w.loop()
	return w
}

func (w *lokiWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	if len(w.buf) < lokiBufferLimit {
		w.buf = append(w.buf, lokiEntry{ts: time.Now(), line: string(bytes.TrimRight(p, "\n"))})
	}
	w.mu.Unlock()
	return len(p), nil
}

func (w *lokiWriter) loop() {
	ticker := time.NewTicker(lokiFlushInterval)
	defer ticker.Stop()
	for range ticker.C {
		w.flush()
	}
}

func (w *lokiWriter) flush() {
	w.mu.Lock()
	if len(w.buf) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.buf
	if len(batch) > lokiBatchLimit {
		batch = batch[:lokiBatchLimit]
		w.buf = w.buf[lokiBatchLimit:]
	} else {
		w.buf = nil
	}
	w.mu.Unlock()

	values := make([][2]string, len(batch))
	for i, e := range batch {
		values[i] = [2]string{strconv.FormatInt(e.ts.UnixNano(), 10), e.line}
	}

	payload := map[string]any{
		"streams": []map[string]any{
			{"stream": w.labels, "values": values},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	resp, err := w.client.Post(fmt.Sprintf("%s/loki/api/v1/push", w.url), "application/json", bytes.NewReader(body))
	if err != nil {
		return
	}
	resp.Body.Close()
}
