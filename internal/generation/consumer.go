// Package generation drives one streaming generation call: it submits the
// prompt, consumes the NDJSON fragment stream, reports progress per fragment
// and resolves to Completed, Failed or Cancelled.
package generation

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"sparserag/internal/domain"
)

// maxEventSize bounds a single NDJSON line. Longer lines are skipped.
const maxEventSize = 1 << 20

// State is the lifecycle of one generation call.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Backend opens a generation stream. The returned body yields one JSON
// event per line.
type Backend interface {
	Open(ctx context.Context, req domain.GenerateRequest) (io.ReadCloser, error)
}

// Result is the outcome of a completed call.
type Result struct {
	Text     string
	Tokens   int
	Elapsed  time.Duration
	Dropped  int
	Finished bool // the backend sent done=true rather than just closing
}

// Consumer runs generation calls against a Backend. It holds no per-call
// state and is safe for concurrent use.
type Consumer struct {
	backend Backend
	now     func() time.Time
	logger  *slog.Logger
}

// NewConsumer returns a Consumer reading from backend.
func NewConsumer(backend Backend) *Consumer {
	return &Consumer{
		backend: backend,
		now:     time.Now,
		logger:  slog.Default().With("component", "generation"),
	}
}

// Generate submits req and consumes the stream until completion. onProgress,
// if non-nil, is called once per fragment-bearing event, in arrival order,
// on the caller's goroutine. On cancellation the partial text is discarded
// and the error matches domain.ErrCancelled.
func (c *Consumer) Generate(ctx context.Context, req domain.GenerateRequest, onProgress domain.ProgressFunc) (Result, error) {
	call := &call{
		consumer:   c,
		req:        req,
		onProgress: onProgress,
		start:      c.now(),
		state:      StateIdle,
	}
	res, err := call.run(ctx)
	c.logger.Debug("generation finished",
		"state", call.state,
		"tokens", call.tokens,
		"dropped_events", call.dropped,
		"elapsed", c.now().Sub(call.start),
	)
	return res, err
}

// line is one NDJSON line, or the length of a line that was skipped for
// exceeding maxEventSize, or a read error.
type line struct {
	data      []byte
	oversized int
	err       error
}

type call struct {
	consumer   *Consumer
	req        domain.GenerateRequest
	onProgress domain.ProgressFunc
	start      time.Time

	state   State
	text    strings.Builder
	tokens  int
	dropped int
}

func (c *call) run(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		c.state = StateCancelled
		return Result{}, domain.Cancelled(err)
	}
	body, err := c.consumer.backend.Open(ctx, c.req)
	if err != nil {
		if ctx.Err() != nil {
			c.state = StateCancelled
			return Result{}, domain.Cancelled(ctx.Err())
		}
		c.state = StateFailed
		return Result{}, err
	}
	c.state = StateStreaming
	defer body.Close()

	stop := make(chan struct{})
	defer close(stop)
	lines := make(chan line)
	go readLines(body, lines, stop)

	for {
		if err := ctx.Err(); err != nil {
			return c.cancel(body, err)
		}
		select {
		case <-ctx.Done():
			return c.cancel(body, ctx.Err())
		case ln, ok := <-lines:
			if !ok {
				return c.complete(false), nil
			}
			if ln.err != nil {
				if ctx.Err() != nil {
					return c.cancel(body, ctx.Err())
				}
				c.state = StateFailed
				return Result{}, fmt.Errorf("%w: reading stream: %v", domain.ErrBackend, ln.err)
			}
			if ln.oversized > 0 {
				c.dropped++
				c.consumer.logger.Warn("dropping oversized stream event", "bytes", ln.oversized, "limit", maxEventSize)
				continue
			}
			done, err := c.handle(ln.data)
			if err != nil {
				c.state = StateFailed
				return Result{}, err
			}
			if done {
				return c.complete(true), nil
			}
		}
	}
}

// handle applies one event and reports whether the stream is finished.
func (c *call) handle(data []byte) (bool, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	ev, err := parseEvent(data)
	if err != nil {
		c.dropped++
		c.consumer.logger.Warn("dropping stream event", "error", err, "line", snippet(data))
		return false, nil
	}
	if ev.Error != "" {
		return false, fmt.Errorf("%w: %s", domain.ErrBackend, ev.Error)
	}
	if ev.Response != "" {
		c.text.WriteString(ev.Response)
		c.tokens += countTokens(ev.Response)
		if c.onProgress != nil {
			c.onProgress(domain.GenerationProgress{
				TokensSoFar: c.tokens,
				Elapsed:     c.consumer.now().Sub(c.start),
				Target:      c.req.TargetTokens,
			})
		}
	}
	return ev.Done, nil
}

func (c *call) complete(finished bool) Result {
	c.state = StateCompleted
	return Result{
		Text:     strings.TrimSpace(c.text.String()),
		Tokens:   c.tokens,
		Elapsed:  c.consumer.now().Sub(c.start),
		Dropped:  c.dropped,
		Finished: finished,
	}
}

// cancel closes the body so the reader goroutine unblocks, and drops the
// partial text.
func (c *call) cancel(body io.Closer, cause error) (Result, error) {
	c.state = StateCancelled
	_ = body.Close()
	c.text.Reset()
	return Result{}, domain.Cancelled(cause)
}

// readLines splits r into lines. A line longer than maxEventSize is
// discarded as it is read and reported by length only, so the lines after it
// still arrive.
func readLines(r io.Reader, out chan<- line, stop <-chan struct{}) {
	defer close(out)
	send := func(ln line) bool {
		select {
		case out <- ln:
			return true
		case <-stop:
			return false
		}
	}

	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte
	skipped := 0
	for {
		frag, err := br.ReadSlice('\n')
		switch {
		case skipped > 0:
			skipped += len(frag)
		case len(buf)+len(bytes.TrimRight(frag, "\r\n")) > maxEventSize:
			skipped = len(buf) + len(frag)
			buf = buf[:0]
		default:
			buf = append(buf, frag...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}

		if skipped > 0 {
			if !send(line{oversized: skipped}) {
				return
			}
			skipped = 0
		} else if len(buf) > 0 {
			if !send(line{data: bytes.Clone(bytes.TrimRight(buf, "\r\n"))}) {
				return
			}
			buf = buf[:0]
		}
		if err != nil {
			if err != io.EOF {
				send(line{err: err})
			}
			return
		}
	}
}
