// Package zmux implements a multiplexed connection over a single
// byte stream: many concurrent callers can each send a request and
// wait for its matching response, or receive unsolicited messages,
// while exactly one goroutine ever reads the stream.
//
// The type this package multiplexes is generic (T, keyed by K) so it
// carries no dependency on the wire message format; package message's
// Message satisfies Keyed[uint64] and is the concrete T used
// throughout the rest of this module. This mirrors the generic
// Requestable trait of the original implementation, translated from
// Rust async futures/wakers into goroutines, channels, and mutexes:
// rather than opportunistically spawning a reader task only when one
// isn't already in flight, New starts a single persistent reader
// goroutine for the lifetime of the connection, the way this module's
// peer-to-peer teacher runs one decode loop per mesh link (see
// DESIGN.md).
package zmux

import (
	"errors"
	"io"
	"sync"
)

// ErrConnectionClosed is returned by every in-flight and subsequent
// operation once the connection has terminated, whether because the
// peer closed the stream, a read failed, or Close was called.
var ErrConnectionClosed = errors.New("zmux: connection closed")

// ErrMissingReqID is returned by Request when given a message that
// cannot supply a request id (ReqIDKey returns ok=false).
var ErrMissingReqID = errors.New("zmux: message has no request id")

// Keyed lets Connection demultiplex responses onto the request they
// answer without needing to know the wire message format. A request
// message reports its own id via ReqIDKey; a response message reports
// the id it answers via ToKey. Exactly one of the two holds for any
// well-formed message.
type Keyed[K comparable] interface {
	ReqIDKey() (K, bool)
	ToKey() (K, bool)
}

// Codec encodes and decodes values of type T on a single underlying
// stream. A Codec is not safe for concurrent use by multiple writers
// or multiple readers; Connection serializes writes itself and
// confines reads to its own reader goroutine.
type Codec[T any] interface {
	Encode(v T) error
	Decode() (T, error)
}

type result[T any] struct {
	msg T
	err error
}

// Connection is a multiplexed connection over a Codec[T]. The zero
// value is not usable; construct one with New.
type Connection[K comparable, T Keyed[K]] struct {
	codec  Codec[T]
	closer io.Closer

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[K]chan result[T]
	inbox    []result[T]
	waiters  []chan struct{}
	closed   bool
	closeErr error
}

// New starts a Connection over codec. closer is invoked by Close and
// should unblock any in-flight Decode call (e.g. a net.Conn's Close,
// or one end of an io.Pipe); it may be nil if the underlying stream
// has no separate close operation (tests that drive closure by simply
// returning an error from a fake Codec, for instance).
func New[K comparable, T Keyed[K]](codec Codec[T], closer io.Closer) *Connection[K, T] {
	c := &Connection[K, T]{
		codec:   codec,
		closer:  closer,
		pending: make(map[K]chan result[T]),
	}
	go c.readLoop()
	return c
}

func (c *Connection[K, T]) readLoop() {
	for {
		msg, err := c.codec.Decode()
		if err != nil {
			c.terminate(err)
			return
		}
		c.dispatch(msg)
	}
}

// dispatch implements the demultiplexing algorithm: a message whose
// To matches a pending request is routed directly to that request's
// waiting goroutine; everything else — including responses with no
// matching pending id, and every request — is appended to the inbox
// in wire order and the oldest blocked Receive, if any, is woken to
// go claim it.
func (c *Connection[K, T]) dispatch(msg T) {
	c.mu.Lock()

	if to, ok := msg.ToKey(); ok {
		if ch, ok := c.pending[to]; ok {
			delete(c.pending, to)
			c.mu.Unlock()
			ch <- result[T]{msg: msg}
			return
		}
	}

	c.inbox = append(c.inbox, result[T]{msg: msg})
	c.wakeOneLocked()
	c.mu.Unlock()
}

// wakeOneLocked wakes the single oldest waiter, if any. Caller holds mu.
func (c *Connection[K, T]) wakeOneLocked() {
	if len(c.waiters) == 0 {
		return
	}
	w := c.waiters[0]
	c.waiters = c.waiters[1:]
	close(w)
}

// terminate marks the connection closed, fails every pending request
// with ErrConnectionClosed, and wakes every blocked receiver with the
// same error queued onto the inbox ahead of them. It is idempotent.
func (c *Connection[K, T]) terminate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err

	for k, ch := range c.pending {
		delete(c.pending, k)
		ch <- result[T]{err: ErrConnectionClosed}
	}

	for _, w := range c.waiters {
		c.inbox = append(c.inbox, result[T]{err: ErrConnectionClosed})
		close(w)
	}
	c.waiters = nil
}

// Closed reports whether the connection has terminated.
func (c *Connection[K, T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close terminates the connection: every pending request and blocked
// Receive resolves with ErrConnectionClosed before Close returns, and
// every operation issued afterward fails the same way. If a closer
// was supplied to New, it is also closed, to unblock the reader
// goroutine's in-flight Decode call (terminate is idempotent, so the
// reader noticing the closure afterward is a no-op).
func (c *Connection[K, T]) Close() error {
	c.terminate(ErrConnectionClosed)
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Send writes msg to the stream. Concurrent Send/Request calls are
// serialized against each other but not against Receive.
func (c *Connection[K, T]) Send(msg T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.codec.Encode(msg)
}

// Receive returns the next unsolicited message: the oldest entry of
// the inbox not already claimed by a pending Request. Concurrent
// Receive calls each get a disjoint subset of the stream, in order.
func (c *Connection[K, T]) Receive() (T, error) {
	for {
		c.mu.Lock()
		if len(c.inbox) > 0 {
			r := c.inbox[0]
			c.inbox = c.inbox[1:]
			c.mu.Unlock()
			return r.msg, r.err
		}
		if c.closed {
			c.mu.Unlock()
			var zero T
			return zero, ErrConnectionClosed
		}

		ch := make(chan struct{})
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		<-ch
	}
}

// Request sends msg and blocks until the response whose To matches
// msg's own id arrives, or the connection closes. msg must report a
// request id via ReqIDKey.
func (c *Connection[K, T]) Request(msg T) (T, error) {
	var zero T

	key, ok := msg.ReqIDKey()
	if !ok {
		return zero, ErrMissingReqID
	}

	ch := make(chan result[T], 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrConnectionClosed
	}
	c.pending[key] = ch
	c.mu.Unlock()

	if err := c.Send(msg); err != nil {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
		return zero, err
	}

	r := <-ch
	return r.msg, r.err
}
