// Package eventq implements the thread-safe queue that carries events from
// the network goroutine to the application. Every operation holds the lock
// for its whole duration; none block waiting for data, so the consumer polls
// rather than waits. The queue is unbounded: if the consumer never drains it,
// it grows without limit.
package eventq

import "sync"

// Queue is a mutex-guarded double-ended queue. The driver pushes to the back
// and the application pops from the front, but nothing assumes a single
// producer or consumer.
type Queue[T any] struct {
    mu    sync.Mutex
    items []T
}

func New[T any]() *Queue[T] { return &Queue[T]{} }

// PushBack appends an item at the back of the queue.
func (q *Queue[T]) PushBack(item T) {
    q.mu.Lock()
    defer q.mu.Unlock()
    q.items = append(q.items, item)
}

// PushFront inserts an item at the front of the queue.
func (q *Queue[T]) PushFront(item T) {
    q.mu.Lock()
    defer q.mu.Unlock()
    q.items = append(q.items, item)
    copy(q.items[1:], q.items)
    q.items[0] = item
}

// PopFront removes and returns the oldest item. Returns false when empty.
func (q *Queue[T]) PopFront() (T, bool) {
    q.mu.Lock()
    defer q.mu.Unlock()
    var zero T
    if len(q.items) == 0 {
        return zero, false
    }
    item := q.items[0]
    q.items[0] = zero
    q.items = q.items[1:]
    return item, true
}

// PopBack removes and returns the newest item. Returns false when empty.
func (q *Queue[T]) PopBack() (T, bool) {
    q.mu.Lock()
    defer q.mu.Unlock()
    var zero T
    if len(q.items) == 0 {
        return zero, false
    }
    n := len(q.items) - 1
    item := q.items[n]
    q.items[n] = zero
    q.items = q.items[:n]
    return item, true
}

// Front returns the oldest item without removing it.
func (q *Queue[T]) Front() (T, bool) {
    q.mu.Lock()
    defer q.mu.Unlock()
    var zero T
    if len(q.items) == 0 {
        return zero, false
    }
    return q.items[0], true
}

// Back returns the newest item without removing it.
func (q *Queue[T]) Back() (T, bool) {
    q.mu.Lock()
    defer q.mu.Unlock()
    var zero T
    if len(q.items) == 0 {
        return zero, false
    }
    return q.items[len(q.items)-1], true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
    q.mu.Lock()
    defer q.mu.Unlock()
    return len(q.items)
}

// Empty reports whether the queue has no items.
func (q *Queue[T]) Empty() bool { return q.Len() == 0 }

// Clear drops all queued items.
func (q *Queue[T]) Clear() {
    q.mu.Lock()
    defer q.mu.Unlock()
    q.items = nil
}
