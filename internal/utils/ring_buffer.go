package utils

import "sync"

// RingBuffer is a fixed-capacity, thread-safe FIFO that overwrites its oldest
// element once full. Elements are read back oldest first.
//
//	rb := NewRingBuffer[int](3)
//	rb.Push(1)
//	rb.Push(2)
//	rb.Push(3)
//	rb.Push(4)               // 1 is evicted
//	fmt.Println(rb.ToSlice()) // [2 3 4]
type RingBuffer[T any] struct {
	data  []T // backing storage
	count int // number of stored elements
	head  int // index of the oldest element
	mu    sync.RWMutex
}

// NewRingBuffer creates a buffer holding at most size elements.
// A non-positive size panics.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer[T]{data: make([]T, size)}
}

// Push appends item, evicting the oldest element when the buffer is full.
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.data)
	rb.data[(rb.head+rb.count)%size] = item
	if rb.count < size {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % size
	}
}

// ToSlice copies the elements oldest first. An empty buffer yields an empty slice.
func (rb *RingBuffer[T]) ToSlice() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	result := make([]T, rb.count)
	for i := range result {
		result[i] = rb.data[(rb.head+i)%len(rb.data)]
	}
	return result
}

// Clear drops every element while keeping the capacity.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	clear(rb.data)
	rb.count = 0
	rb.head = 0
}
