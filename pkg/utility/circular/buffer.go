package circular

// Buffer is a fixed-capacity ring. Once full, a push overwrites the oldest
// element. Not safe for concurrent use.
type Buffer[T any] struct {
	capacity uint

	head uint
	size uint
	data []T
}

func NewBuffer[T any](capacity uint) *Buffer[T] {
	if capacity == 0 {
		panic("capacity must > 0")
	}
	return &Buffer[T]{
		capacity: capacity,
		data:     make([]T, capacity),
	}
}

func (b *Buffer[T]) Capacity() uint {
	return b.capacity
}

func (b *Buffer[T]) Size() uint {
	return b.size
}

func (b *Buffer[T]) Push(value T) {
	b.data[b.head] = value
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Get returns the idx-th most recent element, idx 0 being the newest.
func (b *Buffer[T]) Get(idx uint) T {
	if idx >= b.size {
		panic("index out of range")
	}
	return b.data[(b.head-1-idx+b.capacity)%b.capacity]
}

// Tail returns up to limit elements, oldest first.
func (b *Buffer[T]) Tail(limit uint) []T {
	n := b.size
	if limit < n {
		n = limit
	}
	out := make([]T, n)
	for i := uint(0); i < n; i++ {
		out[n-1-i] = b.Get(i)
	}
	return out
}

func (b *Buffer[T]) IsFull() bool {
	return b.size == b.capacity
}
