package pollkit

// listNode is a node in a List.
type listNode[T any] struct {
	data T
	next *listNode[T]
}

// List is a singly-linked queue with O(1) append, prepend, and splice.
//
// It backs the task inboxes and the thread-pool queue, where the hot
// operations are "append under lock" and "swap the whole batch out under
// lock, drain outside it". It is not thread-safe; callers synchronize.
//
// The zero value is an empty list, ready for use.
type List[T any] struct {
	front *listNode[T]
	back  *listNode[T]
	size  int
}

// Len returns the number of elements.
func (x *List[T]) Len() int { return x.size }

// Empty reports whether the list has no elements.
func (x *List[T]) Empty() bool { return x.size == 0 }

// PushBack appends v.
func (x *List[T]) PushBack(v T) {
	node := &listNode[T]{data: v}
	if x.back == nil {
		x.front, x.back = node, node
	} else {
		x.back.next = node
		x.back = node
	}
	x.size++
}

// PushFront prepends v.
func (x *List[T]) PushFront(v T) {
	node := &listNode[T]{data: v, next: x.front}
	x.front = node
	if x.back == nil {
		x.back = node
	}
	x.size++
}

// PopFront removes and returns the head.
func (x *List[T]) PopFront() (v T, ok bool) {
	if x.front == nil {
		return
	}
	node := x.front
	x.front = node.next
	if x.front == nil {
		x.back = nil
	}
	x.size--
	node.next = nil
	return node.data, true
}

// Front returns the head without removing it.
func (x *List[T]) Front() (v T, ok bool) {
	if x.front == nil {
		return
	}
	return x.front.data, true
}

// ForEach calls fn for each element, front to back.
func (x *List[T]) ForEach(fn func(v T)) {
	for node := x.front; node != nil; node = node.next {
		fn(node.data)
	}
}

// Clear drops all elements.
func (x *List[T]) Clear() {
	x.front, x.back, x.size = nil, nil, 0
}

// Swap exchanges the contents of the two lists.
func (x *List[T]) Swap(other *List[T]) {
	x.front, other.front = other.front, x.front
	x.back, other.back = other.back, x.back
	x.size, other.size = other.size, x.size
}

// Append splices all of other's elements onto the tail, draining other.
func (x *List[T]) Append(other *List[T]) {
	if other.Empty() {
		return
	}
	if x.back != nil {
		x.back.next = other.front
		x.back = other.back
	} else {
		x.front, x.back = other.front, other.back
	}
	x.size += other.size
	other.front, other.back, other.size = nil, nil, 0
}
