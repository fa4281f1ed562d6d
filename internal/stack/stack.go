// Package stack provides a persistent LIFO list. Pushing shares the
// receiver as the new stack's tail, so every earlier value remains a valid,
// independent snapshot. The zero value (a nil pointer) is the empty stack
// and every method is safe to call on it.
package stack

// Stack is an immutable linked stack.
type Stack[T any] struct {
	head T
	tail *Stack[T]
	size int
}

// Push returns a new stack with v on top.
func (s *Stack[T]) Push(v T) *Stack[T] {
	return &Stack[T]{head: v, tail: s, size: s.Depth() + 1}
}

// Pop returns the stack without its top value. Popping the empty stack
// returns the empty stack.
func (s *Stack[T]) Pop() *Stack[T] {
	if s == nil {
		return nil
	}
	return s.tail
}

// Peek returns the top value; ok is false on the empty stack.
func (s *Stack[T]) Peek() (v T, ok bool) {
	if s == nil {
		return v, false
	}
	return s.head, true
}

// Depth reports how many values the stack holds.
func (s *Stack[T]) Depth() int {
	if s == nil {
		return 0
	}
	return s.size
}

// Newest returns the values newest-first.
func (s *Stack[T]) Newest() []T {
	out := make([]T, 0, s.Depth())
	for n := s; n != nil; n = n.tail {
		out = append(out, n.head)
	}
	return out
}

// Oldest returns the values oldest-first.
func (s *Stack[T]) Oldest() []T {
	out := s.Newest()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
