/*
 * Copyright 2024 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ringbuf implements a fixed capacity circular buffer addressed by
// absolute position. Element n lives in slot n % capacity and is readable
// while next-capacity <= n < next.
package ringbuf

import "fmt"

type Ring[T any] struct {
	data []T   // 存储数据的切片
	cap  int64 // 缓冲区容量
	next int64 // 下一个写入位置的绝对序号
}

// New 创建一个指定容量的环形缓冲区
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("ringbuf: invalid capacity %d", capacity))
	}
	return &Ring[T]{
		data: make([]T, capacity),
		cap:  int64(capacity),
	}
}

// Cap returns the number of slots
func (r *Ring[T]) Cap() int {
	return int(r.cap)
}

// Len 返回当前可读取的元素个数
func (r *Ring[T]) Len() int {
	if r.next < r.cap {
		return int(r.next)
	}
	return int(r.cap)
}

// IsEmpty 判断缓冲区是否为空
func (r *Ring[T]) IsEmpty() bool {
	return r.next == 0
}

// Next returns the absolute position the next Push will occupy
func (r *Ring[T]) Next() int64 {
	return r.next
}

// Oldest returns the smallest absolute position still readable
func (r *Ring[T]) Oldest() int64 {
	if r.next < r.cap {
		return 0
	}
	return r.next - r.cap
}

// Push stores x at position Next() and evicts the element that shared its slot.
func (r *Ring[T]) Push(x T) int64 {
	pos := r.next
	r.data[pos%r.cap] = x
	r.next++
	return pos
}

// Get returns the element at absolute position pos if it is still held
func (r *Ring[T]) Get(pos int64) (T, bool) {
	var zero T
	if pos < r.Oldest() || pos >= r.next {
		return zero, false
	}
	return r.data[pos%r.cap], true
}

// Contains reports whether every position in [from, to] is readable
func (r *Ring[T]) Contains(from, to int64) bool {
	if from > to {
		return true
	}
	return from >= r.Oldest() && to < r.next
}

// Range copies the elements in [from, to] into a new slice.
// The caller must check Contains first.
func (r *Ring[T]) Range(from, to int64) []T {
	if from > to {
		return []T{}
	}
	out := make([]T, 0, to-from+1)
	for pos := from; pos <= to; pos++ {
		out = append(out, r.data[pos%r.cap])
	}
	return out
}

// Back 返回最新写入的元素
func (r *Ring[T]) Back() (T, bool) {
	return r.Get(r.next - 1)
}

// Reset 清空缓冲区并将写入位置归零，释放对旧元素的引用
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.next = 0
}
