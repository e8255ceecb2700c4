package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/container"
)

func TestPriorityQueueOrder(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	assert.Equal(t, 0, q.Len())

	q.HeapPush("c", 3)
	q.HeapPush("a", 1)
	q.HeapPush("b", 2)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, "a", q.First())

	v, p := q.HeapPop()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1.0, p)
	v, _ = q.HeapPop()
	assert.Equal(t, "b", v)
	v, _ = q.HeapPop()
	assert.Equal(t, "c", v)
	assert.Equal(t, 0, q.Len())
}

func TestPriorityQueueInterleaved(t *testing.T) {
	q := container.NewPriorityQueue[int]()
	q.HeapPush(10, 10)
	q.HeapPush(5, 5)
	v, _ := q.HeapPop()
	assert.Equal(t, 5, v)

	q.HeapPush(1, 1)
	q.HeapPush(7, 7)
	v, _ = q.HeapPop()
	assert.Equal(t, 1, v)
	assert.Equal(t, 7, q.First())
}
