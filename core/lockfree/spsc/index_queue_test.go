package spsc_test

import (
	"sync"
	"testing"

	"github.com/momentics/zerocopy-ipc/core/lockfree/spsc"
)

func TestIndexQueuePushPopOrder(t *testing.T) {
	q := spsc.NewIndexQueue(4)
	producer, ok := q.AcquireProducer()
	if !ok {
		t.Fatal("expected to acquire producer on a fresh queue")
	}
	defer producer.Release()

	for i := uint64(1); i <= 4; i++ {
		if !producer.Push(i) {
			t.Fatalf("push %d failed unexpectedly", i)
		}
	}
	if producer.Push(5) {
		t.Fatal("expected push on a full queue to fail")
	}

	consumer, ok := q.AcquireConsumer()
	if !ok {
		t.Fatal("expected to acquire consumer on a fresh queue")
	}
	defer consumer.Release()

	for i := uint64(1); i <= 4; i++ {
		v, ok := consumer.Pop()
		if !ok || v != i {
			t.Errorf("Pop() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := consumer.Pop(); ok {
		t.Fatal("expected pop on an empty queue to fail")
	}
}

func TestIndexQueueSecondProducerAcquireFails(t *testing.T) {
	q := spsc.NewIndexQueue(4)
	p1, ok := q.AcquireProducer()
	if !ok {
		t.Fatal("expected first AcquireProducer to succeed")
	}
	if _, ok := q.AcquireProducer(); ok {
		t.Fatal("expected second concurrent AcquireProducer to fail")
	}
	p1.Release()
	if _, ok := q.AcquireProducer(); !ok {
		t.Fatal("expected AcquireProducer to succeed again after Release")
	}
}

func TestIndexQueueSecondConsumerAcquireFails(t *testing.T) {
	q := spsc.NewIndexQueue(4)
	c1, ok := q.AcquireConsumer()
	if !ok {
		t.Fatal("expected first AcquireConsumer to succeed")
	}
	if _, ok := q.AcquireConsumer(); ok {
		t.Fatal("expected second concurrent AcquireConsumer to fail")
	}
	c1.Release()
	if _, ok := q.AcquireConsumer(); !ok {
		t.Fatal("expected AcquireConsumer to succeed again after Release")
	}
}

func TestIndexQueueConcurrentProducerConsumer(t *testing.T) {
	const capacity = 32
	const count = 10000

	q := spsc.NewIndexQueue(capacity)
	producer, _ := q.AcquireProducer()
	consumer, _ := q.AcquireConsumer()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := uint64(0); i < count; {
			if producer.Push(i) {
				i++
			}
		}
	}()

	received := make([]uint64, 0, count)
	go func() {
		defer wg.Done()
		for uint64(len(received)) < count {
			if v, ok := consumer.Pop(); ok {
				received = append(received, v)
			}
		}
	}()

	wg.Wait()
	for i, v := range received {
		if v != uint64(i) {
			t.Fatalf("received[%d] = %d, want %d (FIFO order violated)", i, v, i)
		}
	}
}

func TestIndexQueueUseBeforeInitPanics(t *testing.T) {
	q := spsc.NewIndexQueueUninit(4)
	defer func() {
		if recover() == nil {
			t.Fatal("expected AcquireProducer before Init to panic")
		}
	}()
	q.AcquireProducer()
}
