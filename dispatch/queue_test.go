//go:build unit
// +build unit

package dispatch

import (
	"github.com/phaseless-team/afqmc-engine/core"
	"github.com/stretchr/testify/assert"

	"testing"
)

type TestFIFO struct {
	conqFIFO
	queuedChan chan struct{}
}

func newTestFIFO(queuedChan chan struct{}) *TestFIFO {
	return &TestFIFO{
		conqFIFO:   *newConqFIFO(),
		queuedChan: queuedChan,
	}
}

func (t *TestFIFO) Enqueue(rid *runInDispatch) error {
	err := t.FIFO.Enqueue(rid)
	t.queuedChan <- struct{}{}
	return err
}

func setUpTestNormalQueue(queuedChan chan struct{}) *NormalQueue {
	n := &NormalQueue{}
	conf := &core.Conf{QueueMaxSize: 1000}
	n.Setup(conf)
	n.fifo = newTestFIFO(queuedChan)
	return n
}

func tearDownTestNormalQueue(n *NormalQueue) {
	close(n.fifo.(*TestFIFO).queuedChan)
	n.TearDown()
}

func TestPutNormalQueue(t *testing.T) {
	s := core.SCWithUnimplementedContainer()
	defer s.TearDown()
	queuedChan := make(chan struct{})
	n := setUpTestNormalQueue(queuedChan)
	defer tearDownTestNormalQueue(n)

	n.queueChan <- newRunInDispatch(t, "test1")
	<-queuedChan
	assert.Equal(t, 1, n.fifo.GetLen())
	rid, err := n.Dequeue(false)
	assert.Nil(t, err)
	assert.Equal(t, rid.run.RunData().ID, "test1")
}

func TestNormalQueueDelete(t *testing.T) {
	s := core.SCWithUnimplementedContainer()
	defer s.TearDown()
	queuedChan := make(chan struct{})
	n := setUpTestNormalQueue(queuedChan)
	defer tearDownTestNormalQueue(n)

	n.queueChan <- newRunInDispatch(t, "test1")
	<-queuedChan
	assert.Equal(t, n.fifo.GetLen(), 1)
	n.queueChan <- newRunInDispatch(t, "test2")
	<-queuedChan
	assert.Equal(t, n.fifo.GetLen(), 2)
	n.queueChan <- newRunInDispatch(t, "test3")
	<-queuedChan
	assert.Equal(t, n.fifo.GetLen(), 3)
	n.queueChan <- newRunInDispatch(t, "test4")
	<-queuedChan
	assert.Equal(t, n.fifo.GetLen(), 4)

	n.Delete("test3")

	assert.Equal(t, n.fifo.GetLen(), 3)

	var rid *runInDispatch
	var err error

	rid, err = n.Dequeue(false)
	assert.Nil(t, err)
	assert.Equal(t, rid.run.RunData().ID, "test1")

	rid, err = n.Dequeue(false)
	assert.Nil(t, err)
	assert.Equal(t, rid.run.RunData().ID, "test2")

	rid, err = n.Dequeue(false)
	assert.Nil(t, err)
	assert.Equal(t, rid.run.RunData().ID, "test4")

	rid, err = n.Dequeue(false)
	assert.EqualError(t, err, "empty queue")
	assert.Nil(t, rid)
}

func newRunInDispatch(t *testing.T, id string) *runInDispatch {
	rm, err := core.NewRunManager(&core.NormalRun{})
	assert.Nil(t, err)
	rc, err := core.NewRunContext()
	assert.Nil(t, err)
	nr, err := rm.NewRunFromRunData(&core.RunData{ID: id}, rc)
	assert.Nil(t, err)
	return &runInDispatch{
		run: nr,
	}
}
