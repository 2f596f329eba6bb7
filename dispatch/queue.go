package dispatch

import (
	"fmt"

	conq "github.com/enriquebris/goconcurrentqueue"
	"go.uber.org/zap"

	"github.com/phaseless-team/afqmc-engine/core"
)

type queueChan chan *runInDispatch

type fifo interface {
	Enqueue(*runInDispatch) error
	Dequeue() (*runInDispatch, error)
	DequeueOrWaitForNextElement() (*runInDispatch, error)
	Get(index int) (*runInDispatch, error)
	GetLen() int
	Remove(index int) error
}

type conqFIFO struct {
	conq.FIFO
}

func newConqFIFO() *conqFIFO {
	return &conqFIFO{
		FIFO: *conq.NewFIFO(),
	}
}

func (c *conqFIFO) Enqueue(rd *runInDispatch) error {
	return c.FIFO.Enqueue(rd)
}

func (c *conqFIFO) Dequeue() (*runInDispatch, error) {
	tmp, err := c.FIFO.Dequeue()
	if err != nil {
		return nil, err
	}
	return tmp.(*runInDispatch), nil
}

func (c *conqFIFO) DequeueOrWaitForNextElement() (*runInDispatch, error) {
	tmp, err := c.FIFO.DequeueOrWaitForNextElement()
	if err != nil {
		return nil, err
	}
	return tmp.(*runInDispatch), nil
}

func (c *conqFIFO) Get(index int) (*runInDispatch, error) {
	tmp, err := c.FIFO.Get(index)
	if err != nil {
		return nil, err
	}
	return tmp.(*runInDispatch), nil
}

func (c *conqFIFO) GetLen() int {
	return c.FIFO.GetLen()
}

func (c *conqFIFO) Remove(index int) error {
	return c.FIFO.Remove(index)
}

type NormalQueue struct {
	fifo            fifo
	maxSize         int
	refillThreshold int
	queueChan       queueChan
	cancelChan      chan struct{}
}

func (n *NormalQueue) Setup(conf *core.Conf) error {
	n.refillThreshold = conf.QueueRefillThreshold
	n.maxSize = conf.QueueMaxSize
	n.fifo = newConqFIFO()
	n.queueChan = make(queueChan)
	n.cancelChan = make(chan struct{})
	go func() {
		defer close(n.cancelChan)
		for {
			var rid *runInDispatch
			select {
			case <-n.cancelChan:
				return
			case rid = <-n.queueChan:
			}
			rd := rid.run.RunData()
			if n.maxSize <= n.fifo.GetLen() {
				zap.L().Info(fmt.Sprintf("Failed to put %s. Normal Queue is full.", rd.ID))
				continue
			}
			zap.L().Debug(fmt.Sprintf("Putting %s to normalQueue", rd.ID))
			err := n.fifo.Enqueue(rid)
			if err != nil {
				zap.L().Error(
					fmt.Sprintf("Failed to put %s to normalQueue. Reason:%s", rd.ID, err))
			}
		}
	}()
	return nil
}

func (n *NormalQueue) TearDown() {
	n.cancelChan <- struct{}{}
}

// wait until the next elements gets enqueued
func (n *NormalQueue) Dequeue(wait bool) (rid *runInDispatch, err error) {
	rid = nil
	err = nil
	if wait {
		rid, err = n.fifo.DequeueOrWaitForNextElement()
	} else {
		rid, err = n.fifo.Dequeue()
	}
	if err != nil {
		zap.L().Debug("no run in NormalQueue.", zap.Error(err))
		return
	}
	zap.L().Debug(fmt.Sprintf("Dequeued run:%s", rid.run.RunData().ID))
	return
}

func (n *NormalQueue) Delete(runID string) error {
	zap.L().Debug(fmt.Sprintf("deleting %s from normalQueue", runID))
	var idx int
	var err error

	idx, err = n.getIdx(runID)
	if err != nil {
		zap.L().Info(fmt.Sprintf("Failed to Delete %s. Reason:%s", runID, err))
		return err
	}
	err = n.fifo.Remove(idx)
	if err != nil {
		zap.L().Error(fmt.Sprintf("Failed to remove idx:%d. Reason:%s", idx, err))
		return err
	}
	return nil
}

func (n *NormalQueue) IsOverRefillThreshold() bool {
	return n.refillThreshold <= n.fifo.GetLen()
}

func (n *NormalQueue) GetCurrentSize() int {
	return n.fifo.GetLen()
}

func (n *NormalQueue) getIdx(runID string) (int, error) {
	for i := 0; i < n.fifo.GetLen(); i++ {
		rid, err := n.fifo.Get(i)
		if err == nil {
			if rid.run.RunData().ID == runID {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("No entry")
}
