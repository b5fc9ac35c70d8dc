package regionservice

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nci/gstream/processor"
)

const taskQueueSize = 400

type Task struct {
	Ctx     context.Context
	Payload *Request
	Resp    chan *processor.Tile
	Error   chan error
}

func NewTask(ctx context.Context, req *Request) *Task {
	return &Task{Ctx: ctx, Payload: req, Resp: make(chan *processor.Tile, 1), Error: make(chan error, 1)}
}

// WorkerPool runs queued tasks on a fixed number of goroutines. Each task
// evaluates its expression with its own source so workers share no state.
type WorkerPool struct {
	Size        int
	Concurrency int
	Debug       bool
	TaskQueue   chan *Task

	done chan struct{}
}

func (p *WorkerPool) AddQueue(task *Task) {
	if len(p.TaskQueue) > taskQueueSize-10 {
		task.Error <- fmt.Errorf("Pool TaskQueue is full")
		return
	}
	p.TaskQueue <- task
}

// CreateWorkerPool starts n workers. Each worker evaluates one region at a
// time using up to concurrency goroutines.
func CreateWorkerPool(n int, concurrency int, debug bool) *WorkerPool {
	if n < 1 {
		n = 1
	}
	p := &WorkerPool{
		Size:        n,
		Concurrency: concurrency,
		Debug:       debug,
		TaskQueue:   make(chan *Task, taskQueueSize),
		done:        make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go p.work(i)
	}
	return p
}

func (p *WorkerPool) work(id int) {
	for {
		select {
		case <-p.done:
			return
		case task := <-p.TaskQueue:
			p.run(id, task)
		}
	}
}

func (p *WorkerPool) run(id int, task *Task) {
	if err := task.Ctx.Err(); err != nil {
		task.Error <- err
		return
	}

	t0 := time.Now()
	req := task.Payload
	src, err := processor.NewExprSource(req.Region, req.Expression, req.NoData, p.Concurrency)
	if err != nil {
		task.Error <- err
		return
	}
	tile, err := src.ComputeRegion(task.Ctx, req.Region)
	if err != nil {
		task.Error <- err
		return
	}
	if p.Debug {
		log.Printf("worker %d: computed %v in %v", id, req.Region, time.Since(t0))
	}
	task.Resp <- tile
}

func (p *WorkerPool) DeleteWorkerPool() {
	close(p.done)
}
