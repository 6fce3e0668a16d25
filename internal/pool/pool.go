// Package pool 提供批量模拟使用的有界协程池:并发上限即对协作方
// 的会话级并发约束,空闲 worker 超时退出。
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool queue is full")
)

// Task 一个工作单元。返回的 error 只进入统计,不中断池。
type Task func(ctx context.Context) error

// Config 池配置
type Config struct {
	// MaxWorkers 并发 worker 上限
	MaxWorkers int
	// QueueSize 待执行任务队列长度
	QueueSize int
	// IdleTimeout worker 空闲退出时间
	IdleTimeout time.Duration
	// PanicHandler 任务 panic 时的回调,缺省只计入失败数
	PanicHandler func(any)
}

// Pool 有界协程池。worker 按需创建,空闲超时后收缩到 1 个。
type Pool struct {
	cfg     Config
	queue   chan queued
	workers atomic.Int32
	active  atomic.Int32
	closed  atomic.Bool
	wg      sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

type queued struct {
	task Task
	ctx  context.Context
}

// New 创建协程池
func New(cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Minute
	}
	return &Pool{
		cfg:   cfg,
		queue: make(chan queued, cfg.QueueSize),
	}
}

// Submit 投递一个任务。队列满且无法再扩容 worker 时返回 ErrPoolFull。
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	item := queued{task: task, ctx: ctx}
	select {
	case p.queue <- item:
		p.spawnIfNeeded()
		return nil
	default:
	}
	if p.spawnWorker() {
		select {
		case p.queue <- item:
			return nil
		default:
		}
	}
	p.rejected.Add(1)
	return ErrPoolFull
}

func (p *Pool) spawnIfNeeded() {
	if p.workers.Load() < int32(p.cfg.MaxWorkers) {
		p.spawnWorker()
	}
}

func (p *Pool) spawnWorker() bool {
	for {
		n := p.workers.Load()
		if n >= int32(p.cfg.MaxWorkers) {
			return false
		}
		if p.workers.CompareAndSwap(n, n+1) {
			p.wg.Add(1)
			go p.workerLoop()
			return true
		}
	}
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	exited := false
	defer func() {
		if !exited {
			p.workers.Add(-1)
		}
	}()

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			p.active.Add(1)
			err := p.runTask(item)
			p.active.Add(-1)
			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			idle.Reset(p.cfg.IdleTimeout)

		case <-idle.C:
			// 收缩到最后一个常驻 worker。CAS 抢占退出名额，
			// 避免两个空闲 worker 同时退出导致 worker 数归零。
			if n := p.workers.Load(); n > 1 && p.workers.CompareAndSwap(n, n-1) {
				exited = true
				return
			}
			idle.Reset(p.cfg.IdleTimeout)
		}
	}
}

func (p *Pool) runTask(item queued) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.cfg.PanicHandler != nil {
				p.cfg.PanicHandler(r)
			}
			err = errors.New("task panicked")
		}
	}()
	return item.task(item.ctx)
}

// Close 停止接收新任务并等待在途任务完成
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.queue)
	p.wg.Wait()
}

// Stats 池运行统计
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Stats 返回当前统计快照
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.workers.Load()),
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
