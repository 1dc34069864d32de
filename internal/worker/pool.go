package worker

import (
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/zekeo/sjfnw/internal/logger"
)

// Runner 提交后台任务，结果只记录日志
type Runner interface {
	Submit(name string, fn func() error)
}

// Pool 基于 ants 的协程池
type Pool struct {
	pool *ants.Pool
	wg   sync.WaitGroup
}

// New 创建协程池
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = 16
	}
	p, err := ants.NewPool(size, ants.WithPanicHandler(func(v interface{}) {
		logger.Error("Background task panic: %v", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool of size %d: %w", size, err)
	}
	return &Pool{pool: p}, nil
}

// Submit 提交任务，池满或已关闭时丢弃并记录
func (p *Pool) Submit(name string, fn func() error) {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		start := time.Now()
		if err := fn(); err != nil {
			logger.Error("Task %s failed: %v", name, err)
			return
		}
		logger.Debug("Task %s finished in %s", name, time.Since(start))
	})
	if err != nil {
		p.wg.Done()
		logger.Error("Failed to submit task %s to pool: %v", name, err)
	}
}

// Running 正在执行的任务数
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release 等待已提交任务完成后关闭
func (p *Pool) Release(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("Worker pool release timed out after %s, %d tasks still running", timeout, p.pool.Running())
	}
	p.pool.Release()
}

// Inline 同步执行任务，测试和单次命令使用
type Inline struct{}

// Submit 立即执行
func (Inline) Submit(name string, fn func() error) {
	if err := fn(); err != nil {
		logger.Error("Task %s failed: %v", name, err)
	}
}
