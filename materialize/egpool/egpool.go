// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
// Package egpool runs jobs on a bounded pool of goroutines, collecting
// every error rather than cancelling siblings: a failed job must not
// disturb the output of the ones still running.
package egpool

import (
	"fmt"
	"sync"
)

// Group is a bounded, error-collecting job pool. The zero value is
// usable; PoolSize must be set before the first Go if a bound other
// than 1 is wanted.
type Group struct {
	PoolSize int

	once sync.Once
	jobs chan func() error
	wg   sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// ErrPanic wraps a panic value recovered from a job.
type ErrPanic struct {
	Value interface{}
}

func (p ErrPanic) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Go submits a job, blocking when all workers are busy.
func (g *Group) Go(job func() error) {
	g.once.Do(func() {
		if g.PoolSize <= 0 {
			g.PoolSize = 1
		}
		g.jobs = make(chan func() error)
		g.wg.Add(g.PoolSize)
		for i := 0; i < g.PoolSize; i++ {
			go g.worker()
		}
	})
	g.jobs <- job
}

func (g *Group) worker() {
	defer g.wg.Done()
	for job := range g.jobs {
		g.run(job)
	}
}

func (g *Group) run(job func() error) {
	defer func() {
		if p := recover(); p != nil {
			g.report(ErrPanic{Value: p})
		}
	}()
	if err := job(); err != nil {
		g.report(err)
	}
}

func (g *Group) report(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}

// Wait blocks until every submitted job has finished and returns the
// first error reported, if any. The Group cannot be reused after Wait.
func (g *Group) Wait() error {
	if g.jobs == nil {
		return nil
	}
	close(g.jobs)
	g.wg.Wait()
	if len(g.errs) > 0 {
		return g.errs[0]
	}
	return nil
}

// Errors returns every error reported so far. Only safe to call after
// Wait.
func (g *Group) Errors() []error {
	return g.errs
}
