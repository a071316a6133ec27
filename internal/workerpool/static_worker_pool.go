// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workerpool implements a fixed-size goroutine pool fed by bounded
// queues. It backs the timestamp updater, which must never block a
// caller beyond submission and must drop work under saturation rather
// than grow unbounded.
package workerpool

import (
	"errors"
	"sync"
)

// Task is a unit of work dispatched to the pool. It never returns an error
// to the submitter; the task itself is responsible for handling its own
// failures (logging them, typically).
type Task func()

// StaticWorkerPool runs tasks submitted to it across a fixed set of
// goroutines split between a priority lane and a normal lane. Both lanes
// share the same bounded-queue-and-drop semantics; priority tasks are
// merely served by their own dedicated workers so they aren't starved by a
// backlog of normal work.
type StaticWorkerPool struct {
	priorityQueue chan Task
	normalQueue   chan Task

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// QueueCapacity bounds how many pending tasks may sit in either lane before
// Schedule starts reporting saturation.
const QueueCapacity = 1000

// NewStaticWorkerPool starts priorityWorker goroutines draining the
// priority lane and normalWorker goroutines draining the normal lane. At
// least one worker overall is required.
func NewStaticWorkerPool(priorityWorker, normalWorker uint32) (*StaticWorkerPool, error) {
	if priorityWorker == 0 && normalWorker == 0 {
		return nil, errors.New("workerpool: at least one worker is required")
	}

	p := &StaticWorkerPool{
		priorityQueue: make(chan Task, QueueCapacity),
		normalQueue:   make(chan Task, QueueCapacity),
		stop:          make(chan struct{}),
	}

	for i := uint32(0); i < priorityWorker; i++ {
		p.wg.Add(1)
		go p.drain(p.priorityQueue)
	}
	for i := uint32(0); i < normalWorker; i++ {
		p.wg.Add(1)
		go p.drain(p.normalQueue)
	}

	return p, nil
}

func (p *StaticWorkerPool) drain(queue chan Task) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			// Orderly shutdown: finish whatever is already queued before
			// exiting, since submitters were told their task was accepted.
			for {
				select {
				case task := <-queue:
					task()
				default:
					return
				}
			}
		case task := <-queue:
			task()
		}
	}
}

// Schedule enqueues a normal-priority task. It reports false without
// blocking if the queue is saturated; the caller is expected to log and
// drop in that case rather than retry synchronously.
func (p *StaticWorkerPool) Schedule(task Task) bool {
	select {
	case p.normalQueue <- task:
		return true
	default:
		return false
	}
}

// SchedulePriority is Schedule's counterpart for the priority lane.
func (p *StaticWorkerPool) SchedulePriority(task Task) bool {
	select {
	case p.priorityQueue <- task:
		return true
	default:
		return false
	}
}

// Stop signals all workers to exit once the tasks already queued in their
// lane have run, and waits for them to do so. Stop is idempotent.
func (p *StaticWorkerPool) Stop() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}
