package scheduler

import (
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

// Task is a named unit of background work, such as a version cleanup
// sweep.
type Task struct {
	Name    string
	Execute func() error
}

// Scheduler runs background maintenance tasks on a single worker, with
// periodic low-priority tasks that yield to on-demand ones.
type Scheduler struct {
	log             commonlog.Logger
	taskQueue       chan Task
	lowPriorityLock sync.Mutex
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

// NewScheduler creates a Scheduler with the specified queue size.
func NewScheduler(queueSize int) *Scheduler {
	return &Scheduler{
		log:       commonlog.GetLogger("scrapsheet.scheduler"),
		taskQueue: make(chan Task, queueSize),
		stopChan:  make(chan struct{}),
	}
}

// Run starts the scheduler loop.
func (s *Scheduler) Run() {
	go func() {
		for {
			select {
			case task, ok := <-s.taskQueue:
				if !ok {
					return
				}
				s.runTask(task)
			case <-s.stopChan:
				// Drain remaining tasks before exiting.
				for task := range s.taskQueue {
					s.log.Debugf("draining task: %s", task.Name)
					s.runTask(task)
				}
				return
			}
		}
	}()
}

func (s *Scheduler) runTask(task Task) {
	defer s.wg.Done()
	s.log.Debugf("executing %s task", task.Name)
	if err := task.Execute(); err != nil {
		s.log.Errorf("task %s failed: %s", task.Name, err.Error())
	}
}

// SchedulePeriodic enqueues the task on every tick until Stop. Blocks;
// run it on its own goroutine.
func (s *Scheduler) SchedulePeriodic(interval time.Duration, lowTask Task) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.lowPriorityLock.Lock()
			select {
			case s.taskQueue <- lowTask:
				s.wg.Add(1)
				s.log.Debugf("scheduled periodic task %s", lowTask.Name)
			default:
				s.log.Infof("skipped periodic task %s, queue full", lowTask.Name)
			}
			s.lowPriorityLock.Unlock()
		case <-s.stopChan:
			return
		}
	}
}

// Schedule enqueues a task for execution as soon as the worker is free.
func (s *Scheduler) Schedule(task Task) {
	s.wg.Add(1)
	s.taskQueue <- task
}

// Stop waits for all queued tasks to complete and stops the scheduler.
func (s *Scheduler) Stop() {
	s.log.Info("stopping scheduler")
	close(s.stopChan)
	close(s.taskQueue)
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}
