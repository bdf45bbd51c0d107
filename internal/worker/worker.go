// Package worker solves queued requests on a fixed pool of goroutines and
// publishes every outcome through a broadcast hub.
package worker

import (
	"context"
	"os"

	"github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
	"github.com/Sparsh-ui/captcha-solver/internal/broadcast"
	"github.com/Sparsh-ui/captcha-solver/internal/solver"
)

// Job holds the attributes needed to perform unit of work.
type Job struct {
	Request datastructures.SolveRequest
}

type Solver interface {
	SolveBytes(ctx context.Context, data []byte) (*solver.Result, error)
}

// NewWorker creates a worker with a numeric id that offers itself on workerPool.
func NewWorker(id int, workerPool chan chan Job, s Solver, hub *broadcast.Hub) Worker {
	return Worker{
		id:         id,
		jobQueue:   make(chan Job),
		workerPool: workerPool,
		quitChan:   make(chan bool),
		solver:     s,
		hub:        hub,
	}
}

type Worker struct {
	id         int
	jobQueue   chan Job
	workerPool chan chan Job
	quitChan   chan bool
	solver     Solver
	hub        *broadcast.Hub
}

func (w Worker) start() {
	log.Debug("[Worker] Worker ", w.id, " starting")

	go func() {
		for {
			// Add my jobQueue to the worker pool.
			select {
			case w.workerPool <- w.jobQueue:
			case <-w.quitChan:
				log.Debug("[Worker] Worker ", w.id, " stopping")
				return
			}

			select {
			case job := <-w.jobQueue:
				// Dispatcher has added a job to my jobQueue.
				res := w.process(job)
				w.hub.Publish(res)

			case <-w.quitChan:
				// We have been asked to stop.
				log.Debug("[Worker] Worker ", w.id, " stopping")
				return
			}
		}
	}()
}

func (w Worker) stop() {
	go func() {
		w.quitChan <- true
	}()
}

// process solves one request. Failures end up in the result's Error field
// so that whoever polls for the uuid learns about them.
func (w Worker) process(job Job) datastructures.SolveResult {
	req := job.Request
	res := datastructures.SolveResult{Uuid: req.Uuid, Session: req.Session}

	data, err := os.ReadFile(req.Filename)
	if err != nil {
		log.Debug("[Worker] Couldn't read upload: ", err.Error())
		res.Error = "couldn't read image"
		return res
	}
	defer func() {
		if err := os.Remove(req.Filename); err != nil {
			log.Debug("[Worker] Couldn't remove file ", err.Error())
		}
	}()

	solved, err := w.solver.SolveBytes(context.Background(), data)
	if err != nil {
		log.Debug("[Worker] Couldn't solve ", req.Uuid, ": ", err.Error())
		res.Error = err.Error()
		if errors.Is(err, solver.ErrModelUnavailable) {
			raven.CaptureError(err, map[string]string{"component": "worker"})
		}
		return res
	}

	res.Label = solved.Label
	res.Score = solved.Score
	res.ModelInfo = solved.ModelInfo
	return res
}

// NewDispatcher creates, and returns a new Dispatcher object.
func NewDispatcher(jobQueue chan Job, maxWorkers int, s Solver, hub *broadcast.Hub) *Dispatcher {
	return &Dispatcher{
		jobQueue:   jobQueue,
		maxWorkers: maxWorkers,
		workerPool: make(chan chan Job, maxWorkers),
		quitChan:   make(chan bool),
		solver:     s,
		hub:        hub,
	}
}

type Dispatcher struct {
	workerPool chan chan Job
	maxWorkers int
	jobQueue   chan Job
	quitChan   chan bool
	workers    []Worker
	solver     Solver
	hub        *broadcast.Hub
}

func (d *Dispatcher) Run() {
	for i := 0; i < d.maxWorkers; i++ {
		worker := NewWorker(i+1, d.workerPool, d.solver, d.hub)
		worker.start()
		d.workers = append(d.workers, worker)
	}

	go d.dispatch()
}

// Stop asks every worker and the dispatch loop to return. Jobs already
// handed to a worker are finished first.
func (d *Dispatcher) Stop() {
	for _, w := range d.workers {
		w.stop()
	}
	close(d.quitChan)
}

func (d *Dispatcher) dispatch() {
	for {
		select {
		case job := <-d.jobQueue:
			go func() {
				select {
				case workerJobQueue := <-d.workerPool:
					select {
					case workerJobQueue <- job:
					case <-d.quitChan:
					}
				case <-d.quitChan:
				}
			}()
		case <-d.quitChan:
			return
		}
	}
}
