package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/raven-go"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
	"github.com/Sparsh-ui/captcha-solver/internal/broadcast"
	"github.com/Sparsh-ui/captcha-solver/internal/model"
	"github.com/Sparsh-ui/captcha-solver/internal/queue"
	"github.com/Sparsh-ui/captcha-solver/internal/solver"
	"github.com/Sparsh-ui/captcha-solver/internal/worker"
)

func main() {
	redisAddress := flag.String("redis-address", ":6379", "Address to the Redis server")
	redisMaxConnections := flag.Int("redis-max-connections", 10, "Max connections to Redis")
	maxWorkerQueueSize := flag.Int("max-worker-queue-size", 100, "The size of job queue")
	maxWorkers := flag.Int("max-workers", 5, "The number of workers to start")
	modelLocation := flag.String("model", "models/captcha_model.json", "Path or http(s) URL of the model parameters")
	notifyURL := flag.String("notify-url", "", "POST every result to this URL as well")
	sentryDsn := flag.String("sentry-dsn", "", "Sentry DSN (errors aren't reported when empty)")
	debug := flag.Bool("debug", true, "Log at debug level")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}
	if *sentryDsn != "" {
		if err := raven.SetDSN(*sentryDsn); err != nil {
			log.Fatal("[Main] Couldn't set sentry DSN: ", err.Error())
		}
		raven.SetTagsContext(map[string]string{"app": "captcha-worker"})
	}

	log.Debug("[Main] Starting CAPTCHA Worker...")

	// start loading right away so the first request doesn't pay for it
	store := model.NewStore(model.Open(*modelLocation))
	store.Load()
	s := solver.New(store)

	redisPool := queue.NewPool(*redisAddress, *redisMaxConnections)
	defer redisPool.Close()

	hub := broadcast.NewHub()
	hub.Register(broadcast.ListenerFunc(queue.NewResultStore(redisPool).Put))
	hub.Register(broadcast.ListenerFunc(func(res datastructures.SolveResult) error {
		if res.Error != "" {
			log.Debug("[Main] Request ", res.Uuid, " failed: ", res.Error)
			return nil
		}
		log.Debug("[Main] Request ", res.Uuid, " solved: ", res.Label)
		return nil
	}))
	if *notifyURL != "" {
		hub.Register(broadcast.WebhookListener(nil, *notifyURL))
	}

	log.Debug("[Main] Starting Dispatcher...")
	jobQueue := make(chan worker.Job, *maxWorkerQueueSize)
	dispatcher := worker.NewDispatcher(jobQueue, *maxWorkers, s, hub)
	dispatcher.Run()
	defer dispatcher.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// nothing in queue -> sleep for one sec
	err := worker.Poll(ctx, queue.NewQueue(redisPool), jobQueue, time.Second)
	log.Debug("[Main] Shutting down: ", err.Error())
}
