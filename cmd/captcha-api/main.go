package main

import (
	"flag"
	"os"

	"github.com/getsentry/raven-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/internal/api"
	"github.com/Sparsh-ui/captcha-solver/internal/labeling"
	"github.com/Sparsh-ui/captcha-solver/internal/model"
	"github.com/Sparsh-ui/captcha-solver/internal/queue"
	"github.com/Sparsh-ui/captcha-solver/internal/solver"
	"github.com/Sparsh-ui/captcha-solver/internal/stash"
)

func main() {
	releaseMode := flag.Bool("release", false, "Run in release mode")
	listen := flag.String("listen", ":8079", "Address the API listens on")
	redisAddress := flag.String("redis-address", ":6379", "Address to the Redis server")
	redisMaxConnections := flag.Int("redis-max-connections", 500, "Max connections to Redis")
	uploadsDir := flag.String("uploads-dir", "/tmp/captcha-uploads/", "Where queued uploads wait for the worker")
	modelLocation := flag.String("model", "", "Path or http(s) URL of the model parameters; enables /v1/solve/sync")
	capturesDir := flag.String("captures-dir", "", "Where labeled captures are saved; enables capture and session routes")
	stashSize := flag.Int("stash-size", 1000, "Max number of sessions with a stashed CAPTCHA")
	sentryDsn := flag.String("sentry-dsn", "", "Sentry DSN (errors aren't reported when empty)")
	debug := flag.Bool("debug", true, "Log at debug level")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}
	if *releaseMode {
		log.Info("[Main] Starting gin in release mode!")
		gin.SetMode(gin.ReleaseMode)
	}
	if *sentryDsn != "" {
		if err := raven.SetDSN(*sentryDsn); err != nil {
			log.Fatal("[Main] Couldn't set sentry DSN: ", err.Error())
		}
		raven.SetTagsContext(map[string]string{"app": "captcha-api"})
	}

	log.Debug("[Main] Starting CAPTCHA API...")

	if err := os.MkdirAll(*uploadsDir, 0755); err != nil {
		log.Fatal("[Main] Couldn't create uploads dir: ", err.Error())
	}

	redisPool := queue.NewPool(*redisAddress, *redisMaxConnections)
	defer redisPool.Close()

	cfg := api.Config{
		Queue:      queue.NewQueue(redisPool),
		Results:    queue.NewResultStore(redisPool),
		UploadsDir: *uploadsDir,
	}
	if *modelLocation != "" {
		store := model.NewStore(model.Open(*modelLocation))
		store.Load()
		cfg.Solver = solver.New(store)
	}
	if *capturesDir != "" {
		saver, err := labeling.NewSaver(*capturesDir)
		if err != nil {
			log.Fatal("[Main] Couldn't create captures dir: ", err.Error())
		}
		cfg.Saver = saver
		cfg.Stash = stash.New(*stashSize)
	}

	router := api.New(cfg).Router()
	if err := router.Run(*listen); err != nil {
		log.Fatal("[Main] Couldn't start API: ", err.Error())
	}
}
