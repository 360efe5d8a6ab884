package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gniziemazity/ml-course-phase-2/pkg/config"
	"github.com/gniziemazity/ml-course-phase-2/pkg/dataprep"
	"github.com/gniziemazity/ml-course-phase-2/pkg/history"
	"github.com/gniziemazity/ml-course-phase-2/pkg/notify"
	"github.com/gniziemazity/ml-course-phase-2/pkg/pipeline"
)

//
// ---------------------- CLI FLAGS DOCUMENTATION ----------------------
//
// --training            : Training feature CSV. Default = ../data/dataset/training.csv
// --testing             : Testing feature CSV. Default = ../data/dataset/testing.csv
// --model-json          : Model document destination. Default = ../data/models/model.json
// --model-js            : Model script destination. Default = ../common/js_objects/model.js
// --decision-boundary   : Optional PNG of the decision boundary over the first two features
// --loss-curve          : Optional PNG of the training loss per epoch
// --hidden              : Hidden layer sizes, comma separated. Default = 10
// --activation          : tanh, relu, logistic or identity. Default = tanh
// --max-iter            : Maximum epochs. Default = 10000
// --random-state        : Seed for initialization and shuffling. Default = 1
// --baseline-k          : Also score a k-nearest-neighbors baseline (0 = off)
// --normalize           : Min-max scale features and write minMax.json / minMax.js
// --min-max-json        : Feature ranges destination. Default = ../data/models/minMax.json
// --min-max-js          : Feature ranges script. Default = ../common/js_objects/minMax.js
// --warm-start          : Continue from the existing model.json; keep it if the new fit is worse
// --database-url        : Record the run in Postgres (empty = off)
// --mqtt-broker         : Publish the exported model to this broker (empty = off)
// --mqtt-topic          : Topic for the published model. Default = ml-course/model
//
// Every flag also has an environment variable (see pkg/config); flags win.
//
// Example:
//   go run ./cmd/train --hidden 10 --decision-boundary ../data/models/decision_boundary.png
//
// ---------------------------------------------------------------------
//

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	cfg.RegisterTrainFlags(flag.CommandLine)
	flag.Parse()

	logger := config.InitLogger(cfg.Env, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observers, closeObservers, err := buildObservers(cfg, logger)
	if err != nil {
		logger.Error("failed to set up run observers", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	res, err := pipeline.Run(ctx, cfg, dataprep.SketchClasses, logger, observers...)
	closeObservers()
	if err != nil {
		logger.Error("training run failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	fmt.Println("Accuracy:", res.Accuracy)
	fmt.Printf("ACCURACY: %d/%d (%.2f%%)\n", res.Correct, res.TestSamples, res.Accuracy*100)
	if cfg.BaselineK > 0 {
		fmt.Printf("Baseline (KNN, k=%d): %.4f\n", cfg.BaselineK, res.Baseline)
	}
	printConfusion(res.Confusion, dataprep.SketchClasses.Names())
}

var (
	openHistory   = connectHistory
	connectBroker = notify.Connect
)

// connectHistory opens and migrates the run history at dsn.
func connectHistory(dsn string) (*history.Store, error) {
	db, err := history.Connect(dsn)
	if err != nil {
		return nil, err
	}
	store := history.NewStore(db)
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// buildObservers connects the optional run history and model broadcast. The returned
// func releases whatever was connected; on error nothing is left open.
func buildObservers(cfg *config.Config, logger *slog.Logger) ([]pipeline.Observer, func(), error) {
	var observers []pipeline.Observer
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.URL != "" {
		store, err := openHistory(cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close run history", slog.Any("error", err))
			}
		})
		observers = append(observers, store)
	}
	if cfg.MQTT.Broker != "" {
		client, err := connectBroker(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Disconnect(250) })
		observers = append(observers, notify.NewPublisher(client, cfg.MQTT.Topic))
	}
	return observers, closeAll, nil
}

// printConfusion prints the confusion matrix with true classes as rows.
func printConfusion(m [][]int, names []string) {
	fmt.Printf("%-10s", "")
	for _, n := range names {
		fmt.Printf("%8s", n)
	}
	fmt.Println()
	for i, row := range m {
		fmt.Printf("%-10s", names[i])
		for _, v := range row {
			fmt.Printf("%8d", v)
		}
		fmt.Println()
	}
}
