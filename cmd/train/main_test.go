package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gniziemazity/ml-course-phase-2/pkg/config"
	"github.com/gniziemazity/ml-course-phase-2/pkg/history"
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

// stubHistory replaces openHistory with a store over a pool that never dials.
func stubHistory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=test dbname=test sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	prev := openHistory
	openHistory = func(string) (*history.Store, error) { return history.NewStore(db), nil }
	t.Cleanup(func() { openHistory = prev })
	return db
}

func stubBroker(t *testing.T, client mqtt.Client, err error) {
	t.Helper()
	prev := connectBroker
	connectBroker = func(string, string, *slog.Logger) (mqtt.Client, error) { return client, err }
	t.Cleanup(func() { connectBroker = prev })
}

func assertClosed(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	if err := sqlDB.Ping(); err == nil || !strings.Contains(err.Error(), "database is closed") {
		t.Errorf("history pool still open: Ping = %v", err)
	}
}

func observerConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{URL: "postgres://runs"},
		MQTT:     config.MQTTConfig{Broker: "tcp://localhost:1883", Topic: "ml-course/model"},
	}
}

func TestBuildObservers_BrokerFailureClosesHistory(t *testing.T) {
	db := stubHistory(t)
	stubBroker(t, nil, errors.New("broker down"))

	observers, closeAll, err := buildObservers(observerConfig(), discard)
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("err = %v, want the broker error", err)
	}
	if observers != nil || closeAll != nil {
		t.Error("nothing should be returned on failure")
	}
	assertClosed(t, db)
}

func TestBuildObservers_CloseReleasesAll(t *testing.T) {
	db := stubHistory(t)
	stubBroker(t, mqtt.NewClient(mqtt.NewClientOptions()), nil)

	observers, closeAll, err := buildObservers(observerConfig(), discard)
	if err != nil {
		t.Fatalf("buildObservers: %v", err)
	}
	if len(observers) != 2 {
		t.Fatalf("got %d observers, want 2", len(observers))
	}
	closeAll()
	assertClosed(t, db)
}

func TestBuildObservers_NoneConfigured(t *testing.T) {
	observers, closeAll, err := buildObservers(&config.Config{}, discard)
	if err != nil || len(observers) != 0 {
		t.Fatalf("got %v, %v", observers, err)
	}
	closeAll()
}
