package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"inventory/pkg/api"
	"inventory/pkg/config"
	"inventory/pkg/storage"
	"inventory/pkg/storage/filestore"
	"inventory/pkg/storage/memdb"
	"inventory/pkg/visitlog"
)

func main() {
	var (
		configPath string
		port       int
		logLevel   string
		dev        bool
	)

	flag.StringVar(&configPath, "config", "cmd/server/config.toml", "Path to TOML config file")
	flag.IntVar(&port, "port", 0, "HTTP port, overrides config and PORT.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.BoolVar(&dev, "dev", false, "Keep inventories in memory instead of the data dir.")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[server] failed to load config: %v", err)
	}

	// Override config with flags if set
	if port != 0 {
		cfg.Port = port
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[server] %v", err)
	}
	log.SetLevel(cfg.Level())
	log.Debugf("[server] config: %s", cfg)

	var db storage.Storage
	if dev {
		log.Info("[server] run with in-memory inventory storage")
		db = memdb.New()
	} else {
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			log.Fatalf("[server] failed to open data dir: %v", err)
		}
		db = fs
	}

	var kafkaWriter *kafka.Writer
	if cfg.KafkaEnabled() {
		kafkaWriter = &kafka.Writer{
			Addr:      kafka.TCP(cfg.KafkaAddr),
			Topic:     cfg.KafkaTopic,
			BatchSize: cfg.KafkaBatch,
			Async:     true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Errorf("[server] failed to deliver %d log entries to Kafka: %v", len(messages), err)
				}
			},
		}
		if err := createTopic(kafkaWriter.Addr.String(), kafkaWriter.Topic); err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
		defer kafkaWriter.Close()
	} else {
		log.Warn("[server] kafka was not configured, visitor logs stay local")
	}

	var pub visitlog.Publisher
	if kafkaWriter != nil {
		pub = kafkaWriter
	}
	visits, err := visitlog.New(cfg.LogFile, pub)
	if err != nil {
		log.Fatalf("[server] failed to open visitor log: %v", err)
	}

	api := api.New(cfg, db, visits)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("[server] listening on port %d, tracking %s", cfg.Port, cfg.Player)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}
}

func createTopic(broker, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
