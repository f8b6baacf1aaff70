package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
	"github.com/synthica/serverless-voice-conversion-api/pkg/datastore"
	"github.com/synthica/serverless-voice-conversion-api/pkg/server"
)

const (
	defaultPort       = "8010"
	defaultDBType     = datastore.SQLite
	shutdownTimeout   = 5 * time.Second // 5s
	defaultConfigPath = "config.yaml"
)

func handleSignal() {
	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")
}

func logInit(logLevel string) {
	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
		// include function and file
		logrus.SetReportCaller(true)
	case "dev":
		logrus.SetLevel(logrus.InfoLevel)
	default:
		logrus.SetLevel(logrus.WarnLevel)
	}
}

func main() {
	port := flag.String("port", defaultPort, "server listen port, default 8010")
	dbType := flag.String("dbType", string(defaultDBType), "db type default sqlite")
	configFile := flag.String("config", defaultConfigPath, "default config path")
	mode := flag.String("mode", "dev", "service work mode debug|dev|product")
	vcShell := flag.String("engine", "", "engine sidecar start shell")
	flag.Parse()
	// init log
	logInit(*mode)
	logrus.Info("worker start")

	// init config
	if err := config.InitConfig(*configFile); err != nil {
		logrus.Fatal(err.Error())
	}
	config.ConfigGlobal.VcShell = *vcShell

	// init server and start
	worker, err := server.NewWorkerServer(*port, datastore.DatastoreType(*dbType))
	if err != nil {
		logrus.Fatalf("worker server init fail: %s", err.Error())
	}
	go worker.Start()

	// wait shutdown signal
	handleSignal()

	if err := worker.Close(shutdownTimeout); err != nil {
		logrus.Fatal("Shutdown server fail")
	}

	logrus.Info("Server exited")
}
