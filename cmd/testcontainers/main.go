package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/localnerve/stepio/internal/testenv"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var skipRedis bool
	flag.BoolVar(&skipRedis, "no-redis", false, "start only the database")
	flag.Parse()

	usage := `
Run the stepio backing services (database and redis) in containers.

Usage:

testcontainers [-h] [-no-redis] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file. DB_TYPE, DB_IMAGE, REDIS_IMAGE,
DB_DATABASE, DB_USER and DB_PASSWORD are read from it.

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	ctx := context.Background()
	containers, err := testenv.Start(ctx, testenv.Options{
		DBType:     os.Getenv("DB_TYPE"),
		DBImage:    os.Getenv("DB_IMAGE"),
		RedisImage: os.Getenv("REDIS_IMAGE"),
		Database:   os.Getenv("DB_DATABASE"),
		User:       os.Getenv("DB_USER"),
		Password:   os.Getenv("DB_PASSWORD"),
		SkipRedis:  skipRedis,
	})
	if err != nil {
		log.Fatalf("Failed to create test containers: %v\n", err)
	}

	fmt.Println(strings.Join(containers.Env(), "\n"))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigs
	log.Printf("\nReceived signal: %v, terminating test containers...\n", sig)
	if err := containers.Terminate(ctx); err != nil {
		log.Printf("Terminate: %v\n", err)
	}
}
