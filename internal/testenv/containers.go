// Package testenv starts the backing services of the record service in
// containers, for integration tests and local development.
package testenv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/localnerve/stepio/data"
	"github.com/localnerve/stepio/internal/config"
)

// Defaults used when the caller leaves an image or credential empty.
const (
	DefaultDBImage    = "mariadb:11"
	DefaultRedisImage = "redis:7-alpine"
	DefaultDatabase   = "stepio"
	DefaultUser       = "stepio"
	DefaultPassword   = "stepio"
)

// Options select images and credentials.
type Options struct {
	DBType     string // mysql, mariadb or postgres
	DBImage    string
	RedisImage string
	Database   string
	User       string
	Password   string
	// SkipRedis starts only the database.
	SkipRedis bool
}

func (o *Options) defaults() {
	if o.DBType == "" {
		o.DBType = "mariadb"
	}
	if o.DBImage == "" {
		o.DBImage = DefaultDBImage
	}
	if o.RedisImage == "" {
		o.RedisImage = DefaultRedisImage
	}
	if o.Database == "" {
		o.Database = DefaultDatabase
	}
	if o.User == "" {
		o.User = DefaultUser
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
}

// Containers are the running services.
type Containers struct {
	Network *testcontainers.DockerNetwork
	DB      testcontainers.Container
	Redis   testcontainers.Container

	// Config points the service at the containers through their mapped ports.
	Config config.Config
}

// Terminate stops every container and removes the network.
func (c *Containers) Terminate(ctx context.Context) error {
	var errs []error
	if c.Redis != nil {
		if err := c.Redis.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminate redis: %w", err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminate database: %w", err))
		}
	}
	if c.Network != nil {
		if err := c.Network.Remove(ctx); err != nil {
			errs = append(errs, fmt.Errorf("remove network: %w", err))
		}
	}
	return errors.Join(errs...)
}

func dbEnv(o Options) (map[string]string, nat.Port, error) {
	switch o.DBType {
	case "postgres", "postgresql":
		return map[string]string{
			"POSTGRES_PASSWORD": o.Password,
			"POSTGRES_USER":     o.User,
			"POSTGRES_DB":       o.Database,
		}, nat.Port("5432/tcp"), nil
	case "mysql", "mariadb":
		return map[string]string{
			"MYSQL_ROOT_PASSWORD": o.Password,
			"MYSQL_DATABASE":      o.Database,
			"MYSQL_USER":          o.User,
			"MYSQL_PASSWORD":      o.Password,
		}, nat.Port("3306/tcp"), nil
	}
	return nil, "", fmt.Errorf("unsupported container database type: %s", o.DBType)
}

// initFiles copies the table script into the image's init directory.
func initFiles(dbType string) []testcontainers.ContainerFile {
	script := data.InitScript(dbType)
	if script == "" {
		return nil
	}
	return []testcontainers.ContainerFile{{
		Reader:            strings.NewReader(script),
		ContainerFilePath: "/docker-entrypoint-initdb.d/001-stepio-records.sql",
		FileMode:          0o644,
	}}
}

// Start runs the database and, unless skipped, redis.
func Start(ctx context.Context, opts Options) (*Containers, error) {
	opts.defaults()
	env, dbPort, err := dbEnv(opts)
	if err != nil {
		return nil, err
	}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create network: %w", err)
	}
	c := &Containers{Network: nw}

	db, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          opts.DBImage,
			ExposedPorts:   []string{string(dbPort)},
			Env:            env,
			WaitingFor:     wait.ForListeningPort(dbPort).WithStartupTimeout(90 * time.Second),
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"db"}},
			Files:          initFiles(opts.DBType),
		},
		Started: true,
	})
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("start database: %w", err)
	}
	c.DB = db

	host, err := db.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("database host: %w", err)
	}
	mapped, err := db.MappedPort(ctx, dbPort)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("database port: %w", err)
	}
	c.Config = config.Config{
		DBType:            opts.DBType,
		DBHost:            host,
		DBPort:            mapped.Port(),
		DBDatabase:        opts.Database,
		DBUser:            opts.User,
		DBPassword:        opts.Password,
		DBConnectionLimit: 5,
		RedisKeyPrefix:    "stepio",
	}

	if opts.SkipRedis {
		return c, nil
	}

	redisPort := nat.Port("6379/tcp")
	rc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          opts.RedisImage,
			ExposedPorts:   []string{string(redisPort)},
			WaitingFor:     wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"redis"}},
		},
		Started: true,
	})
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("start redis: %w", err)
	}
	c.Redis = rc

	redisHost, err := rc.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("redis host: %w", err)
	}
	redisMapped, err := rc.MappedPort(ctx, redisPort)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("redis port: %w", err)
	}
	c.Config.RedisAddr = fmt.Sprintf("%s:%s", redisHost, redisMapped.Port())
	return c, nil
}

// Env renders the connection settings as environment assignments.
func (c *Containers) Env() []string {
	out := []string{
		"DB_TYPE=" + c.Config.DBType,
		"DB_HOST=" + c.Config.DBHost,
		"DB_PORT=" + c.Config.DBPort,
		"DB_DATABASE=" + c.Config.DBDatabase,
		"DB_USER=" + c.Config.DBUser,
		"DB_PASSWORD=" + c.Config.DBPassword,
	}
	if c.Config.RedisAddr != "" {
		out = append(out, "REDIS_ADDR="+c.Config.RedisAddr)
	}
	return out
}
