package testenv

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/stepio/internal/config"
)

func TestDBEnv(t *testing.T) {
	o := Options{DBType: "mariadb"}
	o.defaults()
	env, port, err := dbEnv(o)
	require.NoError(t, err)
	assert.Equal(t, nat.Port("3306/tcp"), port)
	assert.Equal(t, DefaultDatabase, env["MYSQL_DATABASE"])

	o = Options{DBType: "postgres"}
	o.defaults()
	env, port, err = dbEnv(o)
	require.NoError(t, err)
	assert.Equal(t, nat.Port("5432/tcp"), port)
	assert.Equal(t, DefaultUser, env["POSTGRES_USER"])

	_, _, err = dbEnv(Options{DBType: "sqlite"})
	assert.Error(t, err)
}

func TestEnv(t *testing.T) {
	c := &Containers{Config: config.Config{
		DBType: "mariadb", DBHost: "localhost", DBPort: "49153",
		DBDatabase: "stepio", DBUser: "u", DBPassword: "p",
		RedisAddr: "localhost:49154",
	}}
	assert.Equal(t, []string{
		"DB_TYPE=mariadb",
		"DB_HOST=localhost",
		"DB_PORT=49153",
		"DB_DATABASE=stepio",
		"DB_USER=u",
		"DB_PASSWORD=p",
		"REDIS_ADDR=localhost:49154",
	}, c.Env())
}

func TestInitFiles(t *testing.T) {
	files := initFiles("mariadb")
	require.Len(t, files, 1)
	assert.Equal(t, "/docker-entrypoint-initdb.d/001-stepio-records.sql", files[0].ContainerFilePath)

	assert.Len(t, initFiles("postgres"), 1)
	assert.Nil(t, initFiles("sqlserver"))
}
