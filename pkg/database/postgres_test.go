package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/timetable-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "planner",
		Password: "secret",
		Name:     "timetable",
		SSLMode:  "disable",
	})

	assert.Equal(t, "host=db port=5433 user=planner password=secret dbname=timetable sslmode=disable", dsn)
}
