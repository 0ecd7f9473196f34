package db

import (
	"testing"

	"github.com/shinyyama/escrow-backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	base := config.Config{DBUser: "app", DBPassword: "pw", DBName: "escrow", DBPort: "3306"}

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{
			name:   "plain host",
			mutate: func(c *config.Config) { c.DBHost = "10.0.0.5" },
			want:   "app:pw@tcp(10.0.0.5:3306)/escrow?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name:   "explicit tcp",
			mutate: func(c *config.Config) { c.DBHost = "tcp(db:3307)" },
			want:   "app:pw@tcp(db:3307)/escrow?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name:   "socket path",
			mutate: func(c *config.Config) { c.DBHost = "/var/run/mysqld.sock" },
			want:   "app:pw@unix(/var/run/mysqld.sock)/escrow?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name: "cloud sql",
			mutate: func(c *config.Config) {
				c.DBHost = "ignored"
				c.InstanceConnectionName = "proj:region:inst"
			},
			want: "app:pw@unix(/cloudsql/proj:region:inst)/escrow?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name: "postgres",
			mutate: func(c *config.Config) {
				c.DBDriver = DriverPostgres
				c.DBHost = "pg"
			},
			want: "postgres://app:pw@pg:5432/escrow?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, BuildDSN(&cfg))
		})
	}
}
