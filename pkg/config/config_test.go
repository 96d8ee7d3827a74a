package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_NAME", "futsync_test")
	t.Setenv("DB_USER", "futsync")
	t.Setenv("DB_PASSWORD", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 180, cfg.TuShare.MaxCalls)
	assert.Equal(t, 60*time.Second, cfg.TuShare.Window)
	assert.Equal(t, []string{"CFFEX", "SHFE", "DCE", "CZCE", "INE", "GFEX"}, cfg.TuShare.Exchanges)
	assert.Equal(t, 15, cfg.Calendar.EarlyCutoffHour)
	assert.Equal(t, 17, cfg.Calendar.CloseHour)
	assert.Equal(t, 50, cfg.Sync.PauseEvery)
	assert.Equal(t, time.Second, cfg.Sync.PauseFor)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TUSHARE_MAX_CALLS", "90")
	t.Setenv("TUSHARE_WINDOW", "30s")
	t.Setenv("TUSHARE_EXCHANGES", "SHFE, DCE")
	t.Setenv("MARKET_CLOSE_HOUR", "18")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.TuShare.MaxCalls)
	assert.Equal(t, 30*time.Second, cfg.TuShare.Window)
	assert.Equal(t, []string{"SHFE", "DCE"}, cfg.TuShare.Exchanges)
	assert.Equal(t, 18, cfg.Calendar.CloseHour)
}

func TestDatabaseConfig_Validate(t *testing.T) {
	valid := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Name:     "futsync",
		User:     "futsync",
		Password: "secret",
	}

	tests := []struct {
		name    string
		mutate  func(*DatabaseConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*DatabaseConfig) {}},
		{name: "missing host", mutate: func(d *DatabaseConfig) { d.Host = "" }, wantErr: "DB_HOST"},
		{name: "missing user", mutate: func(d *DatabaseConfig) { d.User = "" }, wantErr: "DB_USER"},
		{name: "missing password", mutate: func(d *DatabaseConfig) { d.Password = "" }, wantErr: "DB_PASSWORD"},
		{name: "missing name", mutate: func(d *DatabaseConfig) { d.Name = "" }, wantErr: "DB_NAME"},
		{name: "port zero", mutate: func(d *DatabaseConfig) { d.Port = 0 }, wantErr: "DB_PORT"},
		{name: "port too large", mutate: func(d *DatabaseConfig) { d.Port = 70000 }, wantErr: "DB_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "sandbox")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENV must be one of")
}

func TestDatabaseConfig_URL(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Name: "fut", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5433/fut?sslmode=disable", d.URL())
}
