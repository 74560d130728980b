package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("GCP_PROD_ENV", "False")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoConnectionString)
	assert.Equal(t, 10, cfg.SummaryDefaultNumSentences)
	assert.Equal(t, 8, cfg.UploadConcurrency)
	assert.Equal(t, time.Hour, cfg.StaleReportAfter)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.GCPProdEnv)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
}

func TestLoad_InvalidStaleReportAfter(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("STALE_REPORT_AFTER", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestParseBool(t *testing.T) {
	cases := map[string]bool{
		"True":  true,
		"true":  true,
		"1":     true,
		" yes ": true,
		"False": false,
		"":      false,
		"nope":  false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseBool(in), in)
	}
}
