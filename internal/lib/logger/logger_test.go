package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/linemk/toff-shop/internal/lib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger_Levels(t *testing.T) {
	ctx := context.Background()

	assert.True(t, logger.SetupLogger(logger.EnvLocal).Enabled(ctx, slog.LevelDebug))
	assert.True(t, logger.SetupLogger(logger.EnvDev).Enabled(ctx, slog.LevelDebug))
	assert.False(t, logger.SetupLogger(logger.EnvProd).Enabled(ctx, slog.LevelDebug))
	assert.True(t, logger.SetupLogger("unknown").Enabled(ctx, slog.LevelInfo))
}

func TestNew_JSONCarriesServiceAndEnv(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.EnvProd)

	log.Info("order created", slog.Int64("orderID", 12))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order created", entry["msg"])
	assert.Equal(t, logger.ServiceName, entry["service"])
	assert.Equal(t, logger.EnvProd, entry["env"])
	assert.Equal(t, float64(12), entry["orderID"])
}

func TestNew_RedactsSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.EnvDev).With(slog.String("Password", "hunter2"))

	log.Debug("payment attempt", slog.String("card_number", "5528790000000008"), slog.String("cvc", "123"), slog.String("city", "İzmir"))

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "5528790000000008")
	assert.NotContains(t, out, `"cvc":"123"`)
	assert.Contains(t, out, `"card_number":"[REDACTED]"`)
	assert.Contains(t, out, `"city":"İzmir"`)
}

func TestNew_PrettyRedacts(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.EnvLocal)
	color.NoColor = true

	log.Info("login", slog.String("pass_hash", "$2a$10$abc"))

	out := buf.String()
	assert.NotContains(t, out, "$2a$10$abc")
	assert.Contains(t, out, `"service": "toff-shop"`)
}
