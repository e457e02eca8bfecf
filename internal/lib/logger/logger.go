package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/linemk/toff-shop/internal/lib/logger/handlers/slogpretty"
)

// окружения из config.Env
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// ServiceName попадает в каждую запись, чтобы логи магазина отделялись от соседних сервисов
const ServiceName = "toff-shop"

const redacted = "[REDACTED]"

// sensitiveKeys — атрибуты, значения которых не должны попадать в логи
var sensitiveKeys = map[string]struct{}{
	"card_number": {},
	"cvc":         {},
	"password":    {},
	"pass_hash":   {},
	"token":       {},
	"secret_key":  {},
}

// SetupLogger инициализирует логгер в зависимости от переданного окружения:
// локально цветной вывод (pretty), для dev и prod JSON в stdout
func SetupLogger(env string) *slog.Logger {
	return New(os.Stdout, env)
}

// New собирает логгер окружения env поверх w. Неизвестное окружение пишет как prod.
func New(w io.Writer, env string) *slog.Logger {
	var handler slog.Handler

	switch env {
	case EnvLocal:
		color.NoColor = false
		opts := slogpretty.PrettyHandlerOptions{
			SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: Redact},
		}
		handler = opts.NewPrettyHandler(w)
	case EnvDev:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: Redact})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo, ReplaceAttr: Redact})
	}

	return slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("env", env),
	)
}

// Redact маскирует значения чувствительных атрибутов, регистр ключа не важен
func Redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}
