package middleware

import (
	"log/slog"

	"github.com/vango-dev/microscope/internal/logging"
	"github.com/vango-dev/microscope/pkg/cell"
)

// Logger creates a middleware that logs every write reaching it at debug
// level, with the previous and next values. A nil logger uses
// slog.Default().
func Logger[T any](cellName string, logger *slog.Logger) cell.Middleware[T] {
	logger = logging.OrDefault(logger)
	return func(prev, next T, _ *cell.Cell[T], label string) T {
		logger.Debug("microscope: write",
			"cell", cellName,
			"label", label,
			"prev", prev,
			"next", next,
		)
		return next
	}
}

// Validate creates a middleware that vetoes writes failing check by
// returning the previous value. Rejections are logged at warn level.
func Validate[T any](check func(next T) error, logger *slog.Logger) cell.Middleware[T] {
	logger = logging.OrDefault(logger)
	return func(prev, next T, c *cell.Cell[T], label string) T {
		if err := check(next); err != nil {
			logger.Warn("microscope: write rejected",
				"cell", c.Name(),
				"label", label,
				"error", err,
			)
			return prev
		}
		return next
	}
}
