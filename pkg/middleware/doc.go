// Package middleware provides cell middlewares for observability and
// validation.
//
// This package includes:
//   - Prometheus write metrics
//   - OpenTelemetry write spans
//   - Structured write logging with log/slog
//   - Validation that vetoes invalid writes
//
// Every constructor returns a cell.Middleware[T]; attach it with Use:
//
//	c := cell.New(Cart{}, cell.Named("cart")).Use(
//	    middleware.Validate(func(next Cart) error { return next.Check() }, nil),
//	    middleware.Logger[Cart]("cart", logger),
//	    middleware.Prometheus[Cart]("cart"),
//	)
//
// Middlewares run in registration order, so Validate placed first keeps
// invalid values away from the ones after it.
//
// # Prometheus Metrics
//
//   - microscope_writes_total: writes reaching the middleware, by cell and label
//   - microscope_vetoes_total: writes already vetoed by an earlier middleware
//   - microscope_last_write_timestamp_seconds: time of the last write per cell
//   - microscope_inspector_clients: devtools clients connected to the inspector
//
// Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware
