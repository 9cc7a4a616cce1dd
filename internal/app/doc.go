// Package app wires the finsheet HTTP service together: configuration,
// logging, telemetry, the optional Postgres store, the screener client, the
// ingest and health services, and the chi router.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, YAML, .env, environment)
//	2. Initialize the process logger
//	3. Resolve and create the data directories
//	4. Register pipeline metrics and start OpenTelemetry on one registry
//	5. Connect the store when a database is configured and ensure its schema
//	6. Build the ingest and health services
//	7. Set up middleware, routes and the HTTP server
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	application, err := app.NewApplication(ctx)
//	if err != nil {
//	    return err
//	}
//	defer application.Close(context.Background())
//	return application.Run(ctx)
//
// Run returns once ctx is cancelled and in-flight requests have drained, or
// when the listener fails. The package never calls os.Exit.
package app
