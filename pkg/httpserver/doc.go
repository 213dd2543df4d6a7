// Package httpserver runs an http.Handler with sane timeouts and shuts it down
// gracefully when the run context is cancelled.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server failed", logger.Error(err))
//	}
//
// LivenessHandler and ReadinessHandler back the /health endpoints; readiness
// runs its checks in parallel and fails if any one does.
package httpserver
