package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"ai-refinery-be/internal/bootstrap"
	"ai-refinery-be/internal/config"
	"ai-refinery-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Persister Service...")
		if err := container.PersisterService.Consume(ctx); err != nil {
			log.Printf("Background Persister Error: %v", err)
		}
	}()
	if container.MonitorService != nil {
		go container.MonitorService.Start()
	}
	container.SessionStore.StartCleanupTask()

	// 5. Run Ops Facade
	if err := container.Facade.Run(ctx); err != nil {
		log.Fatalf("[FATAL] Failed to start ops facade: %v", err)
	}
	log.Println("Refinery daemon is up. Press Ctrl+C to stop.")

	<-ctx.Done()

	// 6. Graceful Shutdown
	log.Println("Shutting down...")
	container.Facade.Shutdown()
	container.Shutdown()
}
