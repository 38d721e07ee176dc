// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psscriptai/scriptguard/pkg/logging"
	"github.com/psscriptai/scriptguard/services/diff"
	"github.com/psscriptai/scriptguard/services/guardrails"
	"github.com/psscriptai/scriptguard/services/llm"
	"github.com/psscriptai/scriptguard/services/orchestrator/observability"
	"github.com/psscriptai/scriptguard/services/orchestrator/routes"
	"github.com/psscriptai/scriptguard/services/router"
	"github.com/psscriptai/scriptguard/services/sandbox"
	"github.com/psscriptai/scriptguard/services/usage"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("scriptguard-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(traceSampler()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown trace exporter", "error", err)
		}
	}, nil
}

// traceSampler honors SCRIPTGUARD_TRACE_SAMPLE. Tracing everything to stdout
// is only tolerable in development, so the default samples nothing.
func traceSampler() sdktrace.Sampler {
	ratio := envFloat("SCRIPTGUARD_TRACE_SAMPLE", 0)
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(ratio)
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("ignoring invalid numeric environment variable", "key", key, "value", raw)
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("ignoring invalid numeric environment variable", "key", key, "value", raw)
		return fallback
	}
	return v
}

func envBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	}
	return false
}

func usageFilePath() string {
	if p := os.Getenv("SCRIPTGUARD_USAGE_FILE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "usage.json"
	}
	return filepath.Join(home, ".scriptguard", "usage.json")
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	appLogger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("SCRIPTGUARD_LOG_DIR"),
		Service: "scriptguard",
		JSON:    true,
	})
	defer appLogger.Close()
	slog.SetDefault(appLogger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the trace exporter: %v", err)
	}
	defer cleanup(context.Background())

	strict := envBool("SCRIPTGUARD_STRICT")
	guard, err := guardrails.NewSecurityGuard(
		guardrails.WithStrictMode(strict),
		guardrails.WithGuardLogger(appLogger.Slog()),
	)
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the security guard: %v", err)
	}

	modelRouter := router.New(router.WithLogger(appLogger.Slog()))

	sandboxOpts := []sandbox.Option{
		sandbox.WithSandboxLogger(appLogger.Slog()),
	}
	if pwsh := os.Getenv("PWSH_PATH"); pwsh != "" {
		sandboxOpts = append(sandboxOpts, sandbox.WithPwshPath(pwsh))
	}
	if timeout := envInt("SANDBOX_TIMEOUT_SECONDS", 0); timeout > 0 {
		sandboxOpts = append(sandboxOpts, sandbox.WithTimeout(time.Duration(timeout)*time.Second))
	}
	scriptSandbox := sandbox.New(sandboxOpts...)

	counter, err := usage.NewTokenCounter(usageFilePath(),
		usage.WithCounterLogger(appLogger.Slog()))
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the token counter: %v", err)
	}

	log.Println("Configuring the LLM Client")
	llmClient, err := llm.NewOpenAIClient(llm.WithLogger(appLogger.Slog()))
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	engine := gin.Default()
	engine.Use(otelgin.Middleware("scriptguard-orchestrator"))

	routes.SetupRoutes(engine, routes.Deps{
		Guard:        guard,
		Router:       modelRouter,
		Sandbox:      scriptSandbox,
		Differ:       diff.New(),
		LLM:          llmClient,
		Counter:      counter,
		Metrics:      observability.InitMetrics(),
		ExecuteRPS:   envFloat("EXECUTE_RPS", 1),
		ExecuteBurst: envInt("EXECUTE_BURST", 3),
	})

	log.Println("Starting the scriptguard server on port ", port)
	if err := engine.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
