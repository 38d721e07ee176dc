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
	"fmt"
	"strings"

	"github.com/psscriptai/scriptguard/services/router"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	routeCostSensitive bool   // Prefer cheaper models where quality allows
	routeDefaultModel  string // Override the default model
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// routeCmd previews the model-routing decision for a query.
//
// # Examples
//
//	sgctl route "debug this PowerShell error"
//	sgctl route --cost-sensitive "write a script to rotate logs"
var routeCmd = &cobra.Command{
	Use:   "route <query>",
	Short: "Preview which model a query would be routed to",
	Long: `Classifies a query by task type and complexity and reports the
model the router would select, with estimated cost and latency. No API
call is made.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runRouteCommand,
}

func init() {
	routeCmd.Flags().BoolVar(&routeCostSensitive, "cost-sensitive", false,
		"Prefer cheaper models where quality allows")
	routeCmd.Flags().StringVar(&routeDefaultModel, "model", "",
		"Override the default model for moderate chat")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runRouteCommand(cmd *cobra.Command, args []string) {
	query := strings.Join(args, " ")

	opts := []router.Option{
		router.WithCostSensitive(routeCostSensitive),
		router.WithLogger(quietLogger()),
	}
	if routeDefaultModel != "" {
		opts = append(opts, router.WithDefaultModel(routeDefaultModel))
	}

	decision := router.New(opts...).Route(query, nil)

	if jsonOutput {
		printJSON(decision)
		return
	}
	fmt.Printf("Model:      %s (%s)\n", decision.ModelName, decision.ModelID)
	fmt.Printf("Task:       %s (%s)\n", decision.TaskType, decision.Complexity)
	fmt.Printf("Reason:     %s\n", decision.Reason)
	fmt.Printf("Est. cost:  $%.4f\n", decision.EstimatedCost)
	fmt.Printf("Est. wait:  %dms\n", decision.EstimatedLatencyMillis)
	if decision.AlternativeModel != "" {
		fmt.Printf("Fallback:   %s\n", decision.AlternativeModel)
	}
}
