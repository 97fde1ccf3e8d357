// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package tracing wires OpenTelemetry into rbac-lookup.
//
// Lookups run either as a one-shot CLI command or inside the lookup server.
// The mode is recorded on the trace resource so both can report to the same
// collector. The server continues traces started by its callers through the
// W3C traceparent header.
package tracing
