// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package config loads and validates server configuration using Koanf
// v2 with layered sources: built-in defaults, an optional YAML config
// file, and environment variables (highest priority).
package config
