// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package config

import (
	"fmt"

	"github.com/DummyC/Bantay-v2/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Struct tags cover ranges and enums; the checks here cover secrets
// whose requirements depend on the environment mode.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validateSecrets(); err != nil {
		return err
	}

	return c.validateTimeouts()
}

// validateSecrets enforces secret requirements. Development mode allows
// empty secrets so a fresh checkout runs without setup; production
// refuses to start without them.
func (c *Config) validateSecrets() error {
	if !c.Server.IsProduction() {
		return nil
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENVIRONMENT=production")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}

	if c.Traccar.ForwardSecret == "" {
		return fmt.Errorf("TRACCAR_FORWARD_SECRET is required when ENVIRONMENT=production")
	}

	return nil
}

// validateTimeouts enforces duration sanity that struct tags cannot
// express.
func (c *Config) validateTimeouts() error {
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Feed.WriteTimeout <= 0 {
		return fmt.Errorf("FEED_WRITE_TIMEOUT must be positive")
	}
	if c.Feed.PongTimeout <= 0 {
		return fmt.Errorf("FEED_PONG_TIMEOUT must be positive")
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}
