// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package services wraps the long-running components as suture services.
package services

import (
	"context"
)

// ContextRunner matches the hub's RunWithContext method without
// importing the websocket package.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService supervises the feed hub. The hub's run loop already
// follows the suture.Service contract, so this wrapper only adds the
// service name for supervisor logs.
type HubService struct {
	hub  ContextRunner
	name string
}

// NewHubService wraps a feed hub as a supervised service.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{
		hub:  hub,
		name: "feed-hub",
	}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (s *HubService) String() string {
	return s.name
}
