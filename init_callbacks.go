// Package main: WebSocket Hub callback wire-up.
//
// Hub ws paketinde yaşar ve iş mantığı bilmez; gelen event'leri ve kopmaları
// router'a bu callback'ler taşır. ws → services bağımlılığı böylece yoktur.
package main

import (
	"github.com/akinalp/duet/services"
	"github.com/akinalp/duet/ws"
)

func registerHubCallbacks(hub *ws.Hub, router *services.EventRouter) {
	hub.OnClientEvent(router.HandleEvent)
	hub.OnClientDisconnect(router.HandleDisconnect)
}
