// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianProposals/services/proposal/changeset"
)

const (
	eventBuffer  = 64
	writeWait    = 5 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// HandleEvents handles GET /v1/proposals/events.
//
// # Description
//
// Upgrades to a websocket and streams a StreamMessage for every workspace
// step the controller executes. The first message has type "ready" and is
// sent once the subscription is active. Slow clients drop events rather
// than stalling the controller.
func (h *Handlers) HandleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade the websocket", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan changeset.ProgressEvent, eventBuffer)
	unsubscribe := h.svc.Controller().Subscribe(func(ev changeset.ProgressEvent) {
		select {
		case events <- ev:
		default:
			slog.Warn("dropping progress event for slow websocket client",
				"change_set_id", ev.ChangeSetID,
				"step", ev.Step,
			)
		}
	})
	defer unsubscribe()

	// The read loop only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeStream(conn, StreamMessage{Type: "ready"}); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case ev := <-events:
			if err := writeStream(conn, StreamMessage{Type: "progress", Progress: &ev}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeStream(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
		return err
	}
	return nil
}
