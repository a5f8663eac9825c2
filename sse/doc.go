// Package sse streams extension lifecycle events to HTTP clients as
// Server-Sent Events.
//
// A Hub fans messages out to connected clients. Each client may carry a
// glob filter matched against the extension key of every message, so a
// dashboard can follow "payment.*" while another follows everything.
// Forward adapts a Hub into an event listener:
//
//	hub := sse.NewHub()
//	go hub.Run()
//	events.Listen(extension.KindInstantiated, sse.Forward(hub))
//	router.GET("/events", func(c *gin.Context) {
//		sse.ServeSSE(hub, c.Writer, c.Request, uuid.NewString(), c.Query("extension"))
//	})
package sse
