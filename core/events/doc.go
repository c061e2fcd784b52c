// Package events defines the event types exchanged on the internal bus.
// Notification delivery (SMS/push) subscribes to these; the core only
// publishes.
package events
