package domain

import "errors"

var (
	ErrUnknownEventKind = errors.New("unknown_event_kind")
	ErrQueueFull        = errors.New("notification_queue_full")
	ErrDispatcherClosed = errors.New("notification_dispatcher_closed")
)
