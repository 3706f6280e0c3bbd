package handlers

import (
	"time"

	"github.com/diwenne/smashspeed-rn/internal/bridge"
)

// ServerService is what handlers need from the server.
type ServerService interface {
	IsRunning() bool
	GetPort() int
	GetUptime() time.Duration
	GetVersion() string
	GetCacheDir() string
	GetDispatcher() *bridge.Dispatcher
}
