package telegram

import (
	"sync"
	"time"
)

const downloadTimeout = 60 * time.Second

const modeAwaitKey = "await_key"

// chatModes: chatID -> mode. The only mode is "waiting for the next text to be an API key".
type chatModes struct{ m sync.Map }

func (c *chatModes) set(chatID int64, mode string) { c.m.Store(chatID, mode) }

func (c *chatModes) get(chatID int64) string {
	if v, ok := c.m.Load(chatID); ok {
		if s, _ := v.(string); s != "" {
			return s
		}
	}
	return ""
}

func (c *chatModes) clear(chatID int64) { c.m.Delete(chatID) }
