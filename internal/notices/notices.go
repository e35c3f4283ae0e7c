// Package notices holds the user-facing texts for system announcements
// ("X joined the room"). A deployment can override the built-in catalog
// from a JSON file without rebuilding.
package notices

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Catalog keys.
const (
	MemberJoined = "member_joined"
	MemberLeft   = "member_left"
	MemberKicked = "member_kicked"
	RoomReset    = "room_reset"
)

var defaults = map[string]string{
	MemberJoined: "%s joined the room",
	MemberLeft:   "%s left the room",
	MemberKicked: "%s was removed by a moderator",
	RoomReset:    "Messages were cleared by the scheduled reset",
}

// Catalog maps notice keys to format strings.
type Catalog struct {
	texts map[string]string
	mu    sync.RWMutex
}

// NewCatalog returns a catalog seeded with the built-in texts.
func NewCatalog() *Catalog {
	texts := make(map[string]string, len(defaults))
	for k, v := range defaults {
		texts[k] = v
	}
	return &Catalog{texts: texts}
}

// LoadOverrides merges key/format pairs from a JSON file over the built-in
// texts. Unknown keys are kept so new notices can ship ahead of a release.
func (c *Catalog) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read notices file: %w", err)
	}
	var overrides map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse notices file %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range overrides {
		c.texts[k] = v
	}
	return nil
}

// Render formats the notice for a key. If the key is unknown it is returned
// as-is, so a missing text never breaks a system message.
func (c *Catalog) Render(key string, args ...interface{}) string {
	c.mu.RLock()
	format, ok := c.texts[key]
	c.mu.RUnlock()
	if !ok {
		return key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
