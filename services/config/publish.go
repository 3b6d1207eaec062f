package config

import (
	"chargecode-go/bus"
	"chargecode-go/types"
)

// Publish retains the committed settings and battery profile on
// charger/settings/{settings,battery} so late subscribers see them.
func Publish(conn *bus.Connection, c *Config) {
	conn.Publish(conn.NewMessage(bus.T(types.TopicCharger, types.TopicSettings, "settings"), flatten(c.Settings), true))
	conn.Publish(conn.NewMessage(bus.T(types.TopicCharger, types.TopicSettings, "battery"), flatten(c.Battery), true))
}
