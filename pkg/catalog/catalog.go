// Package catalog defines the static command catalog offered to pull-mode
// agents and the policies that pick a next command for push-mode agents.
package catalog

import "github.com/rmon-protocol/rmon-go/pkg/wire"

// Command identifiers.
const (
	Info       = "info"
	Battery    = "battery"
	Location   = "location"
	Photo      = "photo"
	Network    = "network"
	Storage    = "storage"
	Apps       = "apps"
	Disconnect = "disconnect"
)

// Descriptor describes one catalog entry.
type Descriptor struct {
	ID          string
	Name        string
	Description string
}

// Wire returns the command_menu representation of d.
func (d Descriptor) Wire() wire.CommandDescriptor {
	return wire.CommandDescriptor{ID: d.ID, Name: d.Name, Description: d.Description}
}

// Executable reports whether selecting d results in an execute_command.
func (d Descriptor) Executable() bool {
	return d.ID != Disconnect
}

var descriptors = []Descriptor{
	{ID: Info, Name: "System info", Description: "Basic device information"},
	{ID: Battery, Name: "Battery status", Description: "Charge level and charging state"},
	{ID: Location, Name: "GPS coordinates", Description: "Current location (requires permission)"},
	{ID: Photo, Name: "Take photo", Description: "Camera snapshot (requires permission)"},
	{ID: Network, Name: "Network info", Description: "Network connection status"},
	{ID: Storage, Name: "Storage", Description: "Free and total storage space"},
	{ID: Apps, Name: "Installed apps", Description: "List of installed applications"},
	{ID: Disconnect, Name: "Disconnect", Description: "End the session"},
}

var byID = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.ID] = d
	}
	return m
}()

// All returns the catalog in menu order. The returned slice is a copy.
func All() []Descriptor {
	return append([]Descriptor(nil), descriptors...)
}

// Lookup returns the descriptor for id.
func Lookup(id string) (Descriptor, bool) {
	d, ok := byID[id]
	return d, ok
}

// Menu returns the command_menu message listing the full catalog.
func Menu() wire.CommandMenu {
	cmds := make([]wire.CommandDescriptor, len(descriptors))
	for i, d := range descriptors {
		cmds[i] = d.Wire()
	}
	return wire.CommandMenu{Type: wire.TypeCommandMenu, Commands: cmds}
}
