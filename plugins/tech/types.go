package tech

import "encoding/json"

// Zone is one zone element of a module as returned by the eModul API.
type Zone struct {
	Zone        ZoneData        `json:"zone"`
	Description ZoneDescription `json:"description"`
	Mode        ZoneMode        `json:"mode"`
}

// ZoneData holds the live readings for a zone. Temperatures are in tenths of a degree.
type ZoneData struct {
	ID                 int       `json:"id"`
	SetTemperature     *float64  `json:"setTemperature"`
	CurrentTemperature *float64  `json:"currentTemperature"`
	Humidity           *float64  `json:"humidity"`
	Flags              ZoneFlags `json:"flags"`
	ZoneState          string    `json:"zoneState"`
	Visibility         bool      `json:"visibility"`
}

type ZoneFlags struct {
	RelayState string `json:"relayState"`
}

type ZoneDescription struct {
	Name string `json:"name"`
}

type ZoneMode struct {
	ID   int    `json:"id"`
	Mode string `json:"mode"`
}

// Module is a Tech controller registered on the account.
type Module struct {
	UDID    string `json:"udid"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type authResponse struct {
	Authenticated bool        `json:"authenticated"`
	UserID        json.Number `json:"user_id"`
	Token         string      `json:"token"`
}

type moduleResponse struct {
	Zones struct {
		Elements []Zone `json:"elements"`
	} `json:"zones"`
}
