// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"github.com/mileusna/useragent"
)

// Client describes the device the tracker runs on, derived once from the
// user agent string.
type Client struct {
	UserAgent  string
	DeviceType string // mobile, tablet or desktop
	Platform   string // Windows, MacOS, Linux, Android, iOS or Unknown
}

// ParseClient classifies a user agent string.
func ParseClient(uaString string) Client {
	ua := useragent.Parse(uaString)

	c := Client{UserAgent: uaString}

	switch {
	case ua.Tablet:
		c.DeviceType = "tablet"
	case ua.Mobile:
		c.DeviceType = "mobile"
	default:
		// Crawlers count as desktop.
		c.DeviceType = "desktop"
	}

	switch ua.OS {
	case "Windows":
		c.Platform = "Windows"
	case "macOS":
		c.Platform = "MacOS"
	case "Linux":
		c.Platform = "Linux"
	case "Android":
		c.Platform = "Android"
	case "iOS":
		c.Platform = "iOS"
	default:
		c.Platform = "Unknown"
	}

	return c
}
