package main

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"simpleclipboard/internal/wire"
)

var detailLabels = map[string]string{
	wire.DetailPingOK:                   "Ping answered",
	wire.DetailTokenRejected:            "Token rejected",
	wire.DetailForwarded:                "Forwarded to next hop",
	wire.DetailForwardFailedFallbackOK:  "Relay failed, copied locally",
	wire.DetailForwardFailedFallbackErr: "Relay failed, local copy failed",
	wire.DetailLocalSetOK:               "Copied to clipboard",
	wire.DetailLocalSetErr:              "Clipboard write failed",
}

var titleCaser = cases.Title(language.English)

// detailLabel turns an ack detail code into display text. Codes from newer
// daemons fall back to a title-cased form of the code.
func detailLabel(detail string) string {
	if label, ok := detailLabels[detail]; ok {
		return label
	}
	if strings.TrimSpace(detail) == "" {
		return "No detail"
	}
	return titleCaser.String(strings.ReplaceAll(detail, "_", " "))
}
