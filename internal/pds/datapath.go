package pds

import (
	"net/url"
	"strings"
)

// DataPath is where a connection's document for (domain, area) is stored.
func DataPath(connectionID, domain, area string) string {
	return "/data" +
		"/" + EncodeURIComponent(connectionID) +
		"/" + EncodeURIComponent(domain) +
		"/" + EncodeURIComponent(area) +
		"/data.json"
}

// LegacyDataPath is where the consent flow stores an account's document.
func LegacyDataPath(accountID, domain, area string) string {
	return "/" + accountID + "/data/" + EncodeURIComponent(domain) + "/" + EncodeURIComponent(area) + ".mydata.txt"
}

var uriComponentUnescape = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
	"%7E", "~",
)

// EncodeURIComponent escapes everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func EncodeURIComponent(s string) string {
	return uriComponentUnescape.Replace(url.QueryEscape(s))
}
