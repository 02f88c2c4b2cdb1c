// Package wgconf — кодек между текстом wireguard-конфига (или legacy JSON-блобом)
// и плоской картой канонических полей PeerConfig.
package wgconf

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vpnportal/internal/models"
)

// Канонические ключи карты полей.
const (
	FieldName              = "name"
	FieldPrivateKey        = "privateKey"
	FieldPublicKey         = "publicKey"
	FieldAllowedIPs        = "allowedIPs" // туннельный адрес пира ([Interface] Address)
	FieldEndpoint          = "endpoint"
	FieldEndpointAllowedIP = "endpointAllowedIP" // [Peer] AllowedIPs
	FieldDNS               = "dns"
	FieldMTU               = "mtu"
	FieldKeepAlive         = "keepAlive"
	FieldPreSharedKey      = "preSharedKey"
)

var sectionRe = regexp.MustCompile(`(?m)^\s*\[([^\]\n]+)\]\s*$`)

// Parse разбирает текст конфига в карту канонических полей. Никогда не
// возвращает ошибку: битый текст просто даёт меньше ключей. JSON-вход
// (legacy peer-блоб, в т.ч. массив из одного элемента) распознаётся по
// успешному анмаршалу.
func Parse(text string) map[string]string {
	out := map[string]string{}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return out
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if parseLegacyJSON(trimmed, out) {
			return out
		}
	}

	// Границы секций; повторные секции независимы, при коллизии ключей
	// побеждает более поздняя.
	locs := sectionRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		name := strings.TrimSpace(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := text[loc[1]:end]
		for key, val := range parseSection(body) {
			if canon, ok := canonKey(name, key); ok {
				out[canon] = val
			}
		}
	}
	return out
}

// parseSection: строки "Key = Value", разделитель — первый '='.
func parseSection(body string) map[string]string {
	res := map[string]string{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key != "" && val != "" {
			res[key] = val
		}
	}
	return res
}

func canonKey(section, key string) (string, bool) {
	switch strings.ToLower(section) {
	case "interface":
		switch key {
		case "PrivateKey":
			return FieldPrivateKey, true
		case "Address":
			return FieldAllowedIPs, true
		case "MTU":
			return FieldMTU, true
		case "DNS":
			return FieldDNS, true
		}
	case "peer":
		switch key {
		case "PublicKey":
			return FieldPublicKey, true
		case "AllowedIPs":
			return FieldEndpointAllowedIP, true
		case "Endpoint":
			return FieldEndpoint, true
		case "PersistentKeepalive":
			return FieldKeepAlive, true
		case "PresharedKey":
			return FieldPreSharedKey, true
		}
	}
	return "", false
}

// parseLegacyJSON раскрывает массив из одного элемента и маппит известные
// имена полей старых ревизий удалённого API.
func parseLegacyJSON(text string, out map[string]string) bool {
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return false
	}
	if arr, ok := raw.([]any); ok {
		if len(arr) != 1 {
			return false
		}
		raw = arr[0]
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	aliases := map[string]string{
		"name":                FieldName,
		"private_key":         FieldPrivateKey,
		"privateKey":          FieldPrivateKey,
		"public_key":          FieldPublicKey,
		"publicKey":           FieldPublicKey,
		"id":                  FieldPublicKey,
		"allowed_ip":          FieldAllowedIPs,
		"allowedIPs":          FieldAllowedIPs,
		"remote_endpoint":     FieldEndpoint,
		"endpoint":            FieldEndpoint,
		"endpoint_allowed_ip": FieldEndpointAllowedIP,
		"DNS":                 FieldDNS,
		"dns":                 FieldDNS,
		"mtu":                 FieldMTU,
		"keepalive":           FieldKeepAlive,
		"keepAlive":           FieldKeepAlive,
		"preshared_key":       FieldPreSharedKey,
		"preSharedKey":        FieldPreSharedKey,
	}
	for key, val := range obj {
		canon, ok := aliases[key]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case string:
			if v != "" {
				out[canon] = v
			}
		case float64:
			out[canon] = strconv.Itoa(int(v))
		}
	}
	return true
}

// Render собирает канонический клиентский конфиг из сохранённого пира.
// PresharedKey при отсутствии не пишется вовсе (пустого значения не бывает).
func Render(p *models.PeerConfig) string {
	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", p.PrivateKey)
	fmt.Fprintf(&b, "Address = %s\n", p.AllowedIPs)
	if p.MTU > 0 {
		fmt.Fprintf(&b, "MTU = %d\n", p.MTU)
	}
	if p.DNS != "" {
		fmt.Fprintf(&b, "DNS = %s\n", p.DNS)
	}
	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", p.Configuration.PublicKey)
	if p.EndpointAllowedIP != "" {
		fmt.Fprintf(&b, "AllowedIPs = %s\n", p.EndpointAllowedIP)
	}
	fmt.Fprintf(&b, "Endpoint = %s\n", p.Endpoint)
	if p.KeepAlive > 0 {
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", p.KeepAlive)
	}
	if p.PreSharedKey != "" {
		fmt.Fprintf(&b, "PresharedKey = %s\n", p.PreSharedKey)
	}
	return b.String()
}
