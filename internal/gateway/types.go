package gateway

import (
	"encoding/json"
	"strconv"
)

// InterfaceData — серверный WireGuard-интерфейс, как его отдаёт удалённый API.
type InterfaceData struct {
	Name       string
	Address    string
	ListenPort int
	PublicKey  string
	PrivateKey string
}

// PeerData — нормализованная запись пира. Удалённый API в разных ревизиях
// называет одни и те же поля по-разному (publicKey/id, allowedIPs/allowed_ip,
// configuration.Name/name); вся неоднозначность гасится здесь, дальше границы
// шлюза она не проходит.
type PeerData struct {
	Name              string
	PublicKey         string
	PrivateKey        string
	AllowedIPs        string
	Endpoint          string
	EndpointAllowedIP string
	DNS               string
	PreSharedKey      string
	MTU               int
	KeepAlive         int
	Configuration     InterfaceData
}

// PeerFile — сгенерированный удалённой стороной файл конфига.
type PeerFile struct {
	File     string `json:"file"`
	FileName string `json:"fileName"`
}

func (p *PeerData) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	p.Name = pickString(m, "name", "Name")
	p.PublicKey = pickString(m, "public_key", "publicKey", "id")
	p.PrivateKey = pickString(m, "private_key", "privateKey")
	p.AllowedIPs = pickString(m, "allowed_ip", "allowedIPs", "allowed_ips")
	p.Endpoint = pickString(m, "remote_endpoint", "endpoint")
	p.EndpointAllowedIP = pickString(m, "endpoint_allowed_ip", "endpointAllowedIP")
	p.DNS = pickString(m, "DNS", "dns")
	p.PreSharedKey = pickString(m, "preshared_key", "preSharedKey")
	p.MTU = pickInt(m, "mtu", "MTU")
	p.KeepAlive = pickInt(m, "keepalive", "keepAlive")
	if raw, ok := firstRaw(m, "configuration", "Configuration"); ok {
		if err := json.Unmarshal(raw, &p.Configuration); err != nil {
			return err
		}
	}
	return nil
}

func (c *InterfaceData) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	c.Name = pickString(m, "name", "Name")
	c.Address = pickString(m, "address", "Address")
	c.ListenPort = pickInt(m, "listen_port", "listenPort", "ListenPort")
	c.PublicKey = pickString(m, "public_key", "publicKey", "PublicKey")
	c.PrivateKey = pickString(m, "private_key", "privateKey", "PrivateKey")
	return nil
}

func firstRaw(m map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := m[k]; ok && len(raw) > 0 && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

// pickString берёт первое присутствующее поле; массив строк схлопывается
// в первый элемент (allowed_ips в некоторых ревизиях — список).
func pickString(m map[string]json.RawMessage, keys ...string) string {
	raw, ok := firstRaw(m, keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.Itoa(int(n))
	}
	return ""
}

func pickInt(m map[string]json.RawMessage, keys ...string) int {
	raw, ok := firstRaw(m, keys...)
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return 0
}
