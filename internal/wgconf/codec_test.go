package wgconf

import (
	"strings"
	"testing"

	"vpnportal/internal/models"
)

func samplePeer() *models.PeerConfig {
	return &models.PeerConfig{
		Name:              "prod:Alice's Config",
		PrivateKey:        "yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk=",
		AllowedIPs:        "10.0.0.5",
		Endpoint:          "vpn.example:51820",
		EndpointAllowedIP: "0.0.0.0/0",
		DNS:               "1.1.1.1",
		MTU:               1420,
		KeepAlive:         25,
		PreSharedKey:      "HIgo9xNzJMWLKASShiTqIybxZ0U3wGLiUeJ1PKf8ykI=",
		Configuration: models.Configuration{
			Name:      "wg0",
			PublicKey: "xTIBA5rboUvnH4htodjb6e697QjLERt1NAB4mZqp8Dg=",
		},
	}
}

func TestRoundTrip(t *testing.T) {
	p := samplePeer()
	got := Parse(Render(p))

	checks := map[string]string{
		FieldAllowedIPs:        p.AllowedIPs,
		FieldDNS:               p.DNS,
		FieldMTU:               "1420",
		FieldKeepAlive:         "25",
		FieldEndpoint:          p.Endpoint,
		FieldPreSharedKey:      p.PreSharedKey,
		FieldEndpointAllowedIP: p.EndpointAllowedIP,
	}
	for key, want := range checks {
		if got[key] != want {
			t.Errorf("%s: got %q, want %q", key, got[key], want)
		}
	}
}

func TestRenderOmitsEmptyPresharedKey(t *testing.T) {
	p := samplePeer()
	p.PreSharedKey = ""
	out := Render(p)

	if strings.Contains(out, "PresharedKey") {
		t.Fatalf("rendered config must not contain PresharedKey line:\n%s", out)
	}
	if _, ok := Parse(out)[FieldPreSharedKey]; ok {
		t.Error("parsing the output must not yield a preSharedKey field")
	}
}

func TestParseEmptyInput(t *testing.T) {
	if got := Parse(""); len(got) != 0 {
		t.Errorf("empty input: got %v, want empty map", got)
	}
	if got := Parse("   \n  "); len(got) != 0 {
		t.Errorf("blank input: got %v, want empty map", got)
	}
}

func TestParseMalformedIsSoft(t *testing.T) {
	got := Parse("[Interface\nDNS 8.8.8.8\n= broken\nMTU =\n")
	if len(got) != 0 {
		t.Errorf("malformed text should just produce fewer keys, got %v", got)
	}
}

func TestParseRepeatedSectionsLaterWins(t *testing.T) {
	text := "[Interface]\nDNS = 1.1.1.1\n\n[Interface]\nDNS = 8.8.8.8\n"
	got := Parse(text)
	if got[FieldDNS] != "8.8.8.8" {
		t.Errorf("later section must win: got %q", got[FieldDNS])
	}
}

func TestParsePartialConfig(t *testing.T) {
	got := Parse("[Peer]\nEndpoint = vpn.example:51820\n")
	if got[FieldEndpoint] != "vpn.example:51820" {
		t.Errorf("endpoint: got %q", got[FieldEndpoint])
	}
	if _, ok := got[FieldDNS]; ok {
		t.Error("absent keys must not appear in the result")
	}
}

func TestParseLegacyJSON(t *testing.T) {
	blob := `[{"name":"peer1","remote_endpoint":"vpn.example:51820","allowed_ip":"10.0.0.7","DNS":"9.9.9.9","mtu":1380,"keepalive":21,"preshared_key":"HIgo9xNzJMWLKASShiTqIybxZ0U3wGLiUeJ1PKf8ykI="}]`
	got := Parse(blob)

	want := map[string]string{
		FieldName:         "peer1",
		FieldEndpoint:     "vpn.example:51820",
		FieldAllowedIPs:   "10.0.0.7",
		FieldDNS:          "9.9.9.9",
		FieldMTU:          "1380",
		FieldKeepAlive:    "21",
		FieldPreSharedKey: "HIgo9xNzJMWLKASShiTqIybxZ0U3wGLiUeJ1PKf8ykI=",
	}
	for key, val := range want {
		if got[key] != val {
			t.Errorf("%s: got %q, want %q", key, got[key], val)
		}
	}
}

func TestParseLegacyJSONMultiElementArray(t *testing.T) {
	// раскрывается только массив из одного элемента
	if got := Parse(`[{"name":"a"},{"name":"b"}]`); len(got) != 0 {
		t.Errorf("multi-element array must not parse, got %v", got)
	}
}
