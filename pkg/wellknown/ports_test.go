package wellknown

import "testing"

func TestServicesLookupIsCaseInsensitive(t *testing.T) {
	entries, ok := Services("dns")
	if !ok {
		t.Fatal("expected dns in the registry")
	}
	if !containsPort(entries, 53, "tcp") || !containsPort(entries, 53, "udp") {
		t.Fatalf("expected DNS on 53/tcp and 53/udp, got %#v", entries)
	}
}

func TestServicesUnknown(t *testing.T) {
	if _, ok := Services("definitely-not-a-service"); ok {
		t.Fatal("expected unknown service to return ok=false")
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		protocol string
		port     int
		want     string
	}{
		{"tcp", 443, "HTTPS"},
		{"TCP", 22, "SSH"},
		{"udp", 123, "NTP"},
		{"tcp", 48231, ""},
	}
	for _, tt := range tests {
		if got := Name(tt.protocol, tt.port); got != tt.want {
			t.Errorf("Name(%q, %d) = %q, want %q", tt.protocol, tt.port, got, tt.want)
		}
	}
}

func TestFlowLabel(t *testing.T) {
	if got := FlowLabel("tcp", 443); got != "HTTPS" {
		t.Errorf("FlowLabel(tcp, 443) = %q, want HTTPS", got)
	}
	if got := FlowLabel("tcp", 8443); got != "TCP/8443" {
		t.Errorf("FlowLabel(tcp, 8443) = %q, want TCP/8443", got)
	}
}

func containsPort(entries []Entry, port int, protocol string) bool {
	for _, entry := range entries {
		if entry.Port == port && entry.Protocol == protocol {
			return true
		}
	}
	return false
}
