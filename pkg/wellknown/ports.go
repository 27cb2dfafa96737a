// Package wellknown maps between service names and their registered
// ports, for resolving policy service names and labeling observed flows.
package wellknown

import (
	"fmt"
	"strings"
)

// Entry is one protocol/port binding of a named service.
type Entry struct {
	Protocol string // "tcp" or "udp"
	Port     int
}

// The registry covers the services that show up in firewall policies and
// traffic logs in practice, not the full IANA table.
var serviceRegistry = map[string][]Entry{
	"FTP":        {{Protocol: "tcp", Port: 21}},
	"SSH":        {{Protocol: "tcp", Port: 22}},
	"TELNET":     {{Protocol: "tcp", Port: 23}},
	"SMTP":       {{Protocol: "tcp", Port: 25}},
	"DNS":        {{Protocol: "tcp", Port: 53}, {Protocol: "udp", Port: 53}},
	"DHCP":       {{Protocol: "udp", Port: 67}, {Protocol: "udp", Port: 68}},
	"HTTP":       {{Protocol: "tcp", Port: 80}},
	"KERBEROS":   {{Protocol: "tcp", Port: 88}, {Protocol: "udp", Port: 88}},
	"POP3":       {{Protocol: "tcp", Port: 110}},
	"NTP":        {{Protocol: "udp", Port: 123}},
	"IMAP":       {{Protocol: "tcp", Port: 143}},
	"SNMP":       {{Protocol: "udp", Port: 161}},
	"LDAP":       {{Protocol: "tcp", Port: 389}, {Protocol: "udp", Port: 389}},
	"HTTPS":      {{Protocol: "tcp", Port: 443}},
	"SMB":        {{Protocol: "tcp", Port: 445}},
	"SYSLOG":     {{Protocol: "udp", Port: 514}},
	"SMTPS":      {{Protocol: "tcp", Port: 465}},
	"IMAPS":      {{Protocol: "tcp", Port: 993}},
	"POP3S":      {{Protocol: "tcp", Port: 995}},
	"LDAPS":      {{Protocol: "tcp", Port: 636}},
	"MYSQL":      {{Protocol: "tcp", Port: 3306}},
	"RDP":        {{Protocol: "tcp", Port: 3389}},
	"POSTGRESQL": {{Protocol: "tcp", Port: 5432}},
	"VNC":        {{Protocol: "tcp", Port: 5900}},
	"REDIS":      {{Protocol: "tcp", Port: 6379}},
	"HTTP-ALT":   {{Protocol: "tcp", Port: 8080}},
	"RADIUS":     {{Protocol: "udp", Port: 1812}, {Protocol: "udp", Port: 1813}},
	"IKE":        {{Protocol: "udp", Port: 500}},
	"L2TP":       {{Protocol: "udp", Port: 1701}},
	"PPTP":       {{Protocol: "tcp", Port: 1723}},
	"TFTP":       {{Protocol: "udp", Port: 69}},
	"NFS":        {{Protocol: "tcp", Port: 2049}, {Protocol: "udp", Port: 2049}},
	"WINRM":      {{Protocol: "tcp", Port: 5985}},
}

// portIndex is the reverse lookup, proto/port -> canonical name.
var portIndex = func() map[string]string {
	idx := make(map[string]string)
	for name, entries := range serviceRegistry {
		for _, e := range entries {
			key := portKey(e.Protocol, e.Port)
			if _, taken := idx[key]; !taken {
				idx[key] = name
			}
		}
	}
	return idx
}()

func portKey(protocol string, port int) string {
	return fmt.Sprintf("%s/%d", strings.ToLower(protocol), port)
}

// Services returns the port bindings of a well-known service name.
func Services(name string) ([]Entry, bool) {
	entries, ok := serviceRegistry[strings.ToUpper(strings.TrimSpace(name))]
	return entries, ok
}

// Name returns the canonical service name for a protocol and port, "" when
// the port is not registered.
func Name(protocol string, port int) string {
	return portIndex[portKey(protocol, port)]
}

// FlowLabel renders a human-readable label for an observed flow:
// the registered service name when the port is well known, otherwise
// "TCP/8443"-style.
func FlowLabel(protocol string, port int) string {
	if name := Name(protocol, port); name != "" {
		return name
	}
	return fmt.Sprintf("%s/%d", strings.ToUpper(protocol), port)
}
