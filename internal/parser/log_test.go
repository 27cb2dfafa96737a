package parser

import (
	"testing"
)

const sampleLogLine = `"itime=1767622897","date=""2026-01-05""","time=""14:22:31""","devid=""FG200FT921904709""","devname=""FW-EDGE-01""","vd=""root""","type=""traffic""","subtype=""forward""","level=""notice""","srcip=""10.0.0.15""","srcport=51522","srcintf=""port2""","dstip=""203.0.113.80""","dstport=443","dstintf=""port1""","policyid=12","poluuid=""8e7c47aa-1f2d-51ee-9d00-ffa0e1a8b5c2""","action=""accept""","proto=6","service=""HTTPS""","sentbyte=4820","rcvdbyte=91233","duration=37","sessionid=884213","trandisp=""snat""","appcat=""unscanned"""`

func TestParseLogLine(t *testing.T) {
	entry := ParseLogLine(sampleLogLine)
	if entry == nil {
		t.Fatal("got nil entry")
	}

	want := map[string]string{
		"itime":    "1767622897",
		"date":     "2026-01-05",
		"devid":    "FG200FT921904709",
		"srcip":    "10.0.0.15",
		"srcport":  "51522",
		"policyid": "12",
		"action":   "accept",
		"proto":    "6",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %q, want %q", k, entry[k], v)
		}
	}
}

func TestParseLogLineBlank(t *testing.T) {
	if entry := ParseLogLine("   "); entry != nil {
		t.Errorf("blank line parsed to %v", entry)
	}
	if entry := ParseLogLine("no fields here"); entry != nil {
		t.Errorf("garbage line parsed to %v", entry)
	}
}

func TestParseLogTextSkipsUnparseable(t *testing.T) {
	content := sampleLogLine + "\n\ngarbage line\n" + sampleLogLine + "\n"
	entries := ParseLogText(content)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestNormalizeEntry(t *testing.T) {
	entry := NormalizeEntry(ParseLogLine(sampleLogLine))

	if entry.DevID != "FG200FT921904709" {
		t.Errorf("devid = %q", entry.DevID)
	}
	if entry.VDOM != "root" {
		t.Errorf("vdom = %q", entry.VDOM)
	}
	if entry.Timestamp == nil {
		t.Fatal("timestamp not parsed")
	}
	if got := entry.Timestamp.Format("2006-01-02 15:04:05"); got != "2026-01-05 14:22:31" {
		t.Errorf("timestamp = %q", got)
	}
	if entry.PolicyID == nil || *entry.PolicyID != 12 {
		t.Errorf("policy id = %v", entry.PolicyID)
	}
	if entry.DstPort != 443 || entry.Protocol != 6 {
		t.Errorf("dstport=%d proto=%d", entry.DstPort, entry.Protocol)
	}
	if entry.SentBytes != 4820 || entry.RcvdBytes != 91233 {
		t.Errorf("bytes = %d/%d", entry.SentBytes, entry.RcvdBytes)
	}
	if entry.RawData["service"] != "HTTPS" {
		t.Errorf("raw service = %v", entry.RawData["service"])
	}
}

func TestNormalizeEntrySoftCoercion(t *testing.T) {
	entry := NormalizeEntry(map[string]string{
		"srcport":  "not-a-number",
		"policyid": "also-bad",
		"action":   "deny",
	})
	if entry.SrcPort != 0 {
		t.Errorf("srcport = %d, want 0", entry.SrcPort)
	}
	if entry.PolicyID != nil {
		t.Errorf("policy id = %v, want nil", entry.PolicyID)
	}
	if entry.Action != "deny" {
		t.Errorf("action = %q", entry.Action)
	}
}

func TestDetectDevID(t *testing.T) {
	entries := []map[string]string{
		{"action": "deny"},
		{"devid": "FG100A"},
		{"devid": "FG100B"},
	}
	if got := DetectDevID(entries); got != "FG100A" {
		t.Errorf("DetectDevID = %q, want FG100A", got)
	}

	// Entries beyond the detection window are never inspected.
	var far []map[string]string
	for i := 0; i < deviceDetectWindow; i++ {
		far = append(far, map[string]string{})
	}
	far = append(far, map[string]string{"devid": "FG-LATE"})
	if got := DetectDevID(far); got != "" {
		t.Errorf("DetectDevID = %q, want empty past the window", got)
	}
}

func TestProtocolName(t *testing.T) {
	tests := []struct {
		proto int
		want  string
	}{
		{6, "TCP"},
		{17, "UDP"},
		{1, "ICMP"},
		{999, "PROTO-999"},
	}
	for _, tt := range tests {
		if got := ProtocolName(tt.proto); got != tt.want {
			t.Errorf("ProtocolName(%d) = %q, want %q", tt.proto, got, tt.want)
		}
	}
}

var tbScale = float64(1 << 40)

func TestParseByteCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1.5 GB", 1610612736},
		{"67.93 TB", int64(tbScale * 67.93)},
		{"512 B", 512},
		{"1,500 MB", 1500 << 20},
		{"44.728.514", 44728514},
		{"1024", 1024},
		{"", 0},
		{"junk", 0},
	}
	for _, tt := range tests {
		if got := ParseByteCount(tt.in); got != tt.want {
			t.Errorf("ParseByteCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseHitCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"44.728.514", 44728514},
		{"1,000", 1000},
		{"42", 42},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		if got := ParseHitCount(tt.in); got != tt.want {
			t.Errorf("ParseHitCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
