package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/models"
)

// snmpProducer polls a set of hosts for a set of OIDs via SNMPv2c GET.
// No SNMP client exists anywhere in the retrieval pack (the original relies
// on Python's puresnmp), so this speaks the minimal SNMPv2c GET-request wire
// format directly over UDP with a small hand-rolled BER encoder/decoder
// covering the subset of ASN.1 SNMP actually uses (INTEGER, OCTET STRING,
// NULL, OID, SEQUENCE, GetRequest-PDU). Grounded on
// original_source/app/streams/producers/snmp.py's host/oid/interval shape.
type snmpProducer struct {
	hosts    []snmpHost
	oids     []string
	interval time.Duration
	timeout  time.Duration
	sourceID string
	broker   *broker.Broker
}

type snmpHost struct {
	host      string
	community string
	port      int
}

func newSNMP(source models.DataSource, b *broker.Broker) (Producer, error) {
	cfg := source.Config
	rawHosts := asMapSlice(cfg["hosts"])
	hosts := make([]snmpHost, 0, len(rawHosts))
	for _, h := range rawHosts {
		host := stringOr(h["host"], "")
		if host == "" {
			continue
		}
		hosts = append(hosts, snmpHost{
			host:      host,
			community: stringOr(h["community"], "public"),
			port:      int(floatOr(h["port"], 161)),
		})
	}

	return &snmpProducer{
		hosts:    hosts,
		oids:     stringSlice(cfg["oids"]),
		interval: time.Duration(floatOr(cfg["poll_interval_sec"], 30)) * time.Second,
		timeout:  time.Duration(floatOr(cfg["timeout_sec"], 3)) * time.Second,
		sourceID: source.ID,
		broker:   b,
	}, nil
}

func (s *snmpProducer) Run(ctx context.Context) error {
	if len(s.hosts) == 0 || len(s.oids) == 0 {
		slog.Info("snmp: no hosts or oids configured; idle")
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, len(s.hosts))
	for _, h := range s.hosts {
		go func(h snmpHost) { done <- s.pollHost(ctx, h) }(h)
	}
	for range s.hosts {
		if err := <-done; err != nil && ctx.Err() == nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *snmpProducer) pollHost(ctx context.Context, h snmpHost) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for _, oid := range s.oids {
			value, err := snmpGet(h.host, h.port, h.community, oid, s.timeout)
			if err != nil {
				slog.Info("snmp: poll error", "host", h.host, "oid", oid, "error", err)
				continue
			}
			s.emit(ctx, h, oid, value)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

func (s *snmpProducer) emit(ctx context.Context, h snmpHost, oid, value string) {
	payload := map[string]any{
		"host":      h.host,
		"port":      h.port,
		"community": "***",
		"oid":       oid,
		"value":     value,
	}
	line, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = AppendLog(ctx, s.broker, "snmp:"+h.host, string(line), s.sourceID)
}

// --- minimal SNMPv2c GET wire format ---

func snmpGet(host string, port int, community, oid string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("udp", fmt.Sprintf("%s:%d", host, port), timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	reqID := int(time.Now().UnixNano() % 0x7fffffff)
	packet := encodeGetRequest(community, oid, reqID)
	if _, err := conn.Write(packet); err != nil {
		return "", err
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	return decodeGetResponse(buf[:n])
}

func berLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var bs []byte
	for n > 0 {
		bs = append([]byte{byte(n & 0xff)}, bs...)
		n >>= 8
	}
	return append([]byte{0x80 | byte(len(bs))}, bs...)
}

func berTLV(tag byte, value []byte) []byte {
	out := []byte{tag}
	out = append(out, berLength(len(value))...)
	return append(out, value...)
}

func berInteger(n int) []byte {
	if n == 0 {
		return berTLV(0x02, []byte{0})
	}
	var bs []byte
	v := n
	neg := n < 0
	for v != 0 && v != -1 {
		bs = append([]byte{byte(v & 0xff)}, bs...)
		v >>= 8
	}
	if (len(bs) > 0 && bs[0]&0x80 != 0 && !neg) || len(bs) == 0 {
		bs = append([]byte{0}, bs...)
	}
	return berTLV(0x02, bs)
}

func berOID(oid string) []byte {
	parts := strings.Split(strings.TrimPrefix(oid, "."), ".")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	if len(nums) < 2 {
		return berTLV(0x06, []byte{})
	}
	var out []byte
	out = append(out, byte(nums[0]*40+nums[1]))
	for _, n := range nums[2:] {
		out = append(out, encodeBase128(n)...)
	}
	return berTLV(0x06, out)
}

func encodeBase128(n int) []byte {
	if n == 0 {
		return []byte{0}
	}
	var bs []byte
	for n > 0 {
		bs = append([]byte{byte(n & 0x7f)}, bs...)
		n >>= 7
	}
	for i := 0; i < len(bs)-1; i++ {
		bs[i] |= 0x80
	}
	return bs
}

func encodeGetRequest(community, oid string, reqID int) []byte {
	varBind := berTLV(0x30, append(berOID(oid), berTLV(0x05, nil)...))
	varBindList := berTLV(0x30, varBind)

	pdu := append(berInteger(reqID), berInteger(0)...) // request-id, error-status
	pdu = append(pdu, berInteger(0)...)                 // error-index
	pdu = append(pdu, varBindList...)
	getRequestPDU := berTLV(0xA0, pdu)

	body := append(berInteger(1), berTLV(0x04, []byte(community))...) // version=1 (SNMPv2c)
	body = append(body, getRequestPDU...)

	return berTLV(0x30, body)
}

// decodeGetResponse walks just far enough into a GetResponse-PDU to pull the
// first varbind's value out as a best-effort string. It does not attempt a
// full ASN.1 parse.
func decodeGetResponse(data []byte) (string, error) {
	idx := 0
	_, _, idx, err := readTLV(data, idx) // outer SEQUENCE
	if err != nil {
		return "", err
	}
	_, _, idx, err = readTLV(data, idx) // version
	if err != nil {
		return "", err
	}
	_, _, idx, err = readTLV(data, idx) // community
	if err != nil {
		return "", err
	}
	_, pduVal, _, err := readTLV(data, idx) // response PDU
	if err != nil {
		return "", err
	}

	p := 0
	_, _, p, err = readTLV(pduVal, p) // request-id
	if err != nil {
		return "", err
	}
	_, _, p, err = readTLV(pduVal, p) // error-status
	if err != nil {
		return "", err
	}
	_, _, p, err = readTLV(pduVal, p) // error-index
	if err != nil {
		return "", err
	}
	_, vbListVal, _, err := readTLV(pduVal, p) // varbind list
	if err != nil {
		return "", err
	}

	_, vbVal, _, err := readTLV(vbListVal, 0) // first varbind SEQUENCE
	if err != nil {
		return "", err
	}
	_, _, p2, err := readTLV(vbVal, 0) // oid
	if err != nil {
		return "", err
	}
	tag, val, _, err := readTLV(vbVal, p2) // value
	if err != nil {
		return "", err
	}
	return formatSNMPValue(tag, val), nil
}

func readTLV(data []byte, offset int) (tag byte, value []byte, next int, err error) {
	if offset >= len(data) {
		return 0, nil, offset, fmt.Errorf("snmp: truncated packet")
	}
	tag = data[offset]
	offset++
	if offset >= len(data) {
		return 0, nil, offset, fmt.Errorf("snmp: truncated length")
	}
	length := int(data[offset])
	offset++
	if length&0x80 != 0 {
		numBytes := length & 0x7f
		length = 0
		for i := 0; i < numBytes; i++ {
			if offset >= len(data) {
				return 0, nil, offset, fmt.Errorf("snmp: truncated long length")
			}
			length = length<<8 | int(data[offset])
			offset++
		}
	}
	if offset+length > len(data) {
		return 0, nil, offset, fmt.Errorf("snmp: value exceeds packet bounds")
	}
	return tag, data[offset : offset+length], offset + length, nil
}

func formatSNMPValue(tag byte, val []byte) string {
	switch tag {
	case 0x02: // INTEGER
		n := 0
		for _, b := range val {
			n = n<<8 | int(b)
		}
		return strconv.Itoa(n)
	case 0x04: // OCTET STRING
		return string(val)
	case 0x06: // OID
		return "oid"
	default:
		return fmt.Sprintf("0x%x", val)
	}
}
