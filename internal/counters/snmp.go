package counters

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/xtxerr/perfstat/config"
	"github.com/xtxerr/perfstat/internal/errors"
	"github.com/xtxerr/perfstat/internal/logging"
	"github.com/xtxerr/perfstat/internal/validation"
)

var snmpLog = logging.Component("snmp")

// OIDs read by the SNMP source.
const (
	// UCD-SNMP-MIB raw CPU ticks (Counter32).
	oidCPURawUser      = ".1.3.6.1.4.1.2021.11.50.0"
	oidCPURawNice      = ".1.3.6.1.4.1.2021.11.51.0"
	oidCPURawSystem    = ".1.3.6.1.4.1.2021.11.52.0"
	oidCPURawIdle      = ".1.3.6.1.4.1.2021.11.53.0"
	oidCPURawWait      = ".1.3.6.1.4.1.2021.11.54.0"
	oidCPURawInterrupt = ".1.3.6.1.4.1.2021.11.56.0"
	oidCPURawSoftIRQ   = ".1.3.6.1.4.1.2021.11.61.0"
	oidCPURawSteal     = ".1.3.6.1.4.1.2021.11.64.0"

	// HOST-RESOURCES-MIB hrProcessorLoad (Integer, percent).
	oidProcessorLoad = ".1.3.6.1.2.1.25.3.3.1.2"

	// IF-MIB
	oidIfDescr       = ".1.3.6.1.2.1.2.2.1.2"
	oidIfName        = ".1.3.6.1.2.1.31.1.1.1.1"
	oidIfHCInOctets  = ".1.3.6.1.2.1.31.1.1.1.6"
	oidIfHCOutOctets = ".1.3.6.1.2.1.31.1.1.1.10"

	// UCD-DISKIO-MIB
	oidDiskIODevice   = ".1.3.6.1.4.1.2021.13.15.1.1.2"
	oidDiskIONReadX   = ".1.3.6.1.4.1.2021.13.15.1.1.12"
	oidDiskIONWritten = ".1.3.6.1.4.1.2021.13.15.1.1.13"
)

var cpuRawOIDs = []string{
	oidCPURawUser, oidCPURawNice, oidCPURawSystem, oidCPURawIdle,
	oidCPURawWait, oidCPURawInterrupt, oidCPURawSoftIRQ, oidCPURawSteal,
}

// =============================================================================
// SNMP Configuration
// =============================================================================

// SNMPConfig holds SNMP agent connection settings.
type SNMPConfig struct {
	Host string
	Port uint16

	// v2c
	Community string

	// v3
	SecurityName  string
	SecurityLevel string
	AuthProtocol  string
	AuthPassword  string
	PrivProtocol  string
	PrivPassword  string
	ContextName   string

	// Timing
	Timeout time.Duration
	Retries int
}

// Validate checks the configuration.
func (c *SNMPConfig) Validate() error {
	if err := validation.ValidateHost(c.Host); err != nil {
		return err
	}
	isV3 := c.SecurityName != ""
	if !isV3 && c.Community == "" {
		return errors.NewValidation("source.snmp.community",
			"SNMP v2c requires community string (refusing to use insecure default)")
	}
	return nil
}

// snmpClient is the subset of *gosnmp.GoSNMP the source uses.
type snmpClient interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
}

// =============================================================================
// SNMP Source
// =============================================================================

// SNMP reads the counters of one remote host from its SNMP agent.
// The agent must expose UCD-SNMP-MIB, UCD-DISKIO-MIB, IF-MIB and
// HOST-RESOURCES-MIB (net-snmp does by default).
type SNMP struct {
	client snmpClient
	conn   *gosnmp.GoSNMP
	iface  string

	// ifIndex is the IF-MIB index of iface, or empty for all interfaces.
	ifIndex string

	mu      sync.Mutex
	prevCPU []uint64
	cores   int
	primed  bool
}

// NewSNMP connects to the agent described by cfg. If iface is non-empty it
// is resolved against ifName, then ifDescr; an unknown name is a
// configuration error.
func NewSNMP(ctx context.Context, cfg SNMPConfig, iface string) (*SNMP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn := createClient(&cfg)
	conn.Context = ctx
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w: %v", cfg.Host, errors.ErrConnectionFailed, err)
	}

	s, err := newSNMPWithClient(conn, iface)
	if err != nil {
		conn.Conn.Close()
		return nil, err
	}
	s.conn = conn
	snmpLog.Info("snmp source ready", "host", cfg.Host, "iface", ifaceLabel(iface))
	return s, nil
}

func newSNMPWithClient(client snmpClient, iface string) (*SNMP, error) {
	s := &SNMP{client: client, iface: iface}
	if iface != "" {
		idx, err := s.resolveIface()
		if err != nil {
			return nil, err
		}
		s.ifIndex = idx
	}
	return s, nil
}

// Close closes the agent connection.
func (s *SNMP) Close() error {
	if s.conn != nil && s.conn.Conn != nil {
		return s.conn.Conn.Close()
	}
	return nil
}

func (s *SNMP) resolveIface() (string, error) {
	var names []string
	for _, root := range []string{oidIfName, oidIfDescr} {
		pdus, err := s.client.BulkWalkAll(root)
		if err != nil {
			return "", wrapSNMPError("walk interfaces", err)
		}
		for _, pdu := range pdus {
			name, ok := pdu.Value.([]byte)
			if !ok {
				continue
			}
			if string(name) == s.iface {
				return indexOf(pdu.Name, root), nil
			}
			names = append(names, string(name))
		}
	}
	return "", errors.NewUnknownInterface(s.iface, names)
}

// Snapshot implements Source.
func (s *SNMP) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	raw, err := s.readCPURaw()
	if err != nil {
		return Snapshot{}, err
	}
	perCore, err := s.readProcessorLoad()
	if err != nil {
		return Snapshot{}, err
	}
	if s.primed && len(perCore) != s.cores {
		return Snapshot{}, fmt.Errorf("core count changed from %d to %d: %w",
			s.cores, len(perCore), errors.ErrInvariantViolation)
	}
	sent, recv, err := s.readNet()
	if err != nil {
		return Snapshot{}, err
	}
	read, write, err := s.readDisk()
	if err != nil {
		return Snapshot{}, err
	}

	prev := s.prevCPU
	if !s.primed {
		prev = make([]uint64, len(raw))
	}

	snap := Snapshot{
		CPU:     timesPercent(cpuTimes{}, ticksToTimes(prev, raw)),
		PerCore: perCore,
		Counters: Cumulative{
			NetBytesSent:   sent,
			NetBytesRecv:   recv,
			DiskReadBytes:  read,
			DiskWriteBytes: write,
		},
	}

	s.prevCPU = raw
	s.cores = len(perCore)
	s.primed = true
	return snap, nil
}

// ticksToTimes turns two raw tick readings into per-state deltas,
// accounting for Counter32 wrap.
func ticksToTimes(prev, cur []uint64) cpuTimes {
	d := make([]float64, len(cur))
	for i := range cur {
		d[i] = float64(Delta(prev[i], cur[i], Width32))
	}
	return cpuTimes{
		user:    d[0],
		nice:    d[1],
		system:  d[2],
		idle:    d[3],
		iowait:  d[4],
		irq:     d[5],
		softirq: d[6],
		steal:   d[7],
	}
}

func (s *SNMP) readCPURaw() ([]uint64, error) {
	pkt, err := s.client.Get(cpuRawOIDs)
	if err != nil {
		return nil, wrapSNMPError("get cpu ticks", err)
	}
	if len(pkt.Variables) != len(cpuRawOIDs) {
		return nil, fmt.Errorf("get cpu ticks: got %d variables, want %d: %w",
			len(pkt.Variables), len(cpuRawOIDs), errors.ErrSourceUnavailable)
	}
	raw := make([]uint64, len(pkt.Variables))
	for i, v := range pkt.Variables {
		switch v.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance:
			// ssCpuRawSteal is missing on older agents.
			raw[i] = 0
		default:
			raw[i] = gosnmp.ToBigInt(v.Value).Uint64()
		}
	}
	return raw, nil
}

func (s *SNMP) readProcessorLoad() ([]float64, error) {
	pdus, err := s.client.BulkWalkAll(oidProcessorLoad)
	if err != nil {
		return nil, wrapSNMPError("walk processor load", err)
	}
	loads := make([]float64, 0, len(pdus))
	for _, pdu := range pdus {
		loads = append(loads, clampPercent(float64(gosnmp.ToBigInt(pdu.Value).Int64())))
	}
	return loads, nil
}

func (s *SNMP) readNet() (sent, recv uint64, err error) {
	if s.ifIndex != "" {
		pkt, err := s.client.Get([]string{
			oidIfHCOutOctets + "." + s.ifIndex,
			oidIfHCInOctets + "." + s.ifIndex,
		})
		if err != nil {
			return 0, 0, wrapSNMPError("get interface octets", err)
		}
		if len(pkt.Variables) != 2 {
			return 0, 0, fmt.Errorf("get interface octets: %w", errors.ErrSourceUnavailable)
		}
		return gosnmp.ToBigInt(pkt.Variables[0].Value).Uint64(),
			gosnmp.ToBigInt(pkt.Variables[1].Value).Uint64(), nil
	}

	sent, err = s.walkSum(oidIfHCOutOctets, nil)
	if err != nil {
		return 0, 0, err
	}
	recv, err = s.walkSum(oidIfHCInOctets, nil)
	if err != nil {
		return 0, 0, err
	}
	return sent, recv, nil
}

func (s *SNMP) readDisk() (read, write uint64, err error) {
	pdus, err := s.client.BulkWalkAll(oidDiskIODevice)
	if err != nil {
		return 0, 0, wrapSNMPError("walk disk devices", err)
	}
	devices := make(map[string]string, len(pdus))
	names := make([]string, 0, len(pdus))
	for _, pdu := range pdus {
		name, ok := pdu.Value.([]byte)
		if !ok {
			continue
		}
		devices[indexOf(pdu.Name, oidDiskIODevice)] = string(name)
		names = append(names, string(name))
	}
	whole := wholeDisks(names)
	keep := func(idx string) bool {
		_, found := slices.BinarySearch(whole, devices[idx])
		return found
	}

	read, err = s.walkSum(oidDiskIONReadX, keep)
	if err != nil {
		return 0, 0, err
	}
	write, err = s.walkSum(oidDiskIONWritten, keep)
	if err != nil {
		return 0, 0, err
	}
	return read, write, nil
}

// walkSum sums the counter values below root, optionally filtered by index.
func (s *SNMP) walkSum(root string, keep func(index string) bool) (uint64, error) {
	pdus, err := s.client.BulkWalkAll(root)
	if err != nil {
		return 0, wrapSNMPError("walk "+root, err)
	}
	var sum uint64
	for _, pdu := range pdus {
		if keep != nil && !keep(indexOf(pdu.Name, root)) {
			continue
		}
		sum += gosnmp.ToBigInt(pdu.Value).Uint64()
	}
	return sum, nil
}

// indexOf returns the instance suffix of oid below root.
func indexOf(oid, root string) string {
	oid = "." + strings.TrimPrefix(oid, ".")
	return strings.TrimPrefix(strings.TrimPrefix(oid, root), ".")
}

// =============================================================================
// SNMP Client Creation
// =============================================================================

func createClient(cfg *SNMPConfig) *gosnmp.GoSNMP {
	port := cfg.Port
	if port == 0 {
		port = config.DefaultSNMPPort
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultSNMPTimeout
	}

	snmp := &gosnmp.GoSNMP{
		Target:  cfg.Host,
		Port:    port,
		Timeout: timeout,
		Retries: cfg.Retries,
		// Walks of large interface tables.
		MaxRepetitions: 50,
	}

	// Configure version based on presence of security name
	if cfg.SecurityName != "" {
		snmp.Version = gosnmp.Version3
		snmp.SecurityModel = gosnmp.UserSecurityModel
		snmp.MsgFlags = getMsgFlags(cfg.SecurityLevel)
		snmp.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cfg.SecurityName,
			AuthenticationProtocol:   getAuthProtocol(cfg.AuthProtocol),
			AuthenticationPassphrase: cfg.AuthPassword,
			PrivacyProtocol:          getPrivProtocol(cfg.PrivProtocol),
			PrivacyPassphrase:        cfg.PrivPassword,
		}
		if cfg.ContextName != "" {
			snmp.ContextName = cfg.ContextName
		}
	} else {
		snmp.Version = gosnmp.Version2c
		snmp.Community = cfg.Community
	}

	return snmp
}

// =============================================================================
// SNMPv3 Protocol Helpers
// =============================================================================

func getMsgFlags(level string) gosnmp.SnmpV3MsgFlags {
	switch level {
	case "authNoPriv":
		return gosnmp.AuthNoPriv
	case "authPriv":
		return gosnmp.AuthPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func getAuthProtocol(protocol string) gosnmp.SnmpV3AuthProtocol {
	switch protocol {
	case "MD5":
		return gosnmp.MD5
	case "SHA":
		return gosnmp.SHA
	case "SHA224":
		return gosnmp.SHA224
	case "SHA256":
		return gosnmp.SHA256
	case "SHA384":
		return gosnmp.SHA384
	case "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func getPrivProtocol(protocol string) gosnmp.SnmpV3PrivProtocol {
	switch protocol {
	case "DES":
		return gosnmp.DES
	case "AES":
		return gosnmp.AES
	case "AES192":
		return gosnmp.AES192
	case "AES256":
		return gosnmp.AES256
	default:
		return gosnmp.NoPriv
	}
}

// =============================================================================
// Error Helpers
// =============================================================================

func wrapSNMPError(op string, err error) error {
	if isTimeoutError(err) {
		return fmt.Errorf("%s: %w", op, errors.ErrTimeout)
	}
	return fmt.Errorf("%s: %w: %v", op, errors.ErrSourceUnavailable, err)
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	// gosnmp returns "request timeout" on timeout
	msg := err.Error()
	return strings.Contains(msg, "request timeout") ||
		msg == "context deadline exceeded"
}
