package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeListenerTXT creates the TXT records for a listener.
func EncodeListenerTXT(l Listener) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyVersion: ProtocolVersion,
		TXTKeyMode:    l.Mode,
	}
	if l.TLS {
		txt[TXTKeyTLS] = "1"
	}
	return txt
}

// DecodeListenerTXT parses listener TXT records into svc.
func DecodeListenerTXT(txt TXTRecordMap, svc *Service) error {
	mode, ok := txt[TXTKeyMode]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyMode)
	}
	if _, err := ServiceType(mode); err != nil {
		return fmt.Errorf("%w: %q", err, mode)
	}
	svc.Mode = mode
	svc.Version = txt[TXTKeyVersion]
	svc.TLS = txt[TXTKeyTLS] == "1"
	return nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// InstanceName builds a DNS-safe instance name from name and mode.
func InstanceName(name, mode string) string {
	instance := name + "-" + mode
	if name == "" {
		instance = "rmon-" + mode
	}
	if len(instance) > MaxInstanceNameLen {
		instance = instance[:MaxInstanceNameLen]
	}
	return instance
}
