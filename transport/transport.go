// Package transport bridges local announcements to the LAN and back over
// multicast DNS, with a JSON cache file for fast cold starts.
package transport

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vinayprograms/meshkit/announce"
)

// Defaults for the mDNS transport.
const (
	// DefaultServiceType is the well-known mDNS service type every mesh
	// process announces under and browses for.
	DefaultServiceType = "_meshkit._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."

	// DefaultInterval between broadcast cycles.
	DefaultInterval = 5 * time.Second

	// MaxTXTValue caps each TXT value we put on the wire. mDNS TXT records
	// hold a few hundred bytes at most, so the broadcast carries a
	// truncated capability summary; the full capability and example text
	// exists only for announcements local to a process. This is a known
	// size/fidelity limit of the wire format, not a transparent RPC
	// payload.
	MaxTXTValue = 200
)

// encodeTXT serializes an announcement into mDNS TXT key=value strings.
// The verbatim name travels as its own key because the mDNS instance label
// is DNS-sanitized and cannot round-trip names containing spaces.
func encodeTXT(a announce.Announcement) []string {
	txt := []string{
		"name=" + a.Name,
		"origin=" + a.Origin,
		"caps=" + a.Summary(MaxTXTValue),
	}
	if len(a.Examples) > 0 {
		txt = append(txt, "examples="+a.ExampleSummary(MaxTXTValue))
	}
	return txt
}

// decodeTXT rebuilds the broadcastable part of an announcement from TXT
// strings. The fallback name is used only when the broadcast carries no
// name= key (a foreign announcer). Capability and example text comes back
// as the truncated summary split on "; ". Peers only ever see the
// wire-capped form.
func decodeTXT(fallbackName string, txt []string) announce.Announcement {
	a := announce.Announcement{Name: fallbackName}
	for _, kv := range txt {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case "name":
			if value != "" {
				a.Name = value
			}
		case "origin":
			a.Origin = value
		case "caps":
			a.Capabilities = splitSummary(value)
		case "examples":
			a.Examples = splitSummary(value)
		}
	}
	return a
}

// splitSummary undoes Summary's join. Empty input yields nil.
func splitSummary(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "; ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// instanceName builds the unique mDNS instance label for an announcement.
// mDNS instance names collide LAN-wide, so the origin suffix keeps two
// processes announcing the same service name apart.
func instanceName(a announce.Announcement) string {
	origin := a.Origin
	if len(origin) > 8 {
		origin = origin[:8]
	}
	if origin == "" {
		return sanitizeLabel(a.Name)
	}
	return fmt.Sprintf("%s-%s", sanitizeLabel(a.Name), origin)
}

// parseInstanceName strips the origin suffix added by instanceName. It is
// a best-effort fallback for broadcasts without a name= TXT key; the
// sanitized label cannot recover the verbatim name, and a name that
// naturally ends in eight hex-ish characters loses that tail here.
func parseInstanceName(instance string) string {
	if i := strings.LastIndex(instance, "-"); i > 0 {
		suffix := instance[i+1:]
		if len(suffix) == 8 && isHexish(suffix) {
			return instance[:i]
		}
	}
	return instance
}

// sanitizeLabel makes a service name safe as a DNS label.
func sanitizeLabel(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '.':
			b.WriteByte('-')
		case r == '-':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "service"
	}
	return b.String()
}

func isHexish(s string) bool {
	for _, r := range s {
		ok := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		if !ok {
			return false
		}
	}
	return true
}

// portString is a small helper for log fields.
func portString(port int) string {
	return strconv.Itoa(port)
}
