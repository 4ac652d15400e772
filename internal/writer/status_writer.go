// internal/writer/status_writer.go
package writer

import (
	"encoding/json"
	"net"
	"strings"
)

// Announcement is published once per accepted MQTT connection.
type Announcement struct {
	IP  string `json:"ip"`
	MAC string `json:"MAC"`
}

// NIC is one interface address candidate.
type NIC struct {
	IP  net.IP
	MAC net.HardwareAddr
}

type localIPer interface {
	LocalIP() net.IP
}

// Announcer builds the on-connect announcement from the address the
// broker connection is using.
type Announcer struct {
	link localIPer
	nics func() ([]NIC, error)
}

func NewAnnouncer(link localIPer) *Announcer {
	return &Announcer{link: link, nics: systemNICs}
}

// Announce returns {"ip":..,"MAC":..} for the interface owning the
// connection's local address, or the first non-loopback IPv4 interface
// when there is no connection. Unknown parts are reported as "-".
func (a *Announcer) Announce() []byte {
	out := Announcement{IP: "-", MAC: "-"}

	var local net.IP
	if a.link != nil {
		local = a.link.LocalIP()
	}
	if local != nil {
		out.IP = local.String()
	}

	nics, err := a.nics()
	if err == nil {
		if n, ok := pickNIC(nics, local); ok {
			out.IP = n.IP.String()
			if len(n.MAC) > 0 {
				out.MAC = strings.ToUpper(n.MAC.String())
			}
		}
	}

	b, _ := json.Marshal(out)
	return b
}

func pickNIC(nics []NIC, local net.IP) (NIC, bool) {
	if local != nil {
		for _, n := range nics {
			if n.IP.Equal(local) {
				return n, true
			}
		}
		return NIC{}, false
	}
	for _, n := range nics {
		if n.IP.IsLoopback() || len(n.MAC) == 0 {
			continue
		}
		if n.IP.To4() != nil {
			return n, true
		}
	}
	return NIC{}, false
}

func systemNICs() ([]NIC, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []NIC
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok {
				out = append(out, NIC{IP: ipn.IP, MAC: ifc.HardwareAddr})
			}
		}
	}
	return out, nil
}
