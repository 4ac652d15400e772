// internal/writer/status_writer_test.go
package writer

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedLink struct{ ip net.IP }

func (f fixedLink) LocalIP() net.IP { return f.ip }

func mac(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	hw, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("parse mac: %v", err)
	}
	return hw
}

func TestAnnounce_InterfaceOfConnection(t *testing.T) {
	a := &Announcer{
		link: fixedLink{ip: net.ParseIP("192.168.1.50")},
		nics: func() ([]NIC, error) {
			return []NIC{
				{IP: net.ParseIP("127.0.0.1")},
				{IP: net.ParseIP("10.0.0.7"), MAC: mac(t, "02:00:00:00:00:01")},
				{IP: net.ParseIP("192.168.1.50"), MAC: mac(t, "24:6f:28:aa:bb:cc")},
			}, nil
		},
	}

	assert.JSONEq(t, `{"ip":"192.168.1.50","MAC":"24:6F:28:AA:BB:CC"}`, string(a.Announce()))
}

func TestAnnounce_NoConnectionUsesFirstNIC(t *testing.T) {
	a := &Announcer{
		nics: func() ([]NIC, error) {
			return []NIC{
				{IP: net.ParseIP("127.0.0.1"), MAC: mac(t, "00:00:00:00:00:01")},
				{IP: net.ParseIP("fe80::1"), MAC: mac(t, "02:00:00:00:00:02")},
				{IP: net.ParseIP("10.0.0.7"), MAC: mac(t, "02:00:00:00:00:03")},
			}, nil
		},
	}

	assert.JSONEq(t, `{"ip":"10.0.0.7","MAC":"02:00:00:00:00:03"}`, string(a.Announce()))
}

func TestAnnounce_Unknown(t *testing.T) {
	a := &Announcer{
		link: fixedLink{ip: net.ParseIP("172.16.0.9")},
		nics: func() ([]NIC, error) { return nil, errors.New("no interfaces") },
	}
	assert.JSONEq(t, `{"ip":"172.16.0.9","MAC":"-"}`, string(a.Announce()))

	a = &Announcer{nics: func() ([]NIC, error) { return nil, nil }}
	assert.JSONEq(t, `{"ip":"-","MAC":"-"}`, string(a.Announce()))
}

func TestAnnounce_FitsOnePacket(t *testing.T) {
	a := NewAnnouncer(fixedLink{})
	assert.Less(t, len(a.Announce())+len(Topic("modbus2mqtt"))+2, 128)
}
