package udplink

import (
	"net"
	"testing"
)

func TestAddrMappingRoundtrip(t *testing.T) {
	udp := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 10), Port: 17998}

	a, err := FromUDPAddr(udp)
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != "c0:a8:01:0a:46:4e" {
		t.Fatalf("unexpected packed address: %s", a)
	}

	back := ToUDPAddr(a)
	if !back.IP.Equal(udp.IP) {
		t.Fatalf("IP mismatch: %s != %s", back.IP, udp.IP)
	}
	if back.Port != udp.Port {
		t.Fatalf("port mismatch: %d != %d", back.Port, udp.Port)
	}
}

func TestAddrMappingHighPort(t *testing.T) {
	udp := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 65535}

	a, err := FromUDPAddr(udp)
	if err != nil {
		t.Fatal(err)
	}
	if got := ToUDPAddr(a).Port; got != 65535 {
		t.Fatalf("port mismatch: %d", got)
	}
}

func TestAddrMappingRejectsIPv6(t *testing.T) {
	udp := &net.UDPAddr{IP: net.ParseIP("fe80::1"), Port: 1}
	if _, err := FromUDPAddr(udp); err == nil {
		t.Fatal("expected error for IPv6 source")
	}
}

func TestAddrMappingDistinctPorts(t *testing.T) {
	// Two nodes on one host differ only by port; their link addresses must
	// not collide.
	a1, err := FromUDPAddr(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1000})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := FromUDPAddr(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1001})
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a2 {
		t.Fatal("distinct ports mapped to the same link address")
	}
}

func TestNewRejectsWildcardListen(t *testing.T) {
	_, err := New(&Config{
		GroupAddress:  "239.255.42.99:17999",
		ListenAddress: "0.0.0.0:0",
	})
	if err == nil {
		t.Fatal("expected wildcard listen address to be rejected")
	}
}
