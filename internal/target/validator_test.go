package target

import (
	"errors"
	"testing"
)

func TestValidatePolicy(t *testing.T) {
	cases := []struct {
		raw string
		err error
	}{
		{"https://example.com/trackers.txt", nil},
		{"http://cf.trackerslist.example/all.txt", nil},
		{"http://172.32.0.1/list", nil},  // just above the /12 block
		{"http://172.15.0.1/list", nil},  // just below the /12 block
		{"http://127.0.0.1/x", ErrPrivateNetwork},
		{"http://10.0.0.5/x", ErrPrivateNetwork},
		{"http://192.168.1.1/x", ErrPrivateNetwork},
		{"http://172.16.0.1/x", ErrPrivateNetwork},
		{"http://172.31.255.255/x", ErrPrivateNetwork},
		{"http://localhost:8080/x", ErrPrivateNetwork},
		{"http://foo.local/x", ErrPrivateNetwork},
		{"http://[::1]/x", ErrPrivateNetwork},
		{"http://169.254.10.1/x", ErrPrivateNetwork},
		{"http://0.0.0.0/x", ErrPrivateNetwork},
		{"ftp://example.com/x", ErrInvalidProtocol},
		{"udp://tracker.example:6969/announce", ErrInvalidProtocol},
		{"not-a-url", ErrInvalidFormat},
		{"", ErrInvalidFormat},
		{"http://", ErrInvalidFormat},
	}
	for _, c := range cases {
		_, err := Validate(c.raw)
		if !errors.Is(err, c.err) {
			t.Errorf("Validate(%q) = %v, want %v", c.raw, err, c.err)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		host string
		want Class
	}{
		{"8.8.8.8", Public},
		{"2001:4860:4860::8888", Public},
		{"tracker.example.org", Public},
		{"ExAmPle.COM", Public}, // case-folded before checks
		{"127.0.0.1", Loopback},
		{"127.8.8.8", Loopback}, // whole /8, not just .1
		{"::1", Loopback},
		{"[::1]", Loopback},
		{"localhost", Loopback},
		{"LOCALHOST", Loopback},
		{"169.254.1.1", LinkLocal},
		{"fe80::1", LinkLocal},
		{"10.1.2.3", PrivateRange},
		{"192.168.0.1", PrivateRange},
		{"172.16.0.1", PrivateRange},
		{"172.31.255.255", PrivateRange},
		{"fc00::1", PrivateRange},
		{"printer.local", PrivateRange},
		{"0.0.0.0", Unspecified},
		{"0.1.2.3", Unspecified},
		{"::", Unspecified},
		{"", Unresolvable},
		{"172.20.1.1", PrivateRange},
		{"172.32.0.1", Public},
	}
	for _, c := range cases {
		if got := Classify(c.host); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.host, got, c.want)
		}
	}
}

func TestValidateNormalizesScheme(t *testing.T) {
	if _, err := Validate("HTTPS://Example.COM/list"); err != nil {
		t.Fatalf("uppercase scheme should validate, got %v", err)
	}
}
