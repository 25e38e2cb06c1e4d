// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCertData = "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

// tlsaAnswer builds a TLSA answer for the given owner name.
func tlsaAnswer(name string, usage, selector, matchingType uint8, data string) *dns.TLSA {
	return &dns.TLSA{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeTLSA,
			Class:  dns.ClassINET,
			Ttl:    300,
		},
		Usage:        usage,
		Selector:     selector,
		MatchingType: matchingType,
		Certificate:  data,
	}
}

// tlsaHandler answers every TLSA question with the given records and
// rcode. The AD flag in responses is controlled by setAD.
func tlsaHandler(t *testing.T, rcode int, setAD bool, records ...*dns.TLSA) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, rcode)
		m.AuthenticatedData = setAD

		if rcode == dns.RcodeSuccess {
			for _, q := range r.Question {
				if q.Qtype != dns.TypeTLSA {
					continue
				}
				for _, rec := range records {
					rr := tlsaAnswer(q.Name, rec.Usage, rec.Selector, rec.MatchingType, rec.Certificate)
					m.Answer = append(m.Answer, rr)
				}
			}
		}
		if err := w.WriteMsg(m); err != nil {
			t.Logf("mock DNS: failed to write response: %v", err)
		}
	}
}

// startMockDNS starts an in-process UDP DNS server on a random localhost
// port and returns its address.
func startMockDNS(t *testing.T, handler dns.Handler) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	serveDNS(t, &dns.Server{PacketConn: pc, Handler: handler})
	return pc.LocalAddr().String()
}

// startMockDNSTCP starts an in-process TCP DNS server on a random localhost
// port and returns its address.
func startMockDNSTCP(t *testing.T, handler dns.Handler) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serveDNS(t, &dns.Server{Listener: listener, Handler: handler})
	return listener.Addr().String()
}

func serveDNS(t *testing.T, server *dns.Server) {
	t.Helper()

	started := make(chan struct{})
	server.NotifyStartedFunc = func() { close(started) }

	go func() {
		_ = server.ActivateAndServe()
	}()

	<-started
	t.Cleanup(func() {
		_ = server.Shutdown()
	})
}

func newTestQuerier(t *testing.T, server string) *DNSQuerier {
	t.Helper()
	q, err := NewDNSQuerier(&ResolverConfig{Server: server, Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)
	return q
}

func dnssecExt() Extensions {
	return Extensions{DNSSECReturnValidationChain: true, ReturnBothV4AndV6: true}
}

func TestStatusNames(t *testing.T) {
	assert.Equal(t, "GOOD", StatusGood.String())
	assert.Equal(t, "NO_NAME", StatusNoName.String())
	assert.Equal(t, "ALL_TIMEOUT", StatusAllTimeout.String())
	assert.Equal(t, "NO_SECURE_ANSWERS", StatusNoSecureAnswers.String())
	assert.Equal(t, "ALL_BOGUS_ANSWERS", StatusAllBogusAnswers.String())
	assert.Equal(t, "UNKNOWN(42)", ResponseStatus(42).String())
	assert.Equal(t, 901, int(StatusNoName))

	assert.Equal(t, "SECURE", DNSSECSecure.String())
	assert.Equal(t, "INSECURE", DNSSECInsecure.String())
	assert.Equal(t, "NOT_PERFORMED", DNSSECNotPerformed.String())
	assert.Equal(t, 400, int(DNSSECSecure))
}

func TestClassifyResponse(t *testing.T) {
	answer := []dns.RR{tlsaAnswer("_443._tcp.example.com.", 3, 1, 1, testCertData)}

	tests := []struct {
		name       string
		rcode      int
		answer     []dns.RR
		ad         bool
		ext        Extensions
		wantStatus ResponseStatus
		wantDNSSEC DNSSECStatus
	}{
		{"secure", dns.RcodeSuccess, answer, true, dnssecExt(), StatusGood, DNSSECSecure},
		{"insecure", dns.RcodeSuccess, answer, false, dnssecExt(), StatusGood, DNSSECInsecure},
		{"not_performed", dns.RcodeSuccess, answer, true, Extensions{}, StatusGood, DNSSECNotPerformed},
		{"nodata", dns.RcodeSuccess, nil, true, dnssecExt(), StatusNoName, 0},
		{"nxdomain", dns.RcodeNameError, nil, false, dnssecExt(), StatusNoName, 0},
		{"servfail_dnssec", dns.RcodeServerFailure, nil, false, dnssecExt(), StatusAllBogusAnswers, 0},
		{"servfail_plain", dns.RcodeServerFailure, nil, false, Extensions{}, StatusServerFailure, 0},
		{"refused", dns.RcodeRefused, nil, false, dnssecExt(), StatusRefused, 0},
		{"notimp", dns.RcodeNotImplemented, nil, false, dnssecExt(), StatusServerFailure, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := new(dns.Msg)
			resp.Rcode = tc.rcode
			resp.Answer = tc.answer
			resp.AuthenticatedData = tc.ad

			res := classifyResponse(resp, tc.ext)
			assert.Equal(t, tc.wantStatus, res.Status)
			if tc.wantStatus != StatusGood {
				assert.Empty(t, res.Replies)
				return
			}
			require.Len(t, res.Replies, 1)
			assert.Equal(t, tc.wantDNSSEC, res.Replies[0].DNSSECStatus)
			assert.Len(t, res.Replies[0].Answer, len(tc.answer))
		})
	}
}

func TestNewDNSQuerier_NilConfig(t *testing.T) {
	_, err := NewDNSQuerier(nil, nil)
	assert.ErrorIs(t, err, ErrResolverConfig)
}

func TestNewDNSQuerier_ServerPortParsing(t *testing.T) {
	tests := []struct {
		name     string
		server   string
		useTLS   bool
		expected string
	}{
		{"plain_no_port", "8.8.8.8", false, "8.8.8.8:53"},
		{"plain_with_port", "8.8.8.8:5353", false, "8.8.8.8:5353"},
		{"plain_ipv6", "2001:4860:4860::8888", false, "[2001:4860:4860::8888]:53"},
		{"tls_no_port", "dns.google", true, "dns.google:853"},
		{"tls_with_port", "dns.google:8853", true, "dns.google:8853"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := NewDNSQuerier(&ResolverConfig{Server: tc.server, UseTLS: tc.useTLS}, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, q.Server())
		})
	}
}

func TestNewDNSQuerier_DoT(t *testing.T) {
	q, err := NewDNSQuerier(&ResolverConfig{
		Server:        "1.1.1.1",
		UseTLS:        true,
		TLSServerName: "cloudflare-dns.com",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tcp-tls", q.client.Net)
	require.NotNil(t, q.client.TLSConfig)
	assert.Equal(t, "cloudflare-dns.com", q.client.TLSConfig.ServerName)
	assert.Nil(t, q.tcpClient)
}

func TestNewDNSQuerier_DefaultTimeout(t *testing.T) {
	q, err := NewDNSQuerier(&ResolverConfig{Server: "127.0.0.1", Timeout: -time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, q.client.Timeout)
}

func TestNewDNSQuerier_ResolvConf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver 192.0.2.53\nnameserver 192.0.2.54\n"), 0o600))

	q, err := NewDNSQuerier(&ResolverConfig{ResolvConf: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.53:53", q.Server())
}

func TestNewDNSQuerier_ResolvConfWithoutNameservers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("search example.com\n"), 0o600))

	_, err := NewDNSQuerier(&ResolverConfig{ResolvConf: path}, nil)
	assert.ErrorIs(t, err, ErrResolverConfig)
}

func TestNewDNSQuerier_ResolvConfMissing(t *testing.T) {
	_, err := NewDNSQuerier(&ResolverConfig{ResolvConf: filepath.Join(t.TempDir(), "missing")}, nil)
	assert.ErrorIs(t, err, ErrResolverConfig)
}

func TestGeneralQuery_Secure(t *testing.T) {
	rec := tlsaAnswer("", 3, 1, 1, testCertData)
	addr := startMockDNS(t, tlsaHandler(t, dns.RcodeSuccess, true, rec))
	q := newTestQuerier(t, addr)

	res, err := q.GeneralQuery(context.Background(), "_443._tcp.example.com", dns.TypeTLSA, dnssecExt())
	require.NoError(t, err)
	assert.Equal(t, StatusGood, res.Status)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, DNSSECSecure, res.Replies[0].DNSSECStatus)
	require.Len(t, res.Replies[0].Answer, 1)

	tlsa, ok := res.Replies[0].Answer[0].(*dns.TLSA)
	require.True(t, ok)
	assert.Equal(t, "_443._tcp.example.com.", tlsa.Hdr.Name)
	assert.Equal(t, testCertData, tlsa.Certificate)
}

func TestGeneralQuery_SetsDNSSECOK(t *testing.T) {
	seen := make(chan bool, 1)
	addr := startMockDNS(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		opt := r.IsEdns0()
		seen <- opt != nil && opt.Do()
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeNameError)
		_ = w.WriteMsg(m)
	}))
	q := newTestQuerier(t, addr)

	res, err := q.GeneralQuery(context.Background(), "_443._tcp.example.com", dns.TypeTLSA, dnssecExt())
	require.NoError(t, err)
	assert.Equal(t, StatusNoName, res.Status)
	assert.True(t, <-seen)
}

func TestGeneralQuery_NXDomain(t *testing.T) {
	addr := startMockDNS(t, tlsaHandler(t, dns.RcodeNameError, false))
	q := newTestQuerier(t, addr)

	res, err := q.GeneralQuery(context.Background(), "_443._tcp.missing.example", dns.TypeTLSA, dnssecExt())
	require.NoError(t, err)
	assert.Equal(t, StatusNoName, res.Status)
}

func TestGeneralQuery_Unreachable(t *testing.T) {
	// Grab a free port and close it so nothing is listening.
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().String()
	require.NoError(t, pc.Close())

	q, err := NewDNSQuerier(&ResolverConfig{Server: addr, Timeout: 200 * time.Millisecond}, nil)
	require.NoError(t, err)

	res, err := q.GeneralQuery(context.Background(), "_443._tcp.example.com", dns.TypeTLSA, dnssecExt())
	require.NoError(t, err)
	assert.Equal(t, StatusAllTimeout, res.Status)
}

func TestGeneralQuery_EmptyName(t *testing.T) {
	q := newTestQuerier(t, "127.0.0.1:53")
	_, err := q.GeneralQuery(context.Background(), "", dns.TypeTLSA, dnssecExt())
	assert.ErrorIs(t, err, ErrInvalidHostname)
}

func TestGeneralQuery_OverTCP(t *testing.T) {
	rec := tlsaAnswer("", 2, 1, 1, testCertData)
	addr := startMockDNSTCP(t, tlsaHandler(t, dns.RcodeSuccess, false, rec))
	q := newTestQuerier(t, addr)
	q.client.Net = "tcp"

	res, err := q.GeneralQuery(context.Background(), "_25._tcp.mail.example.com", dns.TypeTLSA, dnssecExt())
	require.NoError(t, err)
	assert.Equal(t, StatusGood, res.Status)
	assert.Equal(t, DNSSECInsecure, res.Replies[0].DNSSECStatus)
}

func TestGeneralQuery_TruncatedRetriesOverTCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)

	pc, err := net.ListenPacket("udp", "127.0.0.1:"+port)
	if err != nil {
		_ = listener.Close()
		t.Skipf("udp port %s unavailable: %v", port, err)
	}

	truncating := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Truncated = true
		_ = w.WriteMsg(m)
	})
	rec := tlsaAnswer("", 3, 0, 1, testCertData)
	serveDNS(t, &dns.Server{PacketConn: pc, Handler: truncating})
	serveDNS(t, &dns.Server{Listener: listener, Handler: tlsaHandler(t, dns.RcodeSuccess, true, rec)})

	q := newTestQuerier(t, "127.0.0.1:"+port)

	res, err := q.GeneralQuery(context.Background(), "_443._tcp.example.com", dns.TypeTLSA, dnssecExt())
	require.NoError(t, err)
	assert.Equal(t, StatusGood, res.Status)
	require.Len(t, res.Replies, 1)
	assert.Len(t, res.Replies[0].Answer, 1)
}
