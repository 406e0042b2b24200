package main

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdguardTeam/adblock/proxy"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/mitm"
)

// proxyCommand runs the filtering MITM proxy.
type proxyCommand struct {
	// ListenAddr is the server listen address.
	ListenAddr string `short:"l" long:"listen" description:"Listen address." default:"0.0.0.0"`

	// TLSCertPath is the path to the root certificate.
	TLSCertPath string `long:"ca-cert" description:"Path to a file with the root certificate." required:"true"`

	// TLSKeyPath is the path to the CA private key.
	TLSKeyPath string `long:"ca-key" description:"Path to a file with the CA private key." required:"true"`

	ProxyUser     string `short:"u" long:"username" description:"Proxy auth username. If specified, proxy authorization is required."`
	ProxyPassword string `short:"a" long:"password" description:"Proxy auth password. If specified, proxy authorization is required."`

	// HTTPSHostname is the server name of the HTTPS proxy.  If set, an HTTPS
	// proxy is started instead of a plain HTTP one.
	HTTPSHostname string `short:"n" long:"https-name" description:"Run an HTTPS proxy with this server name."`

	// ListenPort is the server listen port.
	ListenPort uint16 `short:"p" long:"port" description:"Listen port." default:"8080"`
}

// Execute implements the [goFlags.Commander] interface for *proxyCommand.
func (c *proxyCommand) Execute(_ []string) (err error) {
	l := newLogger()

	e, err := loadEngine(l)
	if err != nil {
		return err
	}

	proxyConf, err := c.proxyConfig()
	if err != nil {
		return errors.WithDeferred(err, e.Close())
	}

	s, err := proxy.NewServer(&proxy.Config{
		Logger:      l.With("service", "proxy"),
		Engine:      e,
		ProxyConfig: proxyConf,
	})
	if err != nil {
		return errors.WithDeferred(fmt.Errorf("creating proxy: %w", err), e.Close())
	}

	// Closing the server closes the engine as well.
	defer func() { err = errors.WithDeferred(err, s.Close()) }()

	err = s.Start()
	if err != nil {
		return fmt.Errorf("starting proxy: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	l.Info("shutting down", "signal", sig)

	return nil
}

// proxyConfig returns the MITM proxy configuration.
func (c *proxyCommand) proxyConfig() (conf gomitmproxy.Config, err error) {
	listenIP, err := netip.ParseAddr(c.ListenAddr)
	if err != nil {
		return conf, fmt.Errorf("listen address: %w", err)
	}

	mitmConf, err := c.mitmConfig()
	if err != nil {
		return conf, err
	}

	var tlsConf *tls.Config
	if c.HTTPSHostname != "" {
		var proxyCert *tls.Certificate
		proxyCert, err = mitmConf.GetOrCreateCert(c.HTTPSHostname)
		if err != nil {
			return conf, fmt.Errorf("generating https proxy certificate for %q: %w", c.HTTPSHostname, err)
		}

		tlsConf = &tls.Config{
			Certificates: []tls.Certificate{*proxyCert},
			ServerName:   c.HTTPSHostname,
		}
	}

	return gomitmproxy.Config{
		ListenAddr: net.TCPAddrFromAddrPort(netip.AddrPortFrom(listenIP, c.ListenPort)),
		TLSConfig:  tlsConf,

		Username: c.ProxyUser,
		Password: c.ProxyPassword,
		APIHost:  "adblock",

		MITMConfig: mitmConf,
	}, nil
}

// mitmConfig loads the root CA and creates the MITM configuration.
func (c *proxyCommand) mitmConfig() (conf *mitm.Config, err error) {
	tlsCert, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading root ca: %w", err)
	}

	privateKey, ok := tlsCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("ca private key: got %T, want rsa", tlsCert.PrivateKey)
	}

	x509c, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsing root ca: %w", err)
	}

	conf, err = mitm.NewConfig(x509c, privateKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating mitm config: %w", err)
	}

	// Generate the certificates valid for 7 days.
	conf.SetValidity(7 * 24 * time.Hour)
	conf.SetOrganization("AdBlock")

	return conf, nil
}
