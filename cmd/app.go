package cmd

import (
	"context"
	"time"

	"github.com/boxrelay/boxrelay/browse"
	"github.com/boxrelay/boxrelay/catalog"
	"github.com/boxrelay/boxrelay/config"
	"github.com/boxrelay/boxrelay/internal/cache"
	"github.com/boxrelay/boxrelay/key"
	"github.com/boxrelay/boxrelay/log"
	"github.com/boxrelay/boxrelay/network"
	"github.com/boxrelay/boxrelay/proxy"
	"github.com/boxrelay/boxrelay/resolver"
	"github.com/spf13/viper"
)

// app is the wired component graph shared by serve and resolve.
type app struct {
	session *network.Session
	catalog *catalog.Client
	paths   *resolver.Paths
	streams *resolver.Streams
	browse  *browse.Service
	proxy   *proxy.Proxy
}

func networkOptions() network.Options {
	opts := network.DefaultOptions()
	opts.MaxIdleConns = viper.GetInt(key.ProxyMaxIdleConns)
	opts.MaxConnsPerHost = viper.GetInt(key.ProxyMaxConns)
	opts.Timeout = config.Seconds(key.BackendTimeout)
	opts.Fingerprint = viper.GetBool(key.SessionFingerprint)
	opts.InsecureSkipVerify = viper.GetBool(key.ProxyInsecureTLS)
	return opts
}

func newApp(ctx context.Context) (*app, error) {
	host := viper.GetString(key.BackendHost)
	opts := networkOptions()

	session, err := network.NewSession(host, opts)
	if err != nil {
		return nil, err
	}

	if opts.InsecureSkipVerify {
		log.Warn("upstream certificate verification is disabled")
	}

	if viper.GetBool(key.SessionWarm) {
		warmCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		if err := session.Warm(warmCtx); err != nil {
			log.Warnf("continuing without session cookies: %s", err)
		}
		cancel()
	}

	client := &catalog.Client{
		BaseURL:    host,
		APIURL:     viper.GetString(key.BackendAPIHost),
		TrendingID: viper.GetString(key.BackendTrendingID),
		HTTP:       session.Client(),
	}

	current := func() *network.Session { return session }

	store := cache.New[resolver.Descriptor](config.Seconds(key.CacheHomeTTL))
	paths := resolver.NewPaths(client, store)
	streams := resolver.NewStreams(paths, store, []resolver.Strategy{
		resolver.WithSession(client, current),
		resolver.Anonymous(client, opts),
	}, resolver.Options{
		Host:    host,
		TTL:     config.Seconds(key.CacheStreamTTL),
		Timeout: 3 * opts.Timeout,
	})

	return &app{
		session: session,
		catalog: client,
		paths:   paths,
		streams: streams,
		browse:  browse.New(client, paths, store),
		proxy: proxy.New(current, proxy.Options{
			Timeout:   config.Seconds(key.ProxyTimeout),
			ChunkSize: viper.GetInt(key.ProxyChunkSize),
			Network:   opts,
		}),
	}, nil
}

func (a *app) Close() {
	a.session.Close()
}

func durationLabel(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
