package out

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"focusdeck/internal/modules/site/adapter/out/rpc"
	"focusdeck/internal/modules/site/domain"
	siteout "focusdeck/internal/modules/site/port/out"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 10 * time.Second
)

// GRPCHost runs site plugins as child processes and talks to them over
// go-plugin's gRPC transport.
type GRPCHost struct {
	logger hclog.Logger
}

func NewGRPCHost(logger hclog.Logger) siteout.Host {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GRPCHost{logger: logger.Named("plugin")}
}

func (h *GRPCHost) Open(ctx context.Context, manifest domain.Manifest) (siteout.PluginFeed, error) {
	client, closeFn, err := h.connect(manifest, defaultStartTimeout)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		closeFn()
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s metadata", domain.ErrPluginTimeout, manifest.Name)
		}
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	siteID := meta.SiteID
	if siteID == "" {
		siteID = manifest.Name
	}
	name := meta.SiteName
	if name == "" {
		name = siteID
	}
	return &pluginFeed{
		client: client,
		close:  closeFn,
		name:   manifest.Name,
		meta: domain.Metadata{
			SiteID:   siteID,
			SiteName: name,
			Version:  meta.Version,
			PageSize: int(meta.PageSize),
		},
	}, nil
}

func (h *GRPCHost) connect(manifest domain.Manifest, startTimeout time.Duration) (rpc.SitePluginClient, func(), error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  rpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          rpc.PluginMap(nil),
		Cmd:              exec.Command(manifest.Binary),
		Managed:          true,
		StartTimeout:     startTimeout,
		Logger:           h.logger.With("plugin", manifest.Name),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start plugin client: %w", err)
	}
	raw, err := rpcClient.Dispense(rpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense plugin: %w", err)
	}
	typed, ok := raw.(rpc.SitePluginClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("plugin rpc client type mismatch")
	}
	return typed, closeFn, nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

type pluginFeed struct {
	client rpc.SitePluginClient
	close  func()
	name   string
	meta   domain.Metadata
}

func (f *pluginFeed) Metadata() domain.Metadata { return f.meta }
func (f *pluginFeed) Close()                    { f.close() }

func (f *pluginFeed) Fetch(ctx context.Context, cursor string) (domain.Batch, error) {
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	resp, err := f.client.FetchPage(callCtx, &rpc.FetchPageRequest{Cursor: cursor})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return domain.Batch{}, fmt.Errorf("%w: %s fetch", domain.ErrPluginTimeout, f.name)
		}
		return domain.Batch{}, fmt.Errorf("fetch page: %w", err)
	}
	batch := domain.Batch{Next: resp.NextCursor, Posts: make([]domain.Post, 0, len(resp.Posts))}
	for _, p := range resp.Posts {
		batch.Posts = append(batch.Posts, postFromRPC(p))
	}
	return batch, nil
}

func postFromRPC(p rpc.Post) domain.Post {
	post := domain.Post{
		ID:        p.ID,
		Author:    p.Author,
		Handle:    p.Handle,
		Title:     p.Title,
		Text:      p.Text,
		Permalink: p.Permalink,
		Height:    p.Height,
		RepostOf:  p.RepostOf,
	}
	if p.PostedAtUnix > 0 {
		post.PostedAt = time.Unix(p.PostedAtUnix, 0).UTC()
	}
	for _, m := range p.Media {
		post.Media = append(post.Media, domain.Media{Kind: m.Kind, URL: m.URL, Alt: m.Alt})
	}
	return post
}

// PostToRPC is used by plugins to put a post on the wire.
func PostToRPC(post domain.Post) rpc.Post {
	out := rpc.Post{
		ID:        post.ID,
		Author:    post.Author,
		Handle:    post.Handle,
		Title:     post.Title,
		Text:      post.Text,
		Permalink: post.Permalink,
		Height:    post.Height,
		RepostOf:  post.RepostOf,
	}
	if !post.PostedAt.IsZero() {
		out.PostedAtUnix = post.PostedAt.Unix()
	}
	for _, m := range post.Media {
		out.Media = append(out.Media, rpc.Media{Kind: m.Kind, URL: m.URL, Alt: m.Alt})
	}
	return out
}
