package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey      = "site"
	serviceName       = "focusdeck.site.v1.SitePlugin"
	jsonCodecName     = "json"
	methodGetMetadata = "/" + serviceName + "/GetMetadata"
	methodFetchPage   = "/" + serviceName + "/FetchPage"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FOCUSDECK_SITE_PLUGIN",
	MagicCookieValue: "focusdeck",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	SiteID   string `json:"site_id"`
	SiteName string `json:"site_name"`
	Version  string `json:"version"`
	PageSize int32  `json:"page_size"`
}

type Media struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
	Alt  string `json:"alt"`
}

type Post struct {
	ID           string  `json:"id"`
	Author       string  `json:"author"`
	Handle       string  `json:"handle"`
	Title        string  `json:"title"`
	Text         string  `json:"text"`
	Permalink    string  `json:"permalink"`
	PostedAtUnix int64   `json:"posted_at_unix"`
	Height       float64 `json:"height"`
	RepostOf     string  `json:"repost_of"`
	Media        []Media `json:"media"`
}

type FetchPageRequest struct {
	Cursor string `json:"cursor"`
}

type FetchPageResponse struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"next_cursor"`
}

type SitePluginServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	FetchPage(ctx context.Context, in *FetchPageRequest) (*FetchPageResponse, error)
}

type SitePluginClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	FetchPage(ctx context.Context, in *FetchPageRequest) (*FetchPageResponse, error)
}

type sitePluginClient struct {
	conn *grpc.ClientConn
}

func NewSitePluginClient(conn *grpc.ClientConn) SitePluginClient {
	return &sitePluginClient{conn: conn}
}

func (c *sitePluginClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sitePluginClient) FetchPage(ctx context.Context, in *FetchPageRequest) (*FetchPageResponse, error) {
	out := &FetchPageResponse{}
	if err := c.conn.Invoke(ctx, methodFetchPage, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterSitePluginServer(server grpc.ServiceRegistrar, impl SitePluginServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*SitePluginServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetMetadata",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &Empty{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.GetMetadata(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetMetadata}
					handler := func(ctx context.Context, req any) (any, error) {
						empty, ok := req.(*Empty)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.GetMetadata(ctx, empty)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "FetchPage",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &FetchPageRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.FetchPage(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodFetchPage}
					handler := func(ctx context.Context, req any) (any, error) {
						page, ok := req.(*FetchPageRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.FetchPage(ctx, page)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/site-plugin-v1.proto",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl SitePluginServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterSitePluginServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewSitePluginClient(conn), nil
}

func PluginMap(impl SitePluginServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
