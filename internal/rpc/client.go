package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Client calls every daemon service over one connection.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a daemon socket. The connection is lazy: the first call
// reports an unreachable daemon.
func Dial(socketPath string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient("unix://"+socketPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection. Calls still select the JSON codec.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, service, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(service, method), in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, SessionServiceName, "GetStatus", &emptypb.Empty{})
}

func (c *Client) ListPreviews(ctx context.Context) (*ListPreviewsResponse, error) {
	return invoke[ListPreviewsResponse](ctx, c, ChatServiceName, "ListPreviews", &emptypb.Empty{})
}

func (c *Client) GetChat(ctx context.Context, req *GetChatRequest) (*ChatResponse, error) {
	return invoke[ChatResponse](ctx, c, ChatServiceName, "GetChat", req)
}

func (c *Client) Navigate(ctx context.Context, req *NavigateRequest) (*RouteResponse, error) {
	return invoke[RouteResponse](ctx, c, ChatServiceName, "Navigate", req)
}

func (c *Client) GetRoute(ctx context.Context) (*RouteResponse, error) {
	return invoke[RouteResponse](ctx, c, ChatServiceName, "GetRoute", &emptypb.Empty{})
}

// WatchView opens the render event stream.
func (c *Client) WatchView(ctx context.Context, req *WatchRequest) (grpc.ServerStreamingClient[ViewEvent], error) {
	stream, err := c.conn.NewStream(ctx, &ChatServiceDesc.Streams[0], fullMethod(ChatServiceName, "WatchView"), grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchRequest, ViewEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *Client) SendText(ctx context.Context, req *SendTextRequest) (*SendTextResponse, error) {
	return invoke[SendTextResponse](ctx, c, MessageServiceName, "SendText", req)
}

func (c *Client) EditText(ctx context.Context, req *EditTextRequest) (*MutationResponse, error) {
	return invoke[MutationResponse](ctx, c, MessageServiceName, "EditText", req)
}

func (c *Client) DeleteMessage(ctx context.Context, req *DeleteMessageRequest) (*MutationResponse, error) {
	return invoke[MutationResponse](ctx, c, MessageServiceName, "DeleteMessage", req)
}

func (c *Client) SearchArchive(ctx context.Context, req *SearchArchiveRequest) (*SearchArchiveResponse, error) {
	return invoke[SearchArchiveResponse](ctx, c, MessageServiceName, "SearchArchive", req)
}

func (c *Client) StartUpload(ctx context.Context, req *StartUploadRequest) (*Upload, error) {
	return invoke[Upload](ctx, c, UploadServiceName, "StartUpload", req)
}

func (c *Client) CancelUpload(ctx context.Context, req *CancelUploadRequest) (*Upload, error) {
	return invoke[Upload](ctx, c, UploadServiceName, "CancelUpload", req)
}

func (c *Client) ListUploads(ctx context.Context, req *ListUploadsRequest) (*ListUploadsResponse, error) {
	return invoke[ListUploadsResponse](ctx, c, UploadServiceName, "ListUploads", req)
}
