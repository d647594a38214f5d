package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Full service names.
const (
	SessionServiceName = "microchat.v1.SessionService"
	ChatServiceName    = "microchat.v1.ChatService"
	MessageServiceName = "microchat.v1.MessageService"
	UploadServiceName  = "microchat.v1.UploadService"
)

// SessionServiceServer reports daemon health.
type SessionServiceServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*StatusResponse, error)
}

// ChatServiceServer exposes previews, chats and the route.
type ChatServiceServer interface {
	ListPreviews(context.Context, *emptypb.Empty) (*ListPreviewsResponse, error)
	GetChat(context.Context, *GetChatRequest) (*ChatResponse, error)
	Navigate(context.Context, *NavigateRequest) (*RouteResponse, error)
	GetRoute(context.Context, *emptypb.Empty) (*RouteResponse, error)
	WatchView(*WatchRequest, grpc.ServerStreamingServer[ViewEvent]) error
}

// MessageServiceServer sends and mutates messages.
type MessageServiceServer interface {
	SendText(context.Context, *SendTextRequest) (*SendTextResponse, error)
	EditText(context.Context, *EditTextRequest) (*MutationResponse, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*MutationResponse, error)
	SearchArchive(context.Context, *SearchArchiveRequest) (*SearchArchiveResponse, error)
}

// UploadServiceServer drives attachment uploads.
type UploadServiceServer interface {
	StartUpload(context.Context, *StartUploadRequest) (*Upload, error)
	CancelUpload(context.Context, *CancelUploadRequest) (*Upload, error)
	ListUploads(context.Context, *ListUploadsRequest) (*ListUploadsResponse, error)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary builds a method descriptor that decodes a Req and dispatches to call,
// honouring any server interceptor.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(service, method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SessionServiceDesc describes SessionService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionServiceName, "GetStatus", SessionServiceServer.GetStatus),
	},
	Metadata: "microchat/v1/session.json",
}

// ChatServiceDesc describes ChatService.
var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ChatServiceName, "ListPreviews", ChatServiceServer.ListPreviews),
		unary(ChatServiceName, "GetChat", ChatServiceServer.GetChat),
		unary(ChatServiceName, "Navigate", ChatServiceServer.Navigate),
		unary(ChatServiceName, "GetRoute", ChatServiceServer.GetRoute),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchView",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ChatServiceServer).WatchView(in, &grpc.GenericServerStream[WatchRequest, ViewEvent]{ServerStream: stream})
			},
		},
	},
	Metadata: "microchat/v1/chat.json",
}

// MessageServiceDesc describes MessageService.
var MessageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "SendText", MessageServiceServer.SendText),
		unary(MessageServiceName, "EditText", MessageServiceServer.EditText),
		unary(MessageServiceName, "DeleteMessage", MessageServiceServer.DeleteMessage),
		unary(MessageServiceName, "SearchArchive", MessageServiceServer.SearchArchive),
	},
	Metadata: "microchat/v1/message.json",
}

// UploadServiceDesc describes UploadService.
var UploadServiceDesc = grpc.ServiceDesc{
	ServiceName: UploadServiceName,
	HandlerType: (*UploadServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(UploadServiceName, "StartUpload", UploadServiceServer.StartUpload),
		unary(UploadServiceName, "CancelUpload", UploadServiceServer.CancelUpload),
		unary(UploadServiceName, "ListUploads", UploadServiceServer.ListUploads),
	},
	Metadata: "microchat/v1/upload.json",
}

// RegisterSessionServiceServer registers srv with s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// RegisterChatServiceServer registers srv with s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

// RegisterMessageServiceServer registers srv with s.
func RegisterMessageServiceServer(s grpc.ServiceRegistrar, srv MessageServiceServer) {
	s.RegisterService(&MessageServiceDesc, srv)
}

// RegisterUploadServiceServer registers srv with s.
func RegisterUploadServiceServer(s grpc.ServiceRegistrar, srv UploadServiceServer) {
	s.RegisterService(&UploadServiceDesc, srv)
}
