package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "billguard.v1.BillGuardService"

// BillGuardServer is the server API for billguard.v1.BillGuardService.
// Every method takes and returns a google.protobuf.Struct.
type BillGuardServer interface {
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmAnalysis(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestDisputeGuide(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NavigateAway(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OpenRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DismissError(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListResources(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(BillGuardServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BillGuardServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BillGuardServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is declared by hand in place of generated code; messages are all structpb.Struct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BillGuardServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetState", BillGuardServer.GetState),
		unary("SelectFile", BillGuardServer.SelectFile),
		unary("CancelUpload", BillGuardServer.CancelUpload),
		unary("ConfirmAnalysis", BillGuardServer.ConfirmAnalysis),
		unary("RequestDisputeGuide", BillGuardServer.RequestDisputeGuide),
		unary("NavigateAway", BillGuardServer.NavigateAway),
		unary("OpenRecord", BillGuardServer.OpenRecord),
		unary("DismissError", BillGuardServer.DismissError),
		unary("ListHistory", BillGuardServer.ListHistory),
		unary("DeleteRecord", BillGuardServer.DeleteRecord),
		unary("ClearHistory", BillGuardServer.ClearHistory),
		unary("ExportHistory", BillGuardServer.ExportHistory),
		unary("ListResources", BillGuardServer.ListResources),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "billguard/v1/billguard.proto",
}

func RegisterBillGuardServer(s grpc.ServiceRegistrar, srv BillGuardServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client is a thin caller for BillGuardService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req (nil means an empty struct).
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
