// Package rpc declares the gRPC contract between the offsync client and the
// record server.
//
// Every request and response is a google.protobuf.Struct, so the service
// descriptor is written out here instead of being generated. The contract,
// with the Struct keys of each call, is offsync/v1/record_service.proto.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "offsync.v1.RecordService"

const (
	MethodPing        = "Ping"
	MethodRegister    = "Register"
	MethodLogin       = "Login"
	MethodCreate      = "Create"
	MethodUpdate      = "Update"
	MethodDelete      = "Delete"
	MethodListChanged = "ListChanged"
	MethodListAll     = "ListAll"
)

// FullMethod returns the gRPC method path, e.g. "/offsync.v1.RecordService/Ping".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// RecordServiceServer is implemented by the server side.
type RecordServiceServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListChanged(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type serverMethod func(RecordServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call serverMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RecordServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RecordServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is registered with grpc.Server by RegisterRecordServiceServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, RecordServiceServer.Ping),
		unary(MethodRegister, RecordServiceServer.Register),
		unary(MethodLogin, RecordServiceServer.Login),
		unary(MethodCreate, RecordServiceServer.Create),
		unary(MethodUpdate, RecordServiceServer.Update),
		unary(MethodDelete, RecordServiceServer.Delete),
		unary(MethodListChanged, RecordServiceServer.ListChanged),
		unary(MethodListAll, RecordServiceServer.ListAll),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "offsync/v1/record_service.proto",
}

func RegisterRecordServiceServer(s grpc.ServiceRegistrar, srv RecordServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Invoke performs a unary call of method on cc.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
