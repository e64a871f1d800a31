package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "invoices.v1.InvoiceService"

// RPC method names.
const (
	MethodProcessDocument = "ProcessDocument"
	MethodListInvoices    = "ListInvoices"
	MethodGetInvoice      = "GetInvoice"
	MethodListAnomalies   = "ListAnomalies"
	MethodSubmitReview    = "SubmitReview"
	MethodUpdateInvoice   = "UpdateInvoice"
	MethodGetDocument     = "GetDocument"
	MethodExportInvoices  = "ExportInvoices"
)

// InvoiceServiceServer is the server API for invoices.v1.InvoiceService.
// Requests and responses are google.protobuf.Struct messages.
type InvoiceServiceServer interface {
	ProcessDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListInvoices(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetInvoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAnomalies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitReview(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateInvoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportInvoices(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(InvoiceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(InvoiceServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// FullMethod returns the gRPC path of an InvoiceService method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// InvoiceServiceDesc describes invoices.v1.InvoiceService for grpc.Server.RegisterService.
var InvoiceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InvoiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodProcessDocument, InvoiceServiceServer.ProcessDocument),
		unaryMethod(MethodListInvoices, InvoiceServiceServer.ListInvoices),
		unaryMethod(MethodGetInvoice, InvoiceServiceServer.GetInvoice),
		unaryMethod(MethodListAnomalies, InvoiceServiceServer.ListAnomalies),
		unaryMethod(MethodSubmitReview, InvoiceServiceServer.SubmitReview),
		unaryMethod(MethodUpdateInvoice, InvoiceServiceServer.UpdateInvoice),
		unaryMethod(MethodGetDocument, InvoiceServiceServer.GetDocument),
		unaryMethod(MethodExportInvoices, InvoiceServiceServer.ExportInvoices),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoices/v1/invoices.proto",
}

func RegisterInvoiceServiceServer(s grpc.ServiceRegistrar, srv InvoiceServiceServer) {
	s.RegisterService(&InvoiceServiceDesc, srv)
}

// InvoiceServiceClient calls InvoiceService methods by name.
type InvoiceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInvoiceServiceClient(cc grpc.ClientConnInterface) *InvoiceServiceClient {
	return &InvoiceServiceClient{cc: cc}
}

// Call invokes method with req converted to a Struct.
func (c *InvoiceServiceClient) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
