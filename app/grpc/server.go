package grpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vibast-solutions/ms-go-payment-links/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-links/app/service"
	"github.com/vibast-solutions/ms-go-payment-links/app/types"
)

const (
	PaymentRecordsServiceName = "payments.v1.PaymentRecords"

	GetRecordMethod   = "/" + PaymentRecordsServiceName + "/GetRecord"
	ListRecordsMethod = "/" + PaymentRecordsServiceName + "/ListRecords"

	listRecordsLimit = int32(100)
)

// PaymentRecordsServer is the read-only record surface. It is described by
// hand with well-known protobuf types, so no generated code is involved.
type PaymentRecordsServer interface {
	GetRecord(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListRecords(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

var PaymentRecordsServiceDesc = grpc.ServiceDesc{
	ServiceName: PaymentRecordsServiceName,
	HandlerType: (*PaymentRecordsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRecord", Handler: getRecordHandler},
		{MethodName: "ListRecords", Handler: listRecordsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payments/v1/records.proto",
}

func RegisterPaymentRecordsServer(registrar grpc.ServiceRegistrar, srv PaymentRecordsServer) {
	registrar.RegisterService(&PaymentRecordsServiceDesc, srv)
}

func getRecordHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentRecordsServer).GetRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetRecordMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentRecordsServer).GetRecord(ctx, req.(*wrapperspb.StringValue))
	})
}

func listRecordsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentRecordsServer).ListRecords(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListRecordsMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentRecordsServer).ListRecords(ctx, req.(*emptypb.Empty))
	})
}

type Server struct {
	paymentService *service.PaymentService
}

func NewServer(paymentService *service.PaymentService) *Server {
	return &Server{paymentService: paymentService}
}

func (s *Server) GetRecord(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	getReq := &types.GetRecordRequest{RequestID: strings.TrimSpace(req.GetValue())}
	if err := getReq.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.paymentService.GetRecord(ctx, getReq.RequestID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecordNotFound):
			return nil, status.Error(codes.NotFound, "payment record not found")
		case errors.Is(err, service.ErrInvalidRequest):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			loggerWithContext(ctx).WithError(err).Error("Get payment record failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	out, err := structpb.NewStruct(mapper.RecordToMap(item))
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("Encode payment record failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

func (s *Server) ListRecords(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	items, err := s.paymentService.ListRecords(ctx, &types.ListRecordsRequest{Limit: listRecordsLimit})
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("List payment records failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		values = append(values, mapper.RecordToMap(item))
	}

	out, err := structpb.NewList(values)
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("Encode payment records failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// PaymentRecordsClient calls the record surface over any client connection.
type PaymentRecordsClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentRecordsClient(cc grpc.ClientConnInterface) *PaymentRecordsClient {
	return &PaymentRecordsClient{cc: cc}
}

func (c *PaymentRecordsClient) GetRecord(ctx context.Context, requestID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetRecordMethod, wrapperspb.String(requestID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PaymentRecordsClient) ListRecords(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ListRecordsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
