package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// SettlementServiceName 精算サービスの完全修飾名
	SettlementServiceName = "recharge.v1.SettlementService"
	// AdminServiceName 管理サービスの完全修飾名
	AdminServiceName = "recharge.v1.AdminService"
)

// SettlementServiceServer 精算サービス（JWT認証）
type SettlementServiceServer interface {
	Settle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// AdminServiceServer 管理サービス（APIキー認証）
type AdminServiceServer interface {
	Credit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// SettlementServiceDesc 精算サービスの定義
var SettlementServiceDesc = grpc.ServiceDesc{
	ServiceName: SettlementServiceName,
	HandlerType: (*SettlementServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(SettlementServiceName, "Settle", SettlementServiceServer.Settle),
		unaryMethod(SettlementServiceName, "GetBalance", SettlementServiceServer.GetBalance),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recharge/v1/settlement.proto",
}

// AdminServiceDesc 管理サービスの定義
var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(AdminServiceName, "Credit", AdminServiceServer.Credit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recharge/v1/admin.proto",
}

// RegisterSettlementServiceServer 精算サービスを登録
func RegisterSettlementServiceServer(s grpc.ServiceRegistrar, srv SettlementServiceServer) {
	s.RegisterService(&SettlementServiceDesc, srv)
}

// RegisterAdminServiceServer 管理サービスを登録
func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&AdminServiceDesc, srv)
}

// unaryMethod google.protobuf.Struct を入出力とする単項メソッドを定義
func unaryMethod[S any](service, method string, call func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			invoke := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(S), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return invoke(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, invoke)
		},
	}
}

// SettlementServiceClient 精算サービスのクライアント
type SettlementServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSettlementServiceClient 新しいSettlementServiceClientを作成
func NewSettlementServiceClient(cc grpc.ClientConnInterface) *SettlementServiceClient {
	return &SettlementServiceClient{cc: cc}
}

// Settle チャージ精算を実行
func (c *SettlementServiceClient) Settle(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "/"+SettlementServiceName+"/Settle", in, opts...)
}

// GetBalance 残高を取得
func (c *SettlementServiceClient) GetBalance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "/"+SettlementServiceName+"/GetBalance", in, opts...)
}

// AdminServiceClient 管理サービスのクライアント
type AdminServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAdminServiceClient 新しいAdminServiceClientを作成
func NewAdminServiceClient(cc grpc.ClientConnInterface) *AdminServiceClient {
	return &AdminServiceClient{cc: cc}
}

// Credit 残高を加算
func (c *AdminServiceClient) Credit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "/"+AdminServiceName+"/Credit", in, opts...)
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
