// Package rpc registers unary gRPC services whose request and response
// messages are google.protobuf.Struct. A file descriptor is built and
// registered at runtime so server reflection (and grpcurl) can describe them.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const structType = ".google.protobuf.Struct"

// Handler serves one unary method.
type Handler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

type Method struct {
	Name    string
	Handler Handler
}

// Service is a set of unary methods under one fully-qualified service name.
type Service struct {
	Package string
	Name    string
	Methods []Method
}

func (s Service) FullName() string {
	return s.Package + "." + s.Name
}

// MethodPath returns the wire path of a method, e.g. /pkg.Service/Method.
func (s Service) MethodPath(method string) string {
	return "/" + s.FullName() + "/" + method
}

func (s Service) fileName() string {
	return strings.ReplaceAll(s.Package, ".", "/") + "/" + strings.ToLower(s.Name) + ".proto"
}

func (s Service) fileDescriptor() *descriptorpb.FileDescriptorProto {
	svc := &descriptorpb.ServiceDescriptorProto{Name: proto.String(s.Name)}
	for _, m := range s.Methods {
		svc.Method = append(svc.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.Name),
			InputType:  proto.String(structType),
			OutputType: proto.String(structType),
		})
	}
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(s.fileName()),
		Package:    proto.String(s.Package),
		Dependency: []string{"google/protobuf/struct.proto"},
		Service:    []*descriptorpb.ServiceDescriptorProto{svc},
		Syntax:     proto.String("proto3"),
	}
}

var registerMu sync.Mutex

func registerFile(s Service) error {
	registerMu.Lock()
	defer registerMu.Unlock()

	if _, err := protoregistry.GlobalFiles.FindFileByPath(s.fileName()); err == nil {
		return nil
	}
	file, err := protodesc.NewFile(s.fileDescriptor(), protoregistry.GlobalFiles)
	if err != nil {
		return fmt.Errorf("build descriptor for %s: %w", s.FullName(), err)
	}
	if err := protoregistry.GlobalFiles.RegisterFile(file); err != nil {
		return fmt.Errorf("register descriptor for %s: %w", s.FullName(), err)
	}
	return nil
}

// Register adds the service to a gRPC server.
func Register(server *grpc.Server, s Service) error {
	if err := registerFile(s); err != nil {
		return err
	}

	desc := grpc.ServiceDesc{
		ServiceName: s.FullName(),
		HandlerType: (*any)(nil),
		Metadata:    s.fileName(),
	}
	for _, m := range s.Methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    unaryHandler(s.MethodPath(m.Name), m.Handler),
		})
	}

	server.RegisterService(&desc, s)
	return nil
}

func unaryHandler(fullMethod string, h Handler) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return h(ctx, req.(*structpb.Struct))
		})
	}
}

// Invoke calls a Struct-based unary method on conn.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Encode converts a JSON-serializable value into a Struct.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}

// Decode fills v from a Struct using its JSON field names.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
