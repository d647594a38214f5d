package api

import (
	"context"
	"errors"
	"io/fs"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/rpc"
)

// UploadService implements rpc.UploadServiceServer.
type UploadService struct {
	engine *chatsync.Engine
}

// NewUploadService creates a new upload service.
func NewUploadService(engine *chatsync.Engine) *UploadService {
	return &UploadService{engine: engine}
}

func (s *UploadService) StartUpload(_ context.Context, req *rpc.StartUploadRequest) (*rpc.Upload, error) {
	key, err := parseChat(req.Chat)
	if err != nil {
		return nil, err
	}
	file, err := chatsync.FileFromPath(req.Path, req.MimeType)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, grpcstatus.Errorf(codes.NotFound, "file %q not found", req.Path)
	}
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "file %q: %v", req.Path, err)
	}
	snap, err := s.engine.StartUpload(key, file)
	if err != nil {
		return nil, toStatus("start upload", err)
	}
	u := uploadToRPC(snap)
	return &u, nil
}

func (s *UploadService) CancelUpload(_ context.Context, req *rpc.CancelUploadRequest) (*rpc.Upload, error) {
	snap, ok := s.engine.CancelUpload(req.ID)
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "upload %q not found", req.ID)
	}
	u := uploadToRPC(snap)
	return &u, nil
}

func (s *UploadService) ListUploads(_ context.Context, req *rpc.ListUploadsRequest) (*rpc.ListUploadsResponse, error) {
	key, err := parseChat(req.Chat)
	if err != nil {
		return nil, err
	}
	return &rpc.ListUploadsResponse{
		Uploads: uploadsToRPC(s.engine.Uploads().List(key)),
		Draft:   s.engine.Draft(key).IDs(),
	}, nil
}
