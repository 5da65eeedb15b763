package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docrelay/internal/sharepoint"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Connect(ctx context.Context) (sharepoint.Session, error) {
	args := m.Called(ctx)
	if s, ok := args.Get(0).(sharepoint.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSession struct {
	mock.Mock
}

func (m *MockSession) EnsureFolder(ctx context.Context, serverRelativeURL string) error {
	args := m.Called(ctx, serverRelativeURL)
	return args.Error(0)
}

func (m *MockSession) UploadFile(ctx context.Context, folderURL, localPath string) error {
	args := m.Called(ctx, folderURL, localPath)
	return args.Error(0)
}
