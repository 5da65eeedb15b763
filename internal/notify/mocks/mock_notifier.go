package mocks

import (
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifySuccess(email, displayName, remoteFolder string) {
	m.Called(email, displayName, remoteFolder)
}

func (m *MockNotifier) NotifyFailure(cause error, email string) {
	m.Called(cause, email)
}

func (m *MockNotifier) NotifySystemError(email string, cause error, stack string) {
	m.Called(email, cause, stack)
}
