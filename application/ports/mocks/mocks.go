// Package mocks holds testify mocks of the application ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
)

type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEmbeddingProvider) Generate(ctx context.Context, text, model string) (*entities.Embedding, error) {
	args := m.Called(ctx, text, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Embedding), args.Error(1)
}

func (m *MockEmbeddingProvider) GenerateBatch(ctx context.Context, texts []string, model string) ([]*entities.Embedding, error) {
	args := m.Called(ctx, texts, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Embedding), args.Error(1)
}

func (m *MockEmbeddingProvider) Supports(providerName string) bool {
	args := m.Called(providerName)
	return args.Bool(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishAsync(ctx context.Context, event events.DomainEvent) {
	m.Called(ctx, event)
}

type MockRemoteNoteStore struct {
	mock.Mock
}

func (m *MockRemoteNoteStore) ListByUserID(ctx context.Context, userID string) ([]*entities.Note, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Note), args.Error(1)
}

func (m *MockRemoteNoteStore) Put(ctx context.Context, note *entities.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockRemoteNoteStore) Delete(ctx context.Context, userID string, id valueobjects.NoteID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}
