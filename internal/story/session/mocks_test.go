package session

import (
	"context"

	"fairytales/internal/domain/story"
	"fairytales/internal/story/generation"

	"github.com/stretchr/testify/mock"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Open(ctx context.Context) (generation.Channel, error) {
	args := m.Called(ctx)
	ch, _ := args.Get(0).(generation.Channel)
	return ch, args.Error(1)
}

func (m *mockProvider) OneShot(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) Send(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

type mockNarrator struct {
	mock.Mock
}

func (m *mockNarrator) Narrate(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	args := m.Called(ctx, text, voice)
	return args.Get(0).(story.AudioAsset), args.Error(1)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) Check(ctx context.Context, interactive bool) error {
	return m.Called(ctx, interactive).Error(0)
}

func (m *mockGate) Record(ctx context.Context, interactive bool) error {
	return m.Called(ctx, interactive).Error(0)
}
