package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockProvider writes a short scripted story offline. Each channel answers
// the first message with an opening, then continues for ContinueTurns
// replies, and finally closes the story.
type MockProvider struct {
	ContinueTurns int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{ContinueTurns: 2}
}

var mockChoices = [][]string{
	{"Пойти по тропинке к реке", "Заглянуть в старое дупло", "Позвать на помощь друзей"},
	{"Построить плот из веток", "Спросить дорогу у совы"},
	{"Спеть волшебную песенку", "Поделиться угощением", "Зажечь фонарик"},
}

func (m *MockProvider) Open(ctx context.Context) (Channel, error) {
	return &mockChannel{provider: m}, nil
}

func (m *MockProvider) OneShot(ctx context.Context, text string) (string, error) {
	start := time.Now()
	defer observe("mock", start, nil)

	return "Жил-был на свете маленький герой. Однажды он отправился в путь, " +
		"встретил верного друга, и вместе они помогли всем, кто попал в беду. " +
		"А вечером друзья вернулись домой, счастливые и довольные. Конец.", nil
}

type mockChannel struct {
	provider *MockProvider

	mu   sync.Mutex
	sent int
}

type mockReply struct {
	Story   string   `json:"story"`
	Choices []string `json:"choices"`
	IsFinal bool     `json:"isFinal"`
}

func (c *mockChannel) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	defer observe("mock", start, nil)

	turn := c.sent
	c.sent++

	var reply mockReply
	switch {
	case turn == 0:
		reply = mockReply{
			Story:   "Жил-был на опушке леса маленький герой. Однажды утром он нашёл светящийся камешек. Куда же он поведёт?",
			Choices: mockChoices[0],
		}
	case turn <= c.provider.ContinueTurns:
		reply = mockReply{
			Story:   fmt.Sprintf("Отличный выбор! Приключение продолжается, и это уже %d-й шаг. Впереди новая загадка. Что сделать дальше?", turn+1),
			Choices: mockChoices[turn%len(mockChoices)],
		}
	default:
		reply = mockReply{
			Story:   "Друзья справились со всеми трудностями и вернулись домой. Камешек засиял ярче, и все поняли, что дружба сильнее любого волшебства.",
			Choices: []string{},
			IsFinal: true,
		}
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(data) + "\n```", nil
}
