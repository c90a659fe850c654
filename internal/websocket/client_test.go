package websocket

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_EnqueueAfterCloseSend(t *testing.T) {
	c := NewClient(newFakeHub(), nil, RolePlayer, 0, 7)

	require.True(t, c.CloseSend())
	assert.False(t, c.CloseSend())

	assert.NotPanics(t, func() {
		assert.False(t, c.enqueue([]byte(`{"type":"session:state"}`)))
	})
}

func TestClient_EnqueueSurvivesRacingClose(t *testing.T) {
	c := NewClient(newFakeHub(), nil, RolePlayer, 0, 7)

	// Канал закрыт, но флаг еще не виден отправителю: худшее переплетение
	// enqueue и CloseSend. Отправка должна вернуть false, а не паниковать.
	close(c.send)
	assert.NotPanics(t, func() {
		assert.False(t, c.enqueue([]byte(`{"type":"session:state"}`)))
	})
}

func TestClient_ConcurrentEnqueueAndClose(t *testing.T) {
	c := NewClient(newFakeHub(), nil, RolePlayer, 0, 7)
	message := []byte(`{"type":"session:answer_count"}`)

	// Паника в любой из горутин уронит тест
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.enqueue(message)
		}
	}()
	go func() {
		defer wg.Done()
		c.CloseSend()
	}()
	wg.Wait()

	assert.False(t, c.enqueue(message))
}
